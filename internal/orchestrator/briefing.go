package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/msageha/vaultd/internal/vault"
)

// writeBriefing is the daily scheduled task: it snapshots the vault
// into a dated briefing file under Briefings. One file per day; a
// rerun on the same date overwrites it.
func (o *Orchestrator) writeBriefing() error {
	now := time.Now().UTC()

	content := fmt.Sprintf(`---
type: briefing
created: %s
---

# Morning Briefing: %s

## Workload
- Items in Inbox: %d
- Items awaiting action: %d
- Plans open: %d
- Approvals awaiting decision: %d

## Last 24 Hours
- Items archived: %d
- Approvals granted: %d
- Approvals rejected: %d
- Watcher errors: %d

## Expired Approvals
%s`,
		now.Format(time.RFC3339),
		now.Format("2006-01-02"),
		o.store.Count(vault.Inbox, "*"),
		o.store.Count(vault.NeedsAction, "*.md"),
		o.store.Count(vault.Plans, "*.md"),
		o.store.Count(vault.PendingApproval, "*.md"),
		o.journal.CountSince(1, "file_moved_to_done", "item_processed"),
		o.journal.CountSince(1, "approval_granted"),
		o.journal.CountSince(1, "approval_rejected"),
		o.journal.CountSince(1, "watcher_error"),
		o.expiredSection(),
	)

	path := filepath.Join(
		o.store.Dir(vault.Briefings),
		fmt.Sprintf("BRIEFING_%s.md", now.Format("2006-01-02")),
	)
	if err := vault.WriteFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write briefing: %w", err)
	}

	o.logJournal("briefing_created", map[string]any{"file": filepath.Base(path)})
	return nil
}

func (o *Orchestrator) expiredSection() string {
	expired := o.approvals.CheckExpired()
	if len(expired) == 0 {
		return "_None._\n"
	}
	out := ""
	for _, p := range expired {
		out += "- " + filepath.Base(p) + "\n"
	}
	return out
}
