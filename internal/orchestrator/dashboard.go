package orchestrator

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/msageha/vaultd/internal/vault"
)

const recentActivityLimit = 10

const dashboardTemplate = `---
last_updated: {{.Now.Format "2006-01-02T15:04:05Z07:00"}}
auto_refresh: true
---

# Vault Dashboard

## Status
- **System Status**: {{if .Running}}Active{{else}}Stopped{{end}}
- **Watchers**: {{if .Watchers}}{{join .Watchers ", "}}{{else}}none{{end}}
- **Dev Mode**: {{if .DevMode}}Enabled{{else}}Disabled{{end}}
- **Last Check**: {{.Now.Format "2006-01-02 15:04:05"}} UTC

## Pending Actions
{{if .Pending}}{{range .Pending}}- {{.}}
{{end}}{{else}}_No pending actions._
{{end}}
## Recent Activity
{{if .Activity}}{{range .Activity}}- {{.}}
{{end}}{{else}}_No recent activity._
{{end}}
## Quick Stats
| Metric | Value |
|--------|-------|
| Items in Inbox | {{.InboxCount}} |
| Items Needs Action | {{.PendingCount}} |
| Pending Approvals | {{.ApprovalCount}} |
| Items Done (Today) | {{.DoneToday}} |
| Items Done (This Week) | {{.DoneWeek}} |
`

var dashboardTmpl = template.Must(
	template.New("dashboard").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(dashboardTemplate),
)

type dashboardData struct {
	Now           time.Time
	Running       bool
	DevMode       bool
	Watchers      []string
	Pending       []string
	Activity      []string
	InboxCount    int
	PendingCount  int
	ApprovalCount int
	DoneToday     int
	DoneWeek      int
}

// updateDashboard rewrites Dashboard.md at the vault root from the
// current folder counts and today's journal. Failures are logged and
// otherwise ignored; the dashboard is a convenience surface, not state.
func (o *Orchestrator) updateDashboard() {
	now := time.Now().UTC()

	pending := o.store.List(vault.NeedsAction, "*.md")
	names := make([]string, 0, recentActivityLimit)
	for i, p := range pending {
		if i >= recentActivityLimit {
			break
		}
		names = append(names, filepath.Base(p))
	}

	data := dashboardData{
		Now:           now,
		Running:       o.running,
		DevMode:       o.cfg.Orchestrator.DevMode,
		Watchers:      o.activeWatcherNames(),
		Pending:       names,
		Activity:      o.recentActivity(now),
		InboxCount:    o.store.Count(vault.Inbox, "*"),
		PendingCount:  len(pending),
		ApprovalCount: o.store.Count(vault.PendingApproval, "*.md"),
		DoneToday:     o.journal.CountSince(1, "file_moved_to_done", "item_processed"),
		DoneWeek:      o.journal.CountSince(7, "file_moved_to_done", "item_processed"),
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		o.log.Error().Err(err).Msg("render dashboard")
		return
	}

	path := filepath.Join(o.store.Root(), "Dashboard.md")
	if err := vault.WriteFileAtomic(path, buf.Bytes()); err != nil {
		o.log.Error().Err(err).Msg("write dashboard")
		return
	}
	o.log.Debug().Msg("dashboard updated")
}

// recentActivity formats the tail of today's journal for display.
func (o *Orchestrator) recentActivity(now time.Time) []string {
	entries := o.journal.ReadDay(now)
	if len(entries) > recentActivityLimit {
		entries = entries[len(entries)-recentActivityLimit:]
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		target := ""
		for _, key := range []string{"file", "target", "source", "task_name"} {
			if v, ok := e.Details[key].(string); ok && v != "" {
				target = v
				break
			}
		}
		lines = append(lines, "["+e.Timestamp.Format("2006-01-02 15:04:05")+"] "+e.ActionType+": "+target)
	}
	return lines
}
