// Package status reports a point-in-time snapshot of the vault.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/vault"
)

type FolderStatus struct {
	Folder string `json:"folder"`
	Count  int    `json:"count"`
}

type Snapshot struct {
	VaultPath     string         `json:"vault_path"`
	Folders       []FolderStatus `json:"folders"`
	DoneToday     int            `json:"done_today"`
	ApprovalsOpen int            `json:"approvals_open"`
	ErrorsToday   int            `json:"errors_today"`
	EntriesToday  int            `json:"journal_entries_today"`
}

// Collect gathers folder counts and today's journal tallies.
func Collect(vaultPath string) (Snapshot, error) {
	store := vault.New(vaultPath)
	jw, err := journal.NewWriter(store.Dir(vault.Logs), zerolog.Nop())
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{VaultPath: vaultPath}
	for _, state := range vault.States() {
		if state == vault.Logs {
			continue
		}
		snap.Folders = append(snap.Folders, FolderStatus{
			Folder: string(state),
			Count:  store.Count(state, "*"),
		})
	}

	snap.DoneToday = jw.CountSince(1, "file_moved_to_done", "item_processed")
	snap.ApprovalsOpen = store.Count(vault.PendingApproval, "*.md")
	snap.ErrorsToday = jw.CountSince(1, "watcher_error", "cycle_error", "scheduled_task_failed", "plan_error")
	snap.EntriesToday = len(jw.ReadDay(time.Now().UTC()))

	return snap, nil
}

// Write renders the snapshot to w, as JSON or plain text.
func Write(w io.Writer, snap Snapshot, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(w, "Vault: %s\n\n", snap.VaultPath)
	for _, f := range snap.Folders {
		fmt.Fprintf(w, "  %-17s %d\n", f.Folder, f.Count)
	}
	fmt.Fprintf(w, "\nToday: %d journal entries, %d done, %d errors\n",
		snap.EntriesToday, snap.DoneToday, snap.ErrorsToday)
	fmt.Fprintf(w, "Approvals awaiting decision: %d\n", snap.ApprovalsOpen)
	return nil
}
