// Package journal is the vault's append-only audit trail: one JSON
// array file per UTC day under Logs/. It is the single synchronization
// point shared by every component; all appends go through one Writer.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/lock"
	"github.com/msageha/vaultd/internal/vault"
)

// Actor names used across the engine.
const (
	ActorOrchestrator = "orchestrator"
	ActorWatcher      = "watcher"
	ActorScheduler    = "scheduler"
	ActorApproval     = "approval_manager"
	ActorPlanner      = "planner"
	ActorHuman        = "human"
)

const dayFormat = "2006-01-02"

// Entry is one immutable audit record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventID    string         `json:"event_id"`
	ActionType string         `json:"action_type"`
	Actor      string         `json:"actor"`
	Details    map[string]any `json:"details,omitempty"`
}

// Writer appends entries to the current day's file. Safe for use from
// any number of goroutines: each day file has its own mutex, and the
// file is rewritten whole through a temp-file rename so a failed write
// never leaves a torn file behind.
type Writer struct {
	dir   string
	locks *lock.MutexMap
	log   zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewWriter creates a Writer over the given Logs directory.
func NewWriter(dir string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Writer{
		dir:   dir,
		locks: lock.NewMutexMap(),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Append writes one record to today's file. The critical section is as
// short as possible: read existing entries, append in memory, rewrite.
// A file that cannot be parsed (corrupted by an external process or a
// prior partial write) is logged and discarded rather than failing the
// new entry.
func (w *Writer) Append(actor, actionType string, details map[string]any) error {
	now := w.now()
	name := now.Format(dayFormat) + ".json"
	path := filepath.Join(w.dir, name)

	entry := Entry{
		Timestamp:  now,
		EventID:    uuid.NewString(),
		ActionType: actionType,
		Actor:      actor,
		Details:    details,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	w.locks.Lock(name)
	defer w.locks.Unlock(name)

	// Preserve entries written by other tools: keep them as raw JSON
	// instead of round-tripping through our own struct.
	var entries []json.RawMessage
	if existing, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(existing, &entries); err != nil {
			w.log.Warn().Str("file", name).Err(err).
				Msg("corrupted journal file, starting fresh")
			entries = nil
		}
	}

	entries = append(entries, json.RawMessage(data))
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := vault.WriteFileAtomic(path, out); err != nil {
		return fmt.Errorf("write journal %s: %w", name, err)
	}
	return nil
}

// ReadDay returns the parsed entries for a calendar day. Corrupted or
// missing files yield nil; individual unreadable entries are skipped.
func (w *Writer) ReadDay(day time.Time) []Entry {
	path := filepath.Join(w.dir, day.UTC().Format(dayFormat)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// CountSince tallies entries with any of the given action types over
// the last `days` calendar days, today included.
func (w *Writer) CountSince(days int, actionTypes ...string) int {
	want := make(map[string]bool, len(actionTypes))
	for _, t := range actionTypes {
		want[t] = true
	}

	count := 0
	now := w.now()
	for i := 0; i < days; i++ {
		for _, e := range w.ReadDay(now.AddDate(0, 0, -i)) {
			if want[e.ActionType] {
				count++
			}
		}
	}
	return count
}
