// Package orchestrator is the composition root: it owns the vault, the
// journal, the scheduler, the approval manager, the planner, and every
// watcher, and is the only component that touches more than one
// subsystem at a time.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/msageha/vaultd/internal/approval"
	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/logging"
	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/planner"
	"github.com/msageha/vaultd/internal/scheduler"
	"github.com/msageha/vaultd/internal/vault"
	"github.com/msageha/vaultd/internal/watcher"
)

// Orchestrator wires the subsystems together and runs the top-level
// cycle. One goroutine per watcher, one cycle loop; scheduler tasks run
// inside the cycle goroutine, never concurrently with each other.
type Orchestrator struct {
	cfg       model.Config
	store     *vault.Store
	journal   *journal.Writer
	sched     *scheduler.Scheduler
	approvals *approval.Manager
	plans     *planner.Planner
	log       zerolog.Logger

	watchers []*registeredWatcher

	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	running  bool
	stopOnce sync.Once
}

type registeredWatcher struct {
	w        watcher.Watcher
	interval time.Duration
	active   bool
}

// New builds the orchestrator. Failure to create the vault folder tree
// is fatal and surfaced to the caller before any loop starts.
func New(cfg model.Config, log zerolog.Logger) (*Orchestrator, error) {
	store := vault.New(cfg.Vault.Path)
	if err := store.Ensure(); err != nil {
		return nil, fmt.Errorf("ensure vault structure: %w", err)
	}

	jw, err := journal.NewWriter(store.Dir(vault.Logs), logging.Component(log, "journal"))
	if err != nil {
		return nil, err
	}

	approvals, err := approval.NewManager(
		store, jw, logging.Component(log, "approval"),
		time.Duration(cfg.Approval.ExpiresHours)*time.Hour,
	)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		journal:   jw,
		sched:     scheduler.New(jw, logging.Component(log, "scheduler")),
		approvals: approvals,
		plans:     planner.New(store, jw, logging.Component(log, "planner")),
		log:       logging.Component(log, "orchestrator"),
	}
	o.buildWatchers(log)
	o.registerTasks()
	return o, nil
}

// Store exposes the vault store for the status command and tests.
func (o *Orchestrator) Store() *vault.Store { return o.store }

// Journal exposes the shared journal writer.
func (o *Orchestrator) Journal() *journal.Writer { return o.journal }

// Approvals exposes the approval manager.
func (o *Orchestrator) Approvals() *approval.Manager { return o.approvals }

// Planner exposes the planner.
func (o *Orchestrator) Planner() *planner.Planner { return o.plans }

func (o *Orchestrator) buildWatchers(log zerolog.Logger) {
	wcfg := o.cfg.Watchers

	if wcfg.DropFolder.Enabled {
		o.watchers = append(o.watchers, &registeredWatcher{
			w:        watcher.NewDropFolder(o.store, wcfg.DropFolder.Folder, logging.Component(log, "drop_folder")),
			interval: time.Duration(wcfg.DropFolder.PollIntervalSec) * time.Second,
		})
	}
	if wcfg.Maildir.Enabled {
		o.watchers = append(o.watchers, &registeredWatcher{
			w:        watcher.NewMaildir(o.store, wcfg.Maildir.SpoolDir, logging.Component(log, "maildir")),
			interval: time.Duration(wcfg.Maildir.PollIntervalSec) * time.Second,
		})
	}
	if wcfg.Feed.Enabled {
		o.watchers = append(o.watchers, &registeredWatcher{
			w:        watcher.NewFeed(o.store, wcfg.Feed.FeedPath, logging.Component(log, "feed")),
			interval: time.Duration(wcfg.Feed.PollIntervalSec) * time.Second,
		})
	}
}

func (o *Orchestrator) registerTasks() {
	scfg := o.cfg.Scheduler

	o.sched.Add(scheduler.NewPeriodic(
		"create_plans", scfg.PlanIntervalSec,
		"Create plans for pending items in Needs_Action",
		func() error {
			o.plans.CreatePlansForPending()
			return nil
		},
	))
	o.sched.Add(scheduler.NewPeriodic(
		"process_decisions", scfg.DecisionIntervalSec,
		"Archive human-approved and human-rejected requests",
		func() error {
			o.approvals.ProcessDecisions()
			return nil
		},
	))
	o.sched.Add(scheduler.NewPeriodic(
		"check_expired", scfg.ExpiryIntervalSec,
		"Flag expired approval requests (advisory only)",
		func() error {
			o.approvals.CheckExpired()
			return nil
		},
	))
	o.sched.Add(scheduler.NewDaily(
		"morning_briefing", scfg.BriefingHour, scfg.BriefingMinute,
		"Write the daily briefing into Briefings",
		o.writeBriefing,
	))
}

// Start launches the watcher goroutines. A watcher whose Init fails
// declines to start: it is logged and skipped, and the rest of the
// system runs without it.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.group, _ = errgroup.WithContext(o.ctx)
	o.running = true

	for _, rw := range o.watchers {
		rw := rw
		if err := rw.w.Init(); err != nil {
			o.log.Warn().Err(err).Str("watcher", rw.w.Name()).Msg("watcher declined to start")
			continue
		}
		rw.active = true
		runner := watcher.NewRunner(rw.w, rw.interval, o.journal, o.log)
		o.group.Go(func() error {
			runner.Run(o.ctx)
			return nil
		})
	}

	o.logJournal("orchestrator_started", map[string]any{
		"vault_path": o.store.Root(),
		"dev_mode":   o.cfg.Orchestrator.DevMode,
		"watchers":   o.activeWatcherNames(),
	})
}

// Run blocks in the cycle loop until ctx is cancelled, then stops.
func (o *Orchestrator) Run(ctx context.Context) {
	o.Start(ctx)
	o.log.Info().
		Str("vault", o.store.Root()).
		Int("cycle_interval_sec", o.cfg.Orchestrator.CycleIntervalSec).
		Bool("dev_mode", o.cfg.Orchestrator.DevMode).
		Msg("orchestrator starting")

	interval := time.Duration(o.cfg.Orchestrator.CycleIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		o.RunCycle()
		select {
		case <-o.ctx.Done():
			o.Stop()
			return
		case <-ticker.C:
		}
	}
}

// CycleSummary reports what one cycle did.
type CycleSummary struct {
	Timestamp         string   `json:"timestamp"`
	PendingItems      int      `json:"pending_items"`
	ApprovedProcessed int      `json:"approved_processed"`
	TasksRun          []string `json:"tasks_run,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// RunCycle executes a single processing cycle: run due scheduled tasks,
// drain already-approved action items, recompute counters and write the
// summary. An unexpected panic escaping the per-tick routine is caught
// and journaled as a cycle error; the process keeps running and retries
// on the next tick.
func (o *Orchestrator) RunCycle() (summary CycleSummary) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("cycle failed")
			summary = CycleSummary{
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Error:     fmt.Sprintf("%v", r),
			}
			o.logJournal("cycle_error", map[string]any{"error": summary.Error})
		}
	}()

	// Drain Approved before the scheduled decision pass so the summary
	// reflects the items this cycle archived.
	approvedProcessed := o.processApprovedItems()
	tasksRun := o.sched.CheckAndRun()

	summary = CycleSummary{
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		PendingItems:      o.store.Count(vault.NeedsAction, "*.md"),
		ApprovedProcessed: approvedProcessed,
		TasksRun:          tasksRun,
	}

	o.updateDashboard()
	o.logJournal("cycle_complete", map[string]any{
		"pending_items":      summary.PendingItems,
		"approved_processed": summary.ApprovedProcessed,
		"tasks_run":          summary.TasksRun,
	})
	return summary
}

// processApprovedItems drains action items found directly in Approved,
// including items that bypassed planning and were approved by hand.
// Each is journaled and archived.
func (o *Orchestrator) processApprovedItems() int {
	count := 0
	for _, item := range o.store.List(vault.Approved, "*.md") {
		name := filepath.Base(item)
		o.log.Info().Str("file", name).Msg("processing approved item")
		if o.cfg.Orchestrator.DevMode {
			o.log.Info().Str("file", name).Msg("dev mode: would execute action")
		}
		dest, err := o.store.MoveToDone(item)
		if err != nil {
			o.log.Error().Err(err).Str("file", name).Msg("archive failed")
			continue
		}
		o.logJournal("file_moved_to_done", map[string]any{
			"source":      name,
			"destination": filepath.Base(dest),
		})
		count++
	}
	return count
}

// Stop shuts everything down. Idempotent: a second call is a no-op.
// Watchers and the cycle loop observe cancellation at their next wait
// boundary; watcher OS resources are released before the final summary
// is written.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.log.Info().Msg("shutting down orchestrator")
		o.running = false
		if o.cancel != nil {
			o.cancel()
		}

		for _, rw := range o.watchers {
			if !rw.active {
				continue
			}
			if err := rw.w.Close(); err != nil {
				o.log.Warn().Err(err).Str("watcher", rw.w.Name()).Msg("watcher close failed")
			}
		}

		if o.group != nil {
			done := make(chan struct{})
			go func() {
				_ = o.group.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				o.log.Warn().Msg("shutdown timeout waiting for watchers")
			}
		}

		o.updateDashboard()
		o.logJournal("orchestrator_stopped", map[string]any{})
		o.log.Info().Msg("orchestrator stopped")
	})
}

func (o *Orchestrator) activeWatcherNames() []string {
	names := make([]string, 0, len(o.watchers))
	for _, rw := range o.watchers {
		if rw.active {
			names = append(names, rw.w.Name())
		}
	}
	return names
}

func (o *Orchestrator) logJournal(actionType string, details map[string]any) {
	if err := o.journal.Append(journal.ActorOrchestrator, actionType, details); err != nil {
		o.log.Error().Err(err).Msg("journal append failed")
	}
}
