// Package scheduler runs named periodic and once-daily tasks. Tasks
// execute synchronously within the caller's goroutine; callbacks are
// assumed non-reentrant and may touch shared vault state.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/journal"
)

// Task is one scheduled unit of work. Set IntervalSec for periodic
// mode, or RunAtHour/RunAtMinute for once-daily mode; the two are
// mutually exclusive.
type Task struct {
	Name        string
	Callback    func() error
	IntervalSec int
	RunAtHour   int // -1 when periodic
	RunAtMinute int
	Description string

	lastRun    time.Time
	runCount   int
	errorCount int
}

// NewPeriodic creates a task that runs every intervalSec seconds.
func NewPeriodic(name string, intervalSec int, description string, cb func() error) *Task {
	return &Task{
		Name:        name,
		Callback:    cb,
		IntervalSec: intervalSec,
		RunAtHour:   -1,
		Description: description,
	}
}

// NewDaily creates a task that runs once per UTC calendar day, within
// the configured hour at or after the minute. A process that is down
// for that whole hour skips the day; there is no catch-up run.
func NewDaily(name string, hour, minute int, description string, cb func() error) *Task {
	return &Task{
		Name:        name,
		Callback:    cb,
		RunAtHour:   hour,
		RunAtMinute: minute,
		Description: description,
	}
}

// ShouldRun reports whether the task is due at the given time.
// Periodic: never run, or interval elapsed. Daily: the configured
// hour/minute has been reached and the task has not yet run today
// (compared by calendar date, so it fires at most once per day no
// matter how often the check runs within the matching minute).
func (t *Task) ShouldRun(now time.Time) bool {
	if t.IntervalSec > 0 {
		if t.lastRun.IsZero() {
			return true
		}
		return now.Sub(t.lastRun) >= time.Duration(t.IntervalSec)*time.Second
	}

	if t.RunAtHour >= 0 {
		if !t.lastRun.IsZero() && sameDate(t.lastRun, now) {
			return false
		}
		return now.Hour() == t.RunAtHour && now.Minute() >= t.RunAtMinute
	}

	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Execute runs the callback. Success and failure both count as "ran":
// lastRun advances either way, so a failing task stays on its normal
// schedule with no backoff and no disabling. A panicking callback is
// contained and counted as a failure.
func (t *Task) Execute(now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
		t.lastRun = now
		t.runCount++
		if err != nil {
			t.errorCount++
		}
	}()
	return t.Callback()
}

// RunCount returns how many times the task has executed.
func (t *Task) RunCount() int { return t.runCount }

// ErrorCount returns how many executions failed.
func (t *Task) ErrorCount() int { return t.errorCount }

// LastRun returns the time of the last execution attempt (zero if the
// task has never run).
func (t *Task) LastRun() time.Time { return t.lastRun }

// Scheduler holds the task registry. Not safe for concurrent mutation;
// the orchestrator registers tasks at startup and runs CheckAndRun from
// a single goroutine.
type Scheduler struct {
	tasks   []*Task
	byName  map[string]*Task
	journal *journal.Writer
	log     zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func New(jw *journal.Writer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		byName:  make(map[string]*Task),
		journal: jw,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a task. Re-adding a name replaces the previous task but
// keeps its registry position.
func (s *Scheduler) Add(task *Task) {
	if prev, ok := s.byName[task.Name]; ok {
		for i, t := range s.tasks {
			if t == prev {
				s.tasks[i] = task
				break
			}
		}
	} else {
		s.tasks = append(s.tasks, task)
	}
	s.byName[task.Name] = task
	s.log.Info().Str("task", task.Name).Str("description", task.Description).Msg("registered task")
}

// Remove deletes a task from the registry.
func (s *Scheduler) Remove(name string) {
	task, ok := s.byName[name]
	if !ok {
		return
	}
	delete(s.byName, name)
	for i, t := range s.tasks {
		if t == task {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
}

// Tasks returns the registered tasks in registration order.
func (s *Scheduler) Tasks() []*Task {
	return append([]*Task(nil), s.tasks...)
}

// CheckAndRun iterates the registry once and executes every due task
// synchronously, in registration order. A task's failure is isolated:
// it is counted and journaled but never prevents sibling tasks from
// running in this pass or future ones. Returns the names that ran.
func (s *Scheduler) CheckAndRun() []string {
	now := s.now()
	var executed []string

	for _, task := range s.tasks {
		if !task.ShouldRun(now) {
			continue
		}

		err := task.Execute(now)
		actionType := "scheduled_task_executed"
		result := "success"
		if err != nil {
			actionType = "scheduled_task_failed"
			result = "failure"
			s.log.Error().Str("task", task.Name).Err(err).Msg("scheduled task failed")
		} else {
			s.log.Info().Str("task", task.Name).Int("run_count", task.runCount).Msg("scheduled task completed")
		}

		details := map[string]any{
			"task_name":   task.Name,
			"run_count":   task.runCount,
			"error_count": task.errorCount,
			"result":      result,
		}
		if err != nil {
			details["error"] = err.Error()
		}
		if jerr := s.journal.Append(journal.ActorScheduler, actionType, details); jerr != nil {
			s.log.Error().Err(jerr).Msg("journal append failed")
		}

		executed = append(executed, task.Name)
	}

	return executed
}

// Run loops CheckAndRun until ctx is cancelled, waiting checkInterval
// between passes. The wait is cancellable.
func (s *Scheduler) Run(ctx context.Context, checkInterval time.Duration) {
	s.log.Info().Int("tasks", len(s.tasks)).Msg("scheduler starting")
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		s.CheckAndRun()
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// TaskStatus is a point-in-time snapshot of one task.
type TaskStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LastRun     string `json:"last_run,omitempty"`
	RunCount    int    `json:"run_count"`
	ErrorCount  int    `json:"error_count"`
}

// Status snapshots every task for dashboards and the status command.
func (s *Scheduler) Status() []TaskStatus {
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStatus{
			Name:        t.Name,
			Description: t.Description,
			RunCount:    t.runCount,
			ErrorCount:  t.errorCount,
		}
		if !t.lastRun.IsZero() {
			st.LastRun = t.lastRun.Format(time.RFC3339)
		}
		out = append(out, st)
	}
	return out
}
