package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/msageha/vaultd/internal/journal"
)

// Runner drives one Watcher: poll, materialize each result, journal per
// item, and keep looping no matter what the source throws at it. A
// single bad item or a transient source failure never terminates the
// loop; only context cancellation does.
type Runner struct {
	w        Watcher
	interval time.Duration
	journal  *journal.Writer
	log      zerolog.Logger
}

func NewRunner(w Watcher, interval time.Duration, jw *journal.Writer, log zerolog.Logger) *Runner {
	return &Runner{
		w:        w,
		interval: interval,
		journal:  jw,
		log:      log.With().Str("watcher", w.Name()).Logger(),
	}
}

// Run executes the watch loop until ctx is cancelled. The wait between
// iterations is cancellable: a stop signal interrupts it immediately
// instead of after the full interval.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Msg("watcher started")

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		r.iterate()

		timer.Reset(r.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			r.log.Info().Msg("watcher stopped")
			return
		case <-timer.C:
		}
	}
}

// iterate performs one poll/materialize pass.
func (r *Runner) iterate() {
	items, err := r.w.Poll()
	if err != nil {
		r.log.Error().Err(err).Msg("poll failed")
		r.logJournal("watcher_error", map[string]any{
			"watcher": r.w.Name(),
			"error":   err.Error(),
			"result":  "failure",
		})
		return
	}

	for _, item := range items {
		path, err := r.w.Materialize(item)
		if err != nil {
			r.log.Error().Err(err).Str("item", item.ID).Msg("materialize failed")
			r.logJournal("watcher_error", map[string]any{
				"watcher": r.w.Name(),
				"item":    item.ID,
				"error":   err.Error(),
				"result":  "failure",
			})
			continue
		}
		r.log.Info().Str("file", path).Msg("created action file")
		r.logJournal("file_created", map[string]any{
			"watcher": r.w.Name(),
			"file":    path,
			"result":  "success",
		})
	}
}

func (r *Runner) logJournal(actionType string, details map[string]any) {
	if err := r.journal.Append(journal.ActorWatcher, actionType, details); err != nil {
		r.log.Error().Err(err).Msg("journal append failed")
	}
}
