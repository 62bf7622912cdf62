package stores

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder feeds a plan walk's lifecycle events into the history store. It
// satisfies plan.Observer. Store failures are logged and swallowed; history
// is never allowed to abort an install.
type Recorder struct {
	store Store
	runID string
	log   zerolog.Logger

	// synopses carries each started action's synopsis to its finish event.
	// Walks deliver events from a single goroutine, so no lock.
	synopses map[string]string
}

// NewRecorder starts recording for the given run, which must already exist
// in the store.
func NewRecorder(store Store, runID string, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, runID: runID, log: log, synopses: map[string]string{}}
}

func (r *Recorder) ActionStarted(kind, synopsis, op string) {
	r.synopses[kind+"/"+op] = synopsis
	r.log.Info().Str("action", kind).Str("op", op).Msg(synopsis)
}

func (r *Recorder) ActionFinished(kind, op string, err error, elapsed time.Duration) {
	event := &ActionEvent{
		RunID:      r.runID,
		ActionKind: kind,
		Synopsis:   r.synopses[kind+"/"+op],
		Op:         op,
		Outcome:    "ok",
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if err != nil {
		event.Outcome = "error"
		msg := err.Error()
		event.Error = &msg
	}
	if dbErr := r.store.AppendActionEvent(context.Background(), event); dbErr != nil {
		r.log.Warn().Err(dbErr).Msg("Failed to record action event")
	}
}
