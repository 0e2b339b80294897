package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/scheduler"
)

const recordTimeout = 5 * time.Second

// Recorder writes scheduler attempts into a Journal.
type Recorder struct {
	journal Journal
	log     logger.Logger
}

func NewRecorder(j Journal, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.With("journal")
	}
	return &Recorder{journal: j, log: log}
}

// EntryFromAttempt converts a finished attempt.
func EntryFromAttempt(a scheduler.Attempt) *Entry {
	e := &Entry{
		AttemptID: a.ID,
		CycleID:   a.CycleID,
		Attempt:   a.Number,
		StartedAt: a.Started,
		Duration:  a.Outcome.Duration,
		Outcome:   a.Outcome.Kind.String(),
		Received:  a.Outcome.Received,
		Dropped:   a.Outcome.Dropped,
	}
	if a.Outcome.OK() {
		v := a.Outcome.Temperature
		e.Temperature = &v
	}
	if a.Outcome.Err != nil {
		e.Detail = a.Outcome.Err.Error()
	}
	return e
}

func (r *Recorder) RecordAttempt(a scheduler.Attempt) {
	if !r.journal.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.journal.Record(ctx, EntryFromAttempt(a)); err != nil {
		r.log.Warn().Err(err).Str("attempt_id", a.ID).Msg("Failed to journal attempt")
	}
}

func (*Recorder) RecordCycle(scheduler.Cycle) {}
