package journal

import (
	"context"
	"time"
)

// Journal records fetch attempts for diagnostics. It is never read back to
// restore a reading.
type Journal interface {
	Record(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
	Enabled() bool
}

// Repository is the storage behind a Journal.
type Repository interface {
	Insert(entry *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Entry is one fetch attempt. Temperature is set only for successful
// attempts.
type Entry struct {
	AttemptID   string        `json:"attempt_id"`
	CycleID     string        `json:"cycle_id"`
	Attempt     int           `json:"attempt"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Outcome     string        `json:"outcome"`
	Temperature *float64      `json:"temperature,omitempty"`
	Received    int           `json:"received"`
	Dropped     int           `json:"dropped"`
	Detail      string        `json:"detail,omitempty"`
}
