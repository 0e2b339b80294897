package scheduler

import (
	"time"

	"codeberg.org/mutker/tempstation/internal/weather"
)

// Attempt is one completed fetch within a cycle.
type Attempt struct {
	CycleID string
	ID      string
	// Number is 1-based within the cycle.
	Number  int
	Started time.Time
	Outcome weather.Outcome
}

// Cycle summarizes one refresh cycle.
type Cycle struct {
	ID          string
	Started     time.Time
	Duration    time.Duration
	Attempts    int
	Success     bool
	Temperature float64
}

// Recorder observes attempts and cycles. Calls happen on the scheduler
// goroutine and must not block for long.
type Recorder interface {
	RecordAttempt(Attempt)
	RecordCycle(Cycle)
}
