package telemetry

import "codeberg.org/mutker/tempstation/internal/scheduler"

// Recorder is what the scheduler reports into.
var _ scheduler.Recorder = (*Collector)(nil)

// Flag is a named binary condition exported as a 0/1 gauge.
type Flag interface {
	Name() string
	IsSet() bool
}

// Reading is a temperature cell exported as a gauge; NaN while it holds no
// data.
type Reading interface {
	Load() (float64, bool)
}
