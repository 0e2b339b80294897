// Package reading holds the process-wide published temperature values.
package reading

import (
	"math"
	"time"

	"go.uber.org/atomic"
)

// NoData is the sentinel published before the first valid reading.
const NoData = -1000.0

// Shared is a single-writer, multi-reader temperature cell. Each field is
// published atomically on its own; readers may briefly see a new value with
// the previous update time.
type Shared struct {
	value   *atomic.Float64
	updated *atomic.Int64
	count   *atomic.Uint64
}

func NewShared() *Shared {
	return &Shared{
		value:   atomic.NewFloat64(NoData),
		updated: atomic.NewInt64(0),
		count:   atomic.NewUint64(0),
	}
}

// Publish stores a new value. Only the owning writer calls it.
func (s *Shared) Publish(v float64, at time.Time) {
	s.value.Store(v)
	s.updated.Store(at.UnixNano())
	s.count.Inc()
}

// Load returns the current value and whether it is a real reading.
func (s *Shared) Load() (float64, bool) {
	v := s.value.Load()
	return v, Valid(v)
}

// UpdatedAt returns the time of the last publish, zero if none.
func (s *Shared) UpdatedAt() time.Time {
	ns := s.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Updates returns how many values have been published.
func (s *Shared) Updates() uint64 {
	return s.count.Load()
}

// Valid reports whether v is a real reading rather than the sentinel.
func Valid(v float64) bool {
	return v != NoData && !math.IsNaN(v)
}
