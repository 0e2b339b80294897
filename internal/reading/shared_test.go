package reading_test

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/tempstation/internal/reading"
	"github.com/stretchr/testify/assert"
)

func TestSharedStartsEmpty(t *testing.T) {
	s := reading.NewShared()

	v, ok := s.Load()
	assert.False(t, ok)
	assert.Equal(t, reading.NoData, v)
	assert.True(t, s.UpdatedAt().IsZero())
	assert.Zero(t, s.Updates())
}

func TestPublishKeepsLatest(t *testing.T) {
	s := reading.NewShared()
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s.Publish(3.5, first)
	s.Publish(-7.25, first.Add(5*time.Minute))

	v, ok := s.Load()
	assert.True(t, ok)
	assert.Equal(t, -7.25, v)
	assert.True(t, s.UpdatedAt().Equal(first.Add(5*time.Minute)))
	assert.Equal(t, uint64(2), s.Updates())
}

func TestConcurrentReaders(t *testing.T) {
	s := reading.NewShared()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Publish(float64(i), time.Now())
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v, ok := s.Load()
				if ok {
					assert.GreaterOrEqual(t, v, 0.0)
				}
			}
		}()
	}

	wg.Wait()
	v, _ := s.Load()
	assert.Equal(t, 999.0, v)
}
