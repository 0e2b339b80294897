package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/tempstation/internal/logger"
	"github.com/go-co-op/gocron"
)

// PruneOnce removes entries older than retention.
func PruneOnce(ctx context.Context, j Journal, retention time.Duration, now time.Time, log logger.Logger) {
	if retention <= 0 || !j.Enabled() {
		return
	}

	n, err := j.Prune(ctx, now.Add(-retention))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune journal")
		return
	}
	if n > 0 {
		log.Debug().Int64("deleted", n).Dur("retention", retention).Msg("Pruned journal")
	}
}

// SchedulePrune registers a pruning job that runs every cfg.PruneEvery.
func SchedulePrune(s *gocron.Scheduler, j Journal, cfg Config, log logger.Logger) (*gocron.Job, error) {
	if log == nil {
		log = logger.With("journal")
	}

	every := cfg.PruneEvery
	if every <= 0 {
		every = defaultPruneEvery
	}

	return s.Every(every).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		PruneOnce(ctx, j, cfg.Retention, time.Now(), log)
	})
}
