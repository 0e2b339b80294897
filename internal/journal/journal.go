package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopJournal struct{}

func NewService(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.With("journal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Attempt journal disabled, using no-op journal")
		return &noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create journal repository")
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, entry *Entry) error {
	errFactory := errors.New()

	if entry == nil || entry.AttemptID == "" || entry.Attempt < 1 {
		return errFactory.WithData(ErrInvalidEntry, entry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Insert(entry); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	return nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	return s.repo.Recent(ctx, limit)
}

func (s *service) Prune(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Prune(ctx, before)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*service) Enabled() bool {
	return true
}

func (*noopJournal) Record(context.Context, *Entry) error {
	return nil
}

func (*noopJournal) Recent(context.Context, int) ([]Entry, error) {
	return []Entry{}, nil
}

func (*noopJournal) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (*noopJournal) Close() error {
	return nil
}

func (*noopJournal) Enabled() bool {
	return false
}
