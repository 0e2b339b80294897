package scheduler

import (
	"context"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/readiness"
	"codeberg.org/mutker/tempstation/internal/reading"
	"codeberg.org/mutker/tempstation/internal/weather"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Fetcher performs a single attempt.
type Fetcher interface {
	Fetch(ctx context.Context) weather.Outcome
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	MaxRetries      int
	RetryInterval   time.Duration
	RefreshInterval time.Duration
}

// Scheduler runs refresh cycles: wait for the network, try up to MaxRetries
// attempts spaced by RetryInterval, publish on success, then idle for
// RefreshInterval.
type Scheduler struct {
	fetcher   Fetcher
	cfg       Config
	network   *readiness.Flag
	ready     *readiness.Flag
	shared    *reading.Shared
	recorders []Recorder
	sleep     SleepFunc
	now       func() time.Time
	log       logger.Logger
}

type Option func(*Scheduler)

// WithSleep replaces the timer used for retry and refresh waits.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

// WithRecorder adds an observer of attempts and cycles.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorders = append(s.recorders, r)
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

func New(fetcher Fetcher, cfg Config, network, ready *readiness.Flag, shared *reading.Shared, opts ...Option) *Scheduler {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	s := &Scheduler{
		fetcher: fetcher,
		cfg:     cfg,
		network: network,
		ready:   ready,
		shared:  shared,
		sleep:   Sleep,
		now:     time.Now,
		log:     logger.With("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sleep waits on a timer, returning early with the context error.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loops over refresh cycles until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Int("max_retries", s.cfg.MaxRetries).
		Dur("retry_interval", s.cfg.RetryInterval).
		Dur("refresh_interval", s.cfg.RefreshInterval).
		Msg("Starting weather scheduler")

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			return s.stopped(err)
		}
		if err := s.sleep(ctx, s.cfg.RefreshInterval); err != nil {
			return s.stopped(err)
		}
	}
}

func (s *Scheduler) stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Info().Msg("Weather scheduler stopped")
		return nil
	}
	return err
}

// RunCycle runs one refresh cycle without the trailing refresh wait. The
// error is non-nil only when ctx ends the cycle early.
func (s *Scheduler) RunCycle(ctx context.Context) (Cycle, error) {
	s.ready.Clear()

	if !s.network.IsSet() {
		s.log.Debug().Str("flag", s.network.Name()).Msg("Waiting for network")
	}
	if err := s.network.Wait(ctx); err != nil {
		return Cycle{}, errors.New().Wrap(errors.ErrCanceled, err)
	}

	cycle := Cycle{ID: uuid.NewString(), Started: s.now()}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := &sleepTimer{ctx: cctx, cancel: cancel, sleep: s.sleep}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryInterval), uint64(s.cfg.MaxRetries-1)),
		cctx,
	)

	operation := func() error {
		cycle.Attempts++
		attempt := Attempt{
			CycleID: cycle.ID,
			ID:      uuid.NewString(),
			Number:  cycle.Attempts,
			Started: s.now(),
		}
		attempt.Outcome = s.fetcher.Fetch(cctx)
		s.recordAttempt(attempt)

		if attempt.Outcome.OK() {
			s.shared.Publish(attempt.Outcome.Temperature, s.now())
			s.ready.Set()
			cycle.Success = true
			cycle.Temperature = attempt.Outcome.Temperature
			return nil
		}

		s.log.Warn().
			Str("cycle", cycle.ID).
			Int("attempt", attempt.Number).
			Int("max_retries", s.cfg.MaxRetries).
			Str("outcome", attempt.Outcome.Kind.String()).
			AnErr("error", attempt.Outcome.Err).
			Msg("Weather fetch failed")

		if attempt.Outcome.Err != nil {
			return attempt.Outcome.Err
		}
		return errors.New().WithMessage(errors.ErrInternal, attempt.Outcome.Kind.String())
	}

	notify := func(_ error, wait time.Duration) {
		s.log.Debug().Str("cycle", cycle.ID).Dur("wait", wait).Msg("Retrying weather fetch")
	}

	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err != nil && !cycle.Success {
		if cerr := timer.canceled(ctx); cerr != nil {
			cycle.Duration = s.now().Sub(cycle.Started)
			s.recordCycle(cycle)
			return cycle, errors.New().Wrap(errors.ErrCanceled, cerr)
		}
	}

	cycle.Duration = s.now().Sub(cycle.Started)
	s.recordCycle(cycle)

	if cycle.Success {
		s.log.Info().
			Str("cycle", cycle.ID).
			Int("attempts", cycle.Attempts).
			Float64("temperature", cycle.Temperature).
			Msg("Outside temperature updated")
	} else {
		s.log.Error().
			Str("cycle", cycle.ID).
			Int("attempts", cycle.Attempts).
			Msg("Retries exhausted, keeping previous reading")
	}

	return cycle, nil
}

func (s *Scheduler) recordAttempt(a Attempt) {
	for _, r := range s.recorders {
		r.RecordAttempt(a)
	}
}

func (s *Scheduler) recordCycle(c Cycle) {
	for _, r := range s.recorders {
		r.RecordCycle(c)
	}
}

// sleepTimer drives backoff waits through a SleepFunc. Start blocks for the
// whole wait; a wait cut short cancels the cycle instead of firing.
type sleepTimer struct {
	ctx    context.Context
	cancel context.CancelFunc
	sleep  SleepFunc
	fired  chan time.Time
	err    error
}

func (t *sleepTimer) Start(d time.Duration) {
	t.fired = make(chan time.Time, 1)

	err := t.sleep(t.ctx, d)
	if err == nil {
		err = t.ctx.Err()
	}
	if err != nil {
		t.err = err
		t.cancel()
		return
	}
	t.fired <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.fired
}

// canceled returns why the cycle ended early, or nil if it ran to the end.
func (t *sleepTimer) canceled(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return t.err
}
