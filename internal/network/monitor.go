// Package network decides when outbound requests are worth attempting.
package network

import (
	"context"
	"net"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/readiness"
)

const (
	ErrProbeFailed = errors.ErrorCode("network_probe_failed")

	defaultInterval = 10 * time.Second
	defaultTimeout  = 3 * time.Second
)

type Config struct {
	// Address is the host:port probed with a TCP connect.
	Address  string
	Interval time.Duration
	Timeout  time.Duration
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Monitor keeps a readiness flag in sync with a periodic TCP probe.
type Monitor struct {
	cfg    Config
	flag   *readiness.Flag
	dialer Dialer
	log    logger.Logger
}

type Option func(*Monitor)

func WithDialer(d Dialer) Option {
	return func(m *Monitor) {
		m.dialer = d
	}
}

func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

func NewMonitor(cfg Config, flag *readiness.Flag, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	m := &Monitor{
		cfg:    cfg,
		flag:   flag,
		dialer: &net.Dialer{},
		log:    logger.With("network"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Probe opens and closes one TCP connection to the configured address.
func (m *Monitor) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.cfg.Address)
	if err != nil {
		return errors.New().Wrap(ErrProbeFailed, err).WithData(m.cfg.Address)
	}
	return conn.Close()
}

// Check probes once and updates the flag, logging transitions.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.Probe(ctx)
	was := m.flag.IsSet()

	if err != nil {
		m.flag.Clear()
		if was {
			m.log.Warn().Err(err).Msg("Network lost")
		} else {
			m.log.Debug().Err(err).Msg("Network not ready")
		}
		return false
	}

	m.flag.Set()
	if !was {
		m.log.Info().Str("address", m.cfg.Address).Msg("Network ready")
	}
	return true
}

// Run checks immediately and then every Interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
