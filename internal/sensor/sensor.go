// Package sensor samples the device's local inside temperature and light
// level from sysfs-style files.
package sensor

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/reading"
	"github.com/go-co-op/gocron"
	"go.uber.org/atomic"
)

const (
	ErrReadSensor    = errors.ErrorCode("sensor_read_failed")
	ErrInvalidSample = errors.ErrorCode("sensor_invalid_sample")

	noLevel = -1
)

type Config struct {
	// TemperaturePath holds an integer in millidegrees Celsius.
	TemperaturePath string
	// LightPath holds an integer illuminance in lux.
	LightPath       string
	LightThresholds []int
	Interval        time.Duration
	// Window is the number of temperature samples averaged.
	Window int
}

// Sampler reads both sensors on each tick. Missing paths disable the
// corresponding sensor.
type Sampler struct {
	cfg     Config
	inside  *reading.Shared
	level   *atomic.Int64
	observe func(level int)
	log     logger.Logger

	mu      sync.Mutex
	samples []float64
	next    int
}

type Option func(*Sampler)

// WithLightObserver is called with every new light level.
func WithLightObserver(fn func(level int)) Option {
	return func(s *Sampler) {
		s.observe = fn
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Sampler) {
		s.log = log
	}
}

func New(cfg Config, inside *reading.Shared, opts ...Option) *Sampler {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	thresholds := append([]int(nil), cfg.LightThresholds...)
	sort.Ints(thresholds)
	cfg.LightThresholds = thresholds

	s := &Sampler{
		cfg:     cfg,
		inside:  inside,
		level:   atomic.NewInt64(noLevel),
		log:     logger.With("sensor"),
		samples: make([]float64, 0, cfg.Window),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LevelFor maps lux to a level index: the number of thresholds at or below
// lux. The result is in [0, len(thresholds)].
func LevelFor(lux int64, thresholds []int) int {
	return sort.Search(len(thresholds), func(i int) bool {
		return int64(thresholds[i]) > lux
	})
}

// LightLevels is the number of distinct light levels.
func (s *Sampler) LightLevels() int {
	return len(s.cfg.LightThresholds) + 1
}

// LightLevel returns the last light level and whether one was read.
func (s *Sampler) LightLevel() (int, bool) {
	v := s.level.Load()
	return int(v), v != noLevel
}

// SampleOnce reads both sensors. Errors are logged; a failed read keeps the
// previous values.
func (s *Sampler) SampleOnce(now time.Time) {
	if s.cfg.TemperaturePath != "" {
		if err := s.sampleTemperature(now); err != nil {
			s.log.Warn().Err(err).Str("path", s.cfg.TemperaturePath).Msg("Failed to read inside temperature")
		}
	}
	if s.cfg.LightPath != "" {
		if err := s.sampleLight(); err != nil {
			s.log.Warn().Err(err).Str("path", s.cfg.LightPath).Msg("Failed to read light level")
		}
	}
}

func (s *Sampler) sampleTemperature(now time.Time) error {
	milli, err := readInt(s.cfg.TemperaturePath)
	if err != nil {
		return err
	}
	celsius := float64(milli) / 1000

	s.mu.Lock()
	if len(s.samples) < s.cfg.Window {
		s.samples = append(s.samples, celsius)
	} else {
		s.samples[s.next] = celsius
	}
	s.next = (s.next + 1) % s.cfg.Window
	var sum float64
	for _, v := range s.samples {
		sum += v
	}
	avg := sum / float64(len(s.samples))
	s.mu.Unlock()

	s.inside.Publish(avg, now)
	s.log.Debug().Float64("sample", celsius).Float64("average", avg).Msg("Inside temperature sampled")
	return nil
}

func (s *Sampler) sampleLight() error {
	lux, err := readInt(s.cfg.LightPath)
	if err != nil {
		return err
	}

	level := LevelFor(lux, s.cfg.LightThresholds)
	if prev := s.level.Swap(int64(level)); prev != int64(level) {
		s.log.Debug().Int64("lux", lux).Int("level", level).Msg("Light level changed")
	}
	if s.observe != nil {
		s.observe(level)
	}
	return nil
}

// Schedule registers SampleOnce on g every cfg.Interval, starting
// immediately. It returns nil when both sensors are disabled.
func (s *Sampler) Schedule(g *gocron.Scheduler) (*gocron.Job, error) {
	if s.cfg.TemperaturePath == "" && s.cfg.LightPath == "" {
		s.log.Info().Msg("No local sensors configured")
		return nil, nil
	}

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return g.Every(interval).SingletonMode().Do(func() {
		s.SampleOnce(time.Now())
	})
}

func readInt(path string) (int64, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadSensor, err)
	}

	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, errFactory.Wrap(ErrInvalidSample, err)
	}
	return v, nil
}
