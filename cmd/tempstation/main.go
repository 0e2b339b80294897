package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codeberg.org/mutker/tempstation/internal/config"
	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/journal"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/network"
	"codeberg.org/mutker/tempstation/internal/pid"
	"codeberg.org/mutker/tempstation/internal/readiness"
	"codeberg.org/mutker/tempstation/internal/reading"
	"codeberg.org/mutker/tempstation/internal/scheduler"
	"codeberg.org/mutker/tempstation/internal/sensor"
	"codeberg.org/mutker/tempstation/internal/telemetry"
	"codeberg.org/mutker/tempstation/internal/weather"
	"codeberg.org/mutker/tempstation/internal/web"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfg     *config.Config
	ring    *logger.Ring
	logFile *os.File
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	ring = logger.NewRing(cfg.Log.BufferSize)
	logFile, err = openLogFile(cfg.Log.File)
	if err != nil {
		fmt.Printf("failed to open log file: %v\n", err)
		os.Exit(1)
	}

	opts := logger.Options{
		Debug:     cfg.Debug,
		Verbose:   cfg.Verbose,
		Level:     cfg.Log.Level,
		IsService: logger.IsService(),
		Ring:      ring,
	}
	if logFile != nil {
		opts.File = logFile
	}
	logger.Init(opts)
	logger.Debug().Str("config", cfg.String()).Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	if err := run(ctx); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("Error in main loop")
		} else {
			logger.Error().Err(err).Msg("Error in main loop")
		}
		exitCode = 1
	}
	stop()

	cleanup()
	os.Exit(exitCode)
}

func run(ctx context.Context) error {
	logger.Info().Str("version", version).Msg("Starting tempstation")

	outside := reading.NewShared()
	inside := reading.NewShared()
	networkReady := readiness.New("network")
	readingReady := readiness.New("reading")

	collector, err := telemetry.New(telemetry.DefaultConfig())
	if err != nil {
		return err
	}
	for _, f := range []*readiness.Flag{networkReady, readingReady} {
		if err := collector.BindFlag(f); err != nil {
			return err
		}
	}
	if err := collector.BindReading("outside", outside); err != nil {
		return err
	}
	if err := collector.BindReading("inside", inside); err != nil {
		return err
	}

	jcfg := journalConfig()
	attempts, err := journal.NewService(jcfg, logger.With("journal"))
	if err != nil {
		return err
	}
	defer func() {
		if err := attempts.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close journal")
		}
	}()

	transport, err := weather.NewHTTPTransport(weather.TransportConfig{
		Timeout:    cfg.Weather.TimeoutDuration(),
		ChunkSize:  cfg.Weather.ChunkSize,
		CACertPath: cfg.Weather.CACert,
	}, logger.With("weather"))
	if err != nil {
		return err
	}
	fetcher := weather.NewFetcher(transport, weather.FetcherConfig{
		BaseURL:    cfg.Weather.BaseURL,
		APIKey:     cfg.Weather.APIKey,
		Location:   cfg.Weather.Location,
		BufferSize: cfg.Weather.BufferSize,
	}, logger.With("weather"))

	sched := scheduler.New(fetcher, scheduler.Config{
		MaxRetries:      cfg.Weather.MaxRetries,
		RetryInterval:   cfg.Weather.RetryDuration(),
		RefreshInterval: cfg.Weather.RefreshDuration(),
	}, networkReady, readingReady, outside,
		scheduler.WithRecorder(collector),
		scheduler.WithRecorder(journal.NewRecorder(attempts, logger.With("journal"))),
	)

	sampler := sensor.New(sensor.Config{
		TemperaturePath: cfg.Sensor.TemperaturePath,
		LightPath:       cfg.Sensor.LightPath,
		LightThresholds: cfg.Sensor.LightThresholds,
		Interval:        cfg.Sensor.IntervalDuration(),
		Window:          cfg.Sensor.Window,
	}, inside, sensor.WithLightObserver(collector.SetLightLevel))

	jobs := gocron.NewScheduler(time.UTC)
	if _, err := sampler.Schedule(jobs); err != nil {
		return err
	}
	if attempts.Enabled() {
		if _, err := journal.SchedulePrune(jobs, attempts, jcfg, logger.With("journal")); err != nil {
			return err
		}
	}
	jobs.StartAsync()
	defer jobs.Stop()

	monitor := network.NewMonitor(network.Config{
		Address:  cfg.ProbeTarget(),
		Interval: cfg.Network.IntervalDuration(),
		Timeout:  cfg.Network.TimeoutDuration(),
	}, networkReady)

	var logPath string
	if logFile != nil {
		logPath = logFile.Name()
	}
	server, err := web.New(web.Config{
		Listen:    cfg.Server.Listen,
		IndexPath: cfg.Server.Index,
	}, web.Sources{
		Outside: outside,
		Inside:  inside,
		Light:   sampler,
		Network: networkReady,
		Ready:   readingReady,
		Logs:    ring,
		LogFile: logPath,
		Journal: attempts,
		Metrics: collector.Handler(),
		Version: version,
	}, logger.With("web"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	return g.Wait()
}

func journalConfig() journal.Config {
	jcfg := journal.DefaultConfig()
	jcfg.Enabled = cfg.Journal.Enabled
	jcfg.DBPath = cfg.Journal.DBPath
	jcfg.BatchSize = cfg.Journal.BatchSize
	jcfg.BatchTimeout = time.Duration(cfg.Journal.BatchTimeout) * time.Second
	jcfg.Retention = cfg.Journal.RetentionDuration()
	return jcfg
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New().Wrap(errors.ErrOpenLogFile, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrOpenLogFile, err)
	}
	return f, nil
}

func cleanup() {
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
	if logFile != nil {
		_ = logFile.Close()
	}
}
