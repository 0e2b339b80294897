// Package web serves the device status page and its JSON API.
package web

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/journal"
	"codeberg.org/mutker/tempstation/internal/logger"
	"codeberg.org/mutker/tempstation/internal/readiness"
	"codeberg.org/mutker/tempstation/internal/reading"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	ErrLoadTemplate = errors.ErrorCode("web_load_template_failed")

	shutdownTimeout = 10 * time.Second
)

// LightSource reports the local light level.
type LightSource interface {
	LightLevel() (int, bool)
	LightLevels() int
}

// Sources is the state the server reads. Every field but Outside is optional.
type Sources struct {
	Outside *reading.Shared
	Inside  *reading.Shared
	Light   LightSource
	Network *readiness.Flag
	Ready   *readiness.Flag
	Logs    *logger.Ring
	// LogFile is the path served by /logs.
	LogFile string
	Journal journal.Journal
	Metrics http.Handler
	Version string
}

type Config struct {
	Listen string
	// IndexPath overrides the embedded status page template.
	IndexPath string
}

type Server struct {
	cfg      Config
	src      Sources
	template string
	icon     []byte
	app      *fiber.App
	log      logger.Logger
}

func New(cfg Config, src Sources, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.With("web")
	}
	if src.Outside == nil {
		src.Outside = reading.NewShared()
	}

	tmpl, err := loadTemplate(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	icon, err := favicon()
	if err != nil {
		return nil, errors.New().Wrap(ErrLoadTemplate, err)
	}

	s := &Server{
		cfg:      cfg,
		src:      src,
		template: tmpl,
		icon:     icon,
		log:      log,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "tempstation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: accessLog{log: log},
	}))
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/logs", s.handleLogs)
	s.app.Get("/favicon.ico", s.handleFavicon)
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/attempts", s.handleAttempts)

	if s.src.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.src.Metrics))
	}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run waits for the network, serves until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	if s.src.Network != nil {
		s.log.Info().Msg("Waiting for network before starting web server")
		if err := s.src.Network.Wait(ctx); err != nil {
			return nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("Web server started")
		errCh <- s.app.Listen(s.cfg.Listen)
	}()

	select {
	case err := <-errCh:
		return errFactory.Wrap(errors.ErrWebServer, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	s.log.Info().Msg("Web server stopped")
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(s.Render())
}

func (s *Server) handleFavicon(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "image/x-icon")
	return c.Send(s.icon)
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	if s.src.LogFile == "" {
		return fiber.NewError(fiber.StatusNotFound, "log file is not configured")
	}

	f, err := os.Open(s.src.LogFile)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.src.LogFile).Msg("Failed to open log file")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to open log file")
	}

	c.Type("txt", "utf-8")
	c.Set(fiber.HeaderConnection, "close")
	// The stream is closed by fasthttp once sent.
	return c.SendStream(f)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "tempstation",
		"version": s.src.Version,
	})
}

// accessLog forwards fiber access lines to the component logger.
type accessLog struct {
	log logger.Logger
}

func (a accessLog) Write(p []byte) (int, error) {
	a.log.Debug().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
