package weather

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
)

const (
	defaultChunkSize = 4096
	defaultTimeout   = 20 * time.Second
)

// Transport performs one blocking request and reports its progress to sink.
// Implementations deliver every event on the calling goroutine.
type Transport interface {
	Perform(ctx context.Context, target string, sink EventSink) error
}

type TransportConfig struct {
	// Timeout bounds the whole request, body included.
	Timeout time.Duration
	// ChunkSize is the read size used to deliver data events.
	ChunkSize int
	// CACertPath is a PEM file with the pinned root certificate(s). Empty
	// means the system roots.
	CACertPath string
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	client    *http.Client
	chunkSize int
	log       logger.Logger
}

func NewHTTPTransport(cfg TransportConfig, log logger.Logger) (*HTTPTransport, error) {
	errFactory := errors.New()

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.With("weather")
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errFactory.WithMessage(ErrInvalidTransport, "default transport is not *http.Transport")
	}
	rt := base.Clone()
	// Keep Content-Length meaningful; a gzip body would be decoded into an undeclared length.
	rt.DisableCompression = true
	// HTTP/1.1 only: an HTTP/2 stream carries neither Transfer-Encoding nor a length.
	rt.ForceAttemptHTTP2 = false
	rt.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	if cfg.CACertPath != "" {
		pool, err := loadCertPool(cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		rt.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: rt,
			Timeout:   cfg.Timeout,
		},
		chunkSize: cfg.ChunkSize,
		log:       log,
	}, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	errFactory := errors.New()

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrLoadCACert, err).WithData(path)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errFactory.WithMessage(ErrLoadCACert, "no certificates found in PEM file").WithData(path)
	}
	return pool, nil
}

// Client exposes the underlying HTTP client.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

func (t *HTTPTransport) Perform(ctx context.Context, target string, sink EventSink) error {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		sink.OnEvent(Event{Kind: EventError, Err: err})
		return errFactory.Wrap(ErrBuildRequest, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		sink.OnEvent(Event{Kind: EventError, Err: err})
		return errFactory.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	sink.OnEvent(Event{Kind: EventConnected})
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.log.Warn().Int("status", resp.StatusCode).Msg("Unexpected HTTP status")
	}
	for key, values := range resp.Header {
		for _, value := range values {
			sink.OnEvent(Event{Kind: EventHeader, Key: key, Value: value})
		}
	}

	chunked := isChunked(resp)
	buf := make([]byte, t.chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			sink.OnEvent(Event{
				Kind:          EventData,
				Data:          buf[:n],
				Chunked:       chunked,
				ContentLength: resp.ContentLength,
			})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			sink.OnEvent(Event{Kind: EventError, Err: rerr})
			sink.OnEvent(Event{Kind: EventDisconnected, Err: rerr})
			return errFactory.Wrap(ErrTransport, rerr)
		}
	}

	sink.OnEvent(Event{Kind: EventFinished})
	sink.OnEvent(Event{Kind: EventDisconnected})
	return nil
}

// isChunked reports whether the body arrives in pieces of unknown total size.
// A streamed HTTP/2 body counts as chunked.
func isChunked(resp *http.Response) bool {
	if resp.ProtoMajor >= 2 && resp.ContentLength < 0 {
		return true
	}
	for _, te := range resp.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			return true
		}
	}
	return false
}
