package weather

import (
	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
)

// Mode is how the body length is known for the current attempt.
type Mode int

const (
	// ModeUnknown holds until the first data event decides.
	ModeUnknown Mode = iota
	// ModeFixedLength: the transport declared a content length.
	ModeFixedLength
	// ModeChunked: the body arrives in chunks of unknown total size.
	ModeChunked
	// ModeBounded: neither chunked nor declared; the body is read until close
	// and capped at the scratch bound.
	ModeBounded
)

func (m Mode) String() string {
	switch m {
	case ModeFixedLength:
		return "fixed_length"
	case ModeChunked:
		return "chunked"
	case ModeBounded:
		return "bounded"
	default:
		return "unknown"
	}
}

// State is the accumulator's progress through one attempt.
type State int

const (
	StateWaiting State = iota
	StateReceiving
	StateComplete
)

// Accumulator collects one response body from transport events and turns it
// into an Outcome. It is used for a single attempt and then discarded.
//
// In chunked mode the buffer grows to fit every chunk. Otherwise its capacity
// is fixed by the first data event at min(declared length, bound) and bytes
// past that capacity are dropped, not treated as an error.
type Accumulator struct {
	bound    int
	log      logger.Logger
	mode     Mode
	declared int64
	buf      []byte
	dropped  int
	outcome  Outcome
	done     bool
}

func NewAccumulator(bound int, log logger.Logger) *Accumulator {
	if log == nil {
		log = logger.With("weather")
	}
	return &Accumulator{bound: bound, log: log, declared: -1}
}

// OnEvent consumes one transport event. Events after the outcome has been
// produced are ignored.
func (a *Accumulator) OnEvent(ev Event) State {
	if a.done {
		return StateComplete
	}

	switch ev.Kind {
	case EventConnected:
		a.log.Debug().Msg("HTTP connected")
	case EventHeader:
		a.log.Debug().Str("key", ev.Key).Str("value", ev.Value).Msg("HTTP header")
	case EventData:
		a.consume(ev)
	case EventFinished:
		a.finish()
	case EventDisconnected, EventError:
		a.abort(ev)
	}

	return a.State()
}

func (a *Accumulator) State() State {
	switch {
	case a.done:
		return StateComplete
	case a.buf != nil:
		return StateReceiving
	default:
		return StateWaiting
	}
}

// Outcome returns the attempt's outcome once it has been produced.
func (a *Accumulator) Outcome() (Outcome, bool) {
	return a.outcome, a.done
}

func (a *Accumulator) Mode() Mode {
	return a.mode
}

// Len is the number of bytes held for the current attempt.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Cap is the current buffer capacity, zero before the first data event.
func (a *Accumulator) Cap() int {
	return cap(a.buf)
}

func (a *Accumulator) consume(ev Event) {
	if a.buf == nil {
		a.allocate(ev)
	}

	if a.mode == ModeChunked {
		a.grow(len(ev.Data))
		a.buf = append(a.buf, ev.Data...)
		return
	}

	n := min(len(ev.Data), cap(a.buf)-len(a.buf))
	a.buf = append(a.buf, ev.Data[:n]...)
	if clipped := len(ev.Data) - n; clipped > 0 {
		a.dropped += clipped
		a.log.Debug().
			Int("clipped", clipped).
			Int("capacity", cap(a.buf)).
			Str("mode", a.mode.String()).
			Msg("Dropping bytes past buffer capacity")
	}
}

func (a *Accumulator) allocate(ev Event) {
	switch {
	case ev.Chunked:
		a.mode = ModeChunked
		a.buf = make([]byte, 0, len(ev.Data))
		a.log.Debug().Msg("The data is chunked")
	case ev.ContentLength >= 0:
		a.mode = ModeFixedLength
		a.declared = ev.ContentLength
		size := ev.ContentLength
		if size > int64(a.bound) {
			size = int64(a.bound)
		}
		a.buf = make([]byte, 0, int(size))
		a.log.Debug().Int64("content_length", ev.ContentLength).Msg("The data is not chunked")
	default:
		a.mode = ModeBounded
		a.buf = make([]byte, 0, a.bound)
		a.log.Debug().Int("bound", a.bound).Msg("The data has no declared length")
	}
}

// grow makes room for exactly n more bytes.
func (a *Accumulator) grow(n int) {
	if cap(a.buf)-len(a.buf) >= n {
		return
	}
	next := make([]byte, len(a.buf), len(a.buf)+n)
	copy(next, a.buf)
	a.buf = next
}

func (a *Accumulator) finish() {
	body := a.buf
	dropped := a.dropped
	a.release()

	if len(body) == 0 {
		a.complete(Outcome{
			Kind: OutcomeEmptyResponse,
			Err:  errors.New().New(ErrEmptyResponse),
		})
		a.log.Warn().Msg("Response body is empty")
		return
	}

	temperature, err := Extract(body)
	if err != nil {
		a.complete(Outcome{Kind: OutcomeParseError, Err: err, Received: len(body), Dropped: dropped})
		a.log.Warn().Err(err).Int("bytes", len(body)).Msg("Can't get temperature")
		return
	}

	a.complete(Outcome{Kind: OutcomeSuccess, Temperature: temperature, Received: len(body), Dropped: dropped})
}

func (a *Accumulator) abort(ev Event) {
	held := len(a.buf)
	a.release()

	err := ev.Err
	if err == nil {
		err = errors.New().WithMessage(ErrIncompleteTransfer, "connection closed before transfer finished")
	}

	a.complete(Outcome{
		Kind:     OutcomeTransportError,
		Err:      errors.New().Wrap(ErrTransport, err),
		Received: held,
		Dropped:  a.dropped,
	})
	a.log.Warn().Err(err).Str("event", ev.Kind.String()).Int("bytes", held).Msg("Transfer aborted")
}

func (a *Accumulator) release() {
	a.buf = nil
}

func (a *Accumulator) complete(o Outcome) {
	a.outcome = o
	a.done = true
}
