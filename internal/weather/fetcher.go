package weather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/logger"
	"github.com/looplab/fsm"
)

// Fetch attempt states
const (
	StateIdle       = "idle"
	StateConnecting = "connecting"
	StateReceive    = "receiving"
	StateCompleted  = "completed"
)

const (
	eventConnect  = "connect"
	eventReceive  = "receive"
	eventComplete = "complete"
	eventReset    = "reset"
)

type FetcherConfig struct {
	BaseURL  string
	APIKey   string
	Location string
	// BufferSize bounds non-chunked bodies.
	BufferSize int
}

// Fetcher runs exactly one attempt per Fetch call. It keeps no state between
// calls other than its fixed request target.
type Fetcher struct {
	transport  Transport
	target     string
	bufferSize int
	log        logger.Logger
	machine    *fsm.FSM
}

func NewFetcher(transport Transport, cfg FetcherConfig, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.With("weather")
	}

	f := &Fetcher{
		transport:  transport,
		target:     Target(cfg.BaseURL, cfg.APIKey, cfg.Location),
		bufferSize: cfg.BufferSize,
		log:        log,
	}

	f.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateIdle}, Dst: StateConnecting},
			{Name: eventReceive, Src: []string{StateConnecting}, Dst: StateReceive},
			{Name: eventComplete, Src: []string{StateConnecting, StateReceive}, Dst: StateCompleted},
			{Name: eventReset, Src: []string{StateCompleted}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				f.log.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("Fetch state changed")
			},
		},
	)

	return f
}

// Target builds the current-conditions request URL.
func Target(baseURL, apiKey, location string) string {
	return fmt.Sprintf("%scurrent.json?key=%s&q=%s&aqi=no",
		baseURL, url.QueryEscape(apiKey), url.QueryEscape(location))
}

// State returns the current attempt state.
func (f *Fetcher) State() string {
	return f.machine.Current()
}

// Fetch performs one attempt and returns its outcome.
func (f *Fetcher) Fetch(ctx context.Context) Outcome {
	start := time.Now()
	fsmCtx := context.WithoutCancel(ctx)

	f.transition(fsmCtx, eventConnect)
	defer f.transition(fsmCtx, eventReset)

	acc := NewAccumulator(f.bufferSize, f.log)
	sink := SinkFunc(func(ev Event) State {
		if f.machine.Is(StateConnecting) && ev.Kind != EventError && ev.Kind != EventDisconnected {
			f.transition(fsmCtx, eventReceive)
		}
		return acc.OnEvent(ev)
	})

	err := f.transport.Perform(ctx, f.target, sink)

	outcome, ok := acc.Outcome()
	switch {
	case !ok && err != nil:
		outcome = Outcome{Kind: OutcomeTransportError, Err: errors.New().Wrap(ErrTransport, err)}
	case !ok:
		outcome = Outcome{
			Kind: OutcomeTransportError,
			Err:  errors.New().WithMessage(ErrIncompleteTransfer, "transport returned without finishing the transfer"),
		}
	case err != nil:
		f.log.Debug().Err(err).Str("outcome", outcome.Kind.String()).Msg("Transport error after outcome was produced")
	}
	outcome.Duration = time.Since(start)

	f.transition(fsmCtx, eventComplete)
	return outcome
}

func (f *Fetcher) transition(ctx context.Context, event string) {
	if err := f.machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			f.log.Debug().Err(err).Str("event", event).Str("state", f.machine.Current()).Msg("Invalid fetch state transition")
		}
	}
}
