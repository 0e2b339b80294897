package weather

import "time"

// OutcomeKind is the terminal result class of one attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeTransportError
	OutcomeParseError
	OutcomeEmptyResponse
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

// Outcome is produced exactly once per attempt.
type Outcome struct {
	Kind        OutcomeKind
	Temperature float64
	// Err carries the diagnostic for failed attempts. It is for logging only.
	Err error
	// Received is the number of body bytes kept in the buffer.
	Received int
	// Dropped is the number of bytes clipped beyond the buffer capacity.
	Dropped  int
	Duration time.Duration
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}
