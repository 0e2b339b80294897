package weather

// EventKind enumerates what a transport reports while it drives one request.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventHeader
	EventData
	EventFinished
	EventDisconnected
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventHeader:
		return "header"
	case EventData:
		return "data"
	case EventFinished:
		return "finished"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one transport notification. Data is only valid for the duration of
// the OnEvent call; consumers must copy what they keep.
type Event struct {
	Kind EventKind

	// EventHeader
	Key   string
	Value string

	// EventData
	Data          []byte
	Chunked       bool
	ContentLength int64 // -1 when not declared

	// EventError, EventDisconnected
	Err error
}

// EventSink consumes transport events synchronously on the goroutine that
// drives the request.
type EventSink interface {
	OnEvent(ev Event) State
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ev Event) State

func (f SinkFunc) OnEvent(ev Event) State {
	return f(ev)
}
