package weather

import (
	"fmt"

	"codeberg.org/mutker/tempstation/internal/errors"
)

const (
	ErrTransport          = errors.ErrorCode("weather_transport_failed")
	ErrIncompleteTransfer = errors.ErrorCode("weather_incomplete_transfer")
	ErrEmptyResponse      = errors.ErrorCode("weather_empty_response")
	ErrBuildRequest       = errors.ErrorCode("weather_build_request_failed")
	ErrLoadCACert         = errors.ErrorCode("weather_load_ca_cert_failed")
	ErrInvalidTransport   = errors.ErrorCode("weather_invalid_transport_config")
)

// ParseErrorKind classifies why a complete body did not yield a reading.
type ParseErrorKind int

const (
	MalformedJSON ParseErrorKind = iota + 1
	MissingSection
	MissingField
)

func (k ParseErrorKind) String() string {
	switch k {
	case MalformedJSON:
		return "malformed_json"
	case MissingSection:
		return "missing_section"
	case MissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// ParseError is returned by Extract.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	var msg string
	switch e.Kind {
	case MalformedJSON:
		msg = "failed to parse JSON response"
	case MissingSection:
		msg = fmt.Sprintf("failed to get %q from JSON response", sectionKey)
	case MissingField:
		msg = fmt.Sprintf("failed to get %q or it is not a number", temperatureKey)
	default:
		msg = "unusable JSON response"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a ParseError of the given kind.
func IsParseError(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}
