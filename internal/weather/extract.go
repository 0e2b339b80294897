package weather

import (
	"github.com/goccy/go-json"
)

const (
	sectionKey     = "current"
	temperatureKey = "temp_c"
)

// Extract returns current.temp_c from a complete WeatherAPI response body.
// The value is returned as-is: no unit conversion and no range check.
func Extract(body []byte) (float64, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return 0, &ParseError{Kind: MalformedJSON, Err: err}
	}

	doc, ok := root.(map[string]any)
	if !ok {
		return 0, &ParseError{Kind: MissingSection}
	}

	raw, ok := doc[sectionKey]
	if !ok {
		return 0, &ParseError{Kind: MissingSection}
	}

	section, ok := raw.(map[string]any)
	if !ok {
		return 0, &ParseError{Kind: MissingField}
	}

	temperature, ok := section[temperatureKey].(float64)
	if !ok {
		return 0, &ParseError{Kind: MissingField}
	}

	return temperature, nil
}
