package weather_test

import (
	"testing"

	"codeberg.org/mutker/tempstation/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
		kind weather.ParseErrorKind
	}{
		{name: "negative", body: `{"current":{"temp_c": -3.5}}`, want: -3.5},
		{name: "integer", body: `{"current":{"temp_c":21,"temp_f":69.8}}`, want: 21},
		{name: "absurd magnitude", body: `{"current":{"temp_c":1e6}}`, want: 1e6},
		{name: "missing field", body: `{"current":{}}`, kind: weather.MissingField},
		{name: "string field", body: `{"current":{"temp_c":"12"}}`, kind: weather.MissingField},
		{name: "null field", body: `{"current":{"temp_c":null}}`, kind: weather.MissingField},
		{name: "section not an object", body: `{"current":5}`, kind: weather.MissingField},
		{name: "missing section", body: `{}`, kind: weather.MissingSection},
		{name: "api error body", body: `{"error":{"code":1006,"message":"No matching location found."}}`, kind: weather.MissingSection},
		{name: "array root", body: `[]`, kind: weather.MissingSection},
		{name: "number root", body: `42`, kind: weather.MissingSection},
		{name: "string root", body: `"not json"`, kind: weather.MissingSection},
		{name: "null root", body: `null`, kind: weather.MissingSection},
		{name: "null section", body: `{"current":null}`, kind: weather.MissingField},
		{name: "plain text", body: `not json`, kind: weather.MalformedJSON},
		{name: "truncated", body: `{"current":{"temp_c":`, kind: weather.MalformedJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := weather.Extract([]byte(tt.body))
			if tt.kind == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			assert.True(t, weather.IsParseError(err, tt.kind), "got %v", err)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := weather.Extract([]byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"current"`)
	assert.Equal(t, "missing_section", weather.MissingSection.String())
}
