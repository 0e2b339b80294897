package weather_test

import (
	"io"
	"testing"

	"codeberg.org/mutker/tempstation/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{"location":{"name":"Tallinn"},"current":{"temp_c":-3.5,"condition":{"text":"Light snow"}}}`

func split(body string, parts int) [][]byte {
	var chunks [][]byte
	size := (len(body) + parts - 1) / parts
	for i := 0; i < len(body); i += size {
		end := min(i+size, len(body))
		chunks = append(chunks, []byte(body[i:end]))
	}
	return chunks
}

func feedChunked(acc *weather.Accumulator, chunks [][]byte) weather.Outcome {
	acc.OnEvent(weather.Event{Kind: weather.EventConnected})
	for _, c := range chunks {
		acc.OnEvent(weather.Event{Kind: weather.EventData, Data: c, Chunked: true, ContentLength: -1})
	}
	acc.OnEvent(weather.Event{Kind: weather.EventFinished})
	acc.OnEvent(weather.Event{Kind: weather.EventDisconnected})
	o, _ := acc.Outcome()
	return o
}

func TestChunkBoundariesDoNotChangeResult(t *testing.T) {
	for _, parts := range []int{1, 2, 3, 7, 16, len(sampleBody)} {
		acc := weather.NewAccumulator(16, nil)
		o := feedChunked(acc, split(sampleBody, parts))

		require.Equal(t, weather.OutcomeSuccess, o.Kind, "parts=%d err=%v", parts, o.Err)
		assert.Equal(t, -3.5, o.Temperature, "parts=%d", parts)
		assert.Equal(t, len(sampleBody), o.Received, "parts=%d", parts)
		assert.Zero(t, o.Dropped)
	}
}

func TestChunkedGrowsPastBound(t *testing.T) {
	acc := weather.NewAccumulator(4, nil)
	chunks := split(sampleBody, 5)

	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: chunks[0], Chunked: true, ContentLength: -1})
	assert.Equal(t, weather.ModeChunked, acc.Mode())
	assert.Equal(t, len(chunks[0]), acc.Cap())

	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: chunks[1], Chunked: true, ContentLength: -1})
	assert.Equal(t, len(chunks[0])+len(chunks[1]), acc.Len())
	assert.LessOrEqual(t, acc.Len(), acc.Cap())
}

func TestFixedLengthClipsOverrun(t *testing.T) {
	declared := int64(len(sampleBody))
	acc := weather.NewAccumulator(2048, nil)

	excess := []byte(`,"garbage":true}}}}`)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte(sampleBody[:20]), ContentLength: declared})
	assert.Equal(t, weather.ModeFixedLength, acc.Mode())
	assert.Equal(t, len(sampleBody), acc.Cap())

	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: append([]byte(sampleBody[20:]), excess...), ContentLength: declared})
	assert.Equal(t, len(sampleBody), acc.Len())
	assert.Equal(t, acc.Cap(), acc.Len())

	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: excess, ContentLength: declared})
	assert.Equal(t, len(sampleBody), acc.Len())

	acc.OnEvent(weather.Event{Kind: weather.EventFinished})
	o, ok := acc.Outcome()
	require.True(t, ok)
	require.Equal(t, weather.OutcomeSuccess, o.Kind)
	assert.Equal(t, -3.5, o.Temperature)
	assert.Equal(t, 2*len(excess), o.Dropped)
}

func TestFixedLengthCappedByBound(t *testing.T) {
	acc := weather.NewAccumulator(10, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte(sampleBody), ContentLength: int64(len(sampleBody))})

	assert.Equal(t, 10, acc.Cap())
	assert.Equal(t, 10, acc.Len())

	acc.OnEvent(weather.Event{Kind: weather.EventFinished})
	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeParseError, o.Kind)
	assert.True(t, weather.IsParseError(o.Err, weather.MalformedJSON))
}

func TestUndeclaredLengthUsesBound(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte(sampleBody), ContentLength: -1})

	assert.Equal(t, weather.ModeBounded, acc.Mode())
	assert.Equal(t, 2048, acc.Cap())

	acc.OnEvent(weather.Event{Kind: weather.EventFinished})
	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeSuccess, o.Kind)
}

func TestFinishWithoutDataIsEmptyResponse(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventConnected})
	acc.OnEvent(weather.Event{Kind: weather.EventHeader, Key: "Content-Length", Value: "0"})
	state := acc.OnEvent(weather.Event{Kind: weather.EventFinished})

	assert.Equal(t, weather.StateComplete, state)
	o, ok := acc.Outcome()
	require.True(t, ok)
	assert.Equal(t, weather.OutcomeEmptyResponse, o.Kind)
}

func TestEmptyDataEventIsEmptyResponse(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte{}, ContentLength: 0})
	acc.OnEvent(weather.Event{Kind: weather.EventFinished})

	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeEmptyResponse, o.Kind)
}

func TestDisconnectBeforeFinishReleasesBuffer(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte(sampleBody[:10]), Chunked: true, ContentLength: -1})
	assert.Equal(t, weather.StateReceiving, acc.State())

	acc.OnEvent(weather.Event{Kind: weather.EventDisconnected, Err: io.ErrUnexpectedEOF})

	assert.Zero(t, acc.Len())
	assert.Zero(t, acc.Cap())
	o, ok := acc.Outcome()
	require.True(t, ok)
	assert.Equal(t, weather.OutcomeTransportError, o.Kind)
	assert.ErrorIs(t, o.Err, io.ErrUnexpectedEOF)
}

func TestErrorWithoutDiagnostic(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventError})

	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeTransportError, o.Kind)
	assert.Error(t, o.Err)
}

func TestExactlyOneOutcome(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	feedChunked(acc, [][]byte{[]byte(sampleBody)})

	// Late events do not replace the outcome.
	acc.OnEvent(weather.Event{Kind: weather.EventError, Err: io.EOF})
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte("{}"), Chunked: true})
	acc.OnEvent(weather.Event{Kind: weather.EventFinished})

	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeSuccess, o.Kind)
	assert.Equal(t, -3.5, o.Temperature)
	assert.Zero(t, acc.Len())
}

func TestFinishReleasesBufferOnParseError(t *testing.T) {
	acc := weather.NewAccumulator(2048, nil)
	acc.OnEvent(weather.Event{Kind: weather.EventData, Data: []byte(`{"current":{}}`), ContentLength: 14})
	acc.OnEvent(weather.Event{Kind: weather.EventFinished})

	assert.Zero(t, acc.Cap())
	o, _ := acc.Outcome()
	assert.Equal(t, weather.OutcomeParseError, o.Kind)
	assert.True(t, weather.IsParseError(o.Err, weather.MissingField))
}
