package telemetry

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/tempstation/internal/readiness"
	"codeberg.org/mutker/tempstation/internal/reading"
	"codeberg.org/mutker/tempstation/internal/scheduler"
	"codeberg.org/mutker/tempstation/internal/weather"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestRecordAttempt(t *testing.T) {
	c := newCollector(t)

	c.RecordAttempt(scheduler.Attempt{Outcome: weather.Outcome{
		Kind:     weather.OutcomeTransportError,
		Err:      errors.New("timeout"),
		Duration: 20 * time.Second,
	}})
	c.RecordAttempt(scheduler.Attempt{Outcome: weather.Outcome{
		Kind:     weather.OutcomeSuccess,
		Dropped:  12,
		Duration: 300 * time.Millisecond,
	}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("transport_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.truncated))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestRecordCycle(t *testing.T) {
	c := newCollector(t)

	c.RecordCycle(scheduler.Cycle{Success: true})
	c.RecordCycle(scheduler.Cycle{Success: false})
	c.RecordCycle(scheduler.Cycle{Success: false})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cycles.WithLabelValues("exhausted")))
}

func TestBindings(t *testing.T) {
	c := newCollector(t)
	flag := readiness.New("network")
	outside := reading.NewShared()

	require.NoError(t, c.BindFlag(flag))
	require.NoError(t, c.BindReading("outside", outside))
	require.Error(t, c.BindFlag(flag), "duplicate registration")

	c.SetLightLevel(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.light))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 0.0, values["tempstation_ready"])
	assert.True(t, math.IsNaN(values["tempstation_temperature_celsius"]))

	flag.Set()
	outside.Publish(-2.5, time.Now())

	families, err = c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["tempstation_ready"])
	assert.Equal(t, -2.5, values["tempstation_temperature_celsius"])
}

func TestHandler(t *testing.T) {
	c := newCollector(t)
	c.RecordCycle(scheduler.Cycle{Success: true})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tempstation_weather_cycles_total{result="success"} 1`)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{Namespace: "x", DurationBuckets: []float64{2, 1}})
	require.Error(t, err)
}
