package network_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/tempstation/internal/network"
	"codeberg.org/mutker/tempstation/internal/readiness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchDialer struct {
	up    atomic.Bool
	calls atomic.Int32
}

func (d *switchDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.calls.Add(1)
	if !d.up.Load() {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestCheckAgainstListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	flag := readiness.New("network")
	m := network.NewMonitor(network.Config{Address: ln.Addr().String(), Timeout: time.Second}, flag)

	assert.True(t, m.Check(context.Background()))
	assert.True(t, flag.IsSet())

	require.NoError(t, ln.Close())
	assert.False(t, m.Check(context.Background()))
	assert.False(t, flag.IsSet())
}

func TestCheckTransitions(t *testing.T) {
	d := &switchDialer{}
	flag := readiness.New("network")
	m := network.NewMonitor(network.Config{Address: "api.example:443"}, flag, network.WithDialer(d))

	assert.False(t, m.Check(context.Background()))
	d.up.Store(true)
	assert.True(t, m.Check(context.Background()))
	assert.True(t, flag.IsSet())
	d.up.Store(false)
	assert.False(t, m.Check(context.Background()))
	assert.False(t, flag.IsSet())
}

func TestRunSetsFlagAndStops(t *testing.T) {
	d := &switchDialer{}
	d.up.Store(true)
	flag := readiness.New("network")
	m := network.NewMonitor(network.Config{Address: "api.example:443", Interval: 5 * time.Millisecond}, flag, network.WithDialer(d))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, flag.Wait(waitCtx))

	assert.Eventually(t, func() bool { return d.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
