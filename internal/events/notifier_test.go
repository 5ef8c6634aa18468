package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Deliver(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNotifierFansOutToSinks(t *testing.T) {
	n := NewNotifier(16, zerolog.Nop())
	first := &captureSink{}
	second := &captureSink{}
	n.AddSink(first)
	n.AddSink(second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Publish(New(TypeSessionStarted, SessionStarted{NetworkSessionID: "abc"}))
	n.Publish(New(TypeSessionEnded, SessionEnded{SessionID: 1, Reason: "admin_disconnect"}))

	waitFor(t, func() bool { return len(first.snapshot()) == 2 && len(second.snapshot()) == 2 })

	got := first.snapshot()
	assert.Equal(t, TypeSessionStarted, got[0].Type)
	assert.Equal(t, TypeSessionEnded, got[1].Type)
	assert.False(t, got[0].Time.IsZero())
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	// No drain loop running, the queue fills and further publishes
	// must not block
	n := NewNotifier(2, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.Publish(New(TypeVouchersCreated, VouchersCreated{Count: i}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Equal(t, 2, len(n.queue))
}

func TestNotifierStopsOnContextCancel(t *testing.T) {
	n := NewNotifier(4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- n.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNotifierSinkAddedWhileRunning(t *testing.T) {
	n := NewNotifier(16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sink := &captureSink{}
	n.AddSink(sink)
	n.Publish(New(TypeDeviceAuthorized, DeviceAuthorized{MACAddress: "AA:BB:CC:DD:EE:FF"}))

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
}
