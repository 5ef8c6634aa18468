package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives events drained from the notifier queue. Delivery is
// best effort, a sink must never block for long.
type Sink interface {
	Deliver(ev Event)
}

// Notifier decouples event producers from delivery. Producers publish
// onto a bounded queue, a single drain loop fans out to sinks. When the
// queue is full events are dropped with a warning instead of blocking
// the caller.
type Notifier struct {
	queue  chan Event
	logger zerolog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// NewNotifier creates a notifier with the given queue capacity
func NewNotifier(buffer int, logger zerolog.Logger) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &Notifier{
		queue:  make(chan Event, buffer),
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// AddSink registers a delivery target. Safe to call before Run starts.
func (n *Notifier) AddSink(s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

// Publish enqueues an event without blocking
func (n *Notifier) Publish(ev Event) {
	select {
	case n.queue <- ev:
	default:
		n.logger.Warn().
			Str("type", string(ev.Type)).
			Msg("Event queue full, dropping event")
	}
}

// Run drains the queue until the context is cancelled
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info().Int("buffer", cap(n.queue)).Msg("Event notifier started")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("Event notifier stopped")
			return nil
		case ev := <-n.queue:
			n.deliver(ev)
		}
	}
}

func (n *Notifier) deliver(ev Event) {
	n.mu.RLock()
	sinks := n.sinks
	n.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(ev)
	}
}
