package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSSink publishes events to a NATS subject tree so external
// consumers (billing, analytics exports) can subscribe without touching
// the dashboard websocket.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewNATSSink connects to NATS and returns a sink publishing under
// prefix.<event-type> subjects
func NewNATSSink(url, prefix string, logger zerolog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Name("hotspot-server"),
	)
	if err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = "hotspot.events"
	}
	return &NATSSink{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "nats-sink").Logger(),
	}, nil
}

// Deliver implements Sink
func (s *NATSSink) Deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	subject := s.prefix + "." + string(ev.Type)
	if err := s.conn.Publish(subject, data); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// Close drains and closes the NATS connection
func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
