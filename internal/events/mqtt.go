package events

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTSinkConfig configures the MQTT event sink
type MQTTSinkConfig struct {
	BrokerURL   string
	Username    string
	Password    string
	TLS         bool
	TopicPrefix string
	QoS         byte
}

// MQTTSink publishes events to an MQTT broker. Topics follow
// <prefix>/<event type>, payloads are the JSON-encoded event.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger zerolog.Logger
}

// NewMQTTSink connects to the broker and returns the sink
func NewMQTTSink(cfg MQTTSinkConfig, logger zerolog.Logger) (*MQTTSink, error) {
	l := logger.With().Str("component", "mqtt-sink").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("hotspot-server-%d", time.Now().UnixNano()))

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		l.Info().Str("broker", cfg.BrokerURL).Msg("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.Error().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "hotspot/events"
	}
	return &MQTTSink{client: client, prefix: prefix, qos: cfg.QoS, logger: l}, nil
}

// Deliver publishes the event, errors are logged and dropped
func (s *MQTTSink) Deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(ev.Type)).Msg("Failed to marshal event")
		return
	}

	topic := s.prefix + "/" + string(ev.Type)
	token := s.client.Publish(topic, s.qos, false, data)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to publish event")
	}
}

// Close disconnects from the broker
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
