package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hotspot-server/hotspot-server-pro/internal/api"
	"github.com/hotspot-server/hotspot-server-pro/internal/config"
	"github.com/hotspot-server/hotspot-server-pro/internal/events"
	"github.com/hotspot-server/hotspot-server-pro/internal/network"
	"github.com/hotspot-server/hotspot-server-pro/internal/portal"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/hotspot-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event notifier and sinks
	notifier := events.NewNotifier(cfg.Events.Buffer, log.Logger)

	hub := api.NewHub(log.Logger)
	notifier.AddSink(hub)

	if cfg.NATS.Enabled {
		natsSink, err := events.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS events")
		} else {
			defer natsSink.Close()
			notifier.AddSink(natsSink)
			log.Info().Str("url", cfg.NATS.URL).Msg("Publishing events to NATS")
		}
	}

	if cfg.MQTT.Enabled {
		mqttSink, err := events.NewMQTTSink(events.MQTTSinkConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TLS:         cfg.MQTT.TLS,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, continuing without MQTT events")
		} else {
			defer mqttSink.Close()
			notifier.AddSink(mqttSink)
			log.Info().Str("broker", cfg.MQTT.BrokerURL).Msg("Publishing events to MQTT")
		}
	}

	// Network backend
	adapter := buildAdapter(cfg)
	log.Info().Str("backend", adapter.Name()).Msg("Network backend selected")

	registry := network.NewRegistry()
	orch := network.NewOrchestrator(adapter, registry, store, notifier, network.Options{
		Attempts: cfg.Network.RetryAttempts,
		Backoff:  cfg.Network.RetryBackoff,
	}, log.Logger)

	monitor := network.NewMonitor(orch, adapter, store, network.MonitorConfig{
		Interval:        cfg.Monitor.Interval,
		MaxPollFailures: cfg.Monitor.MaxPollFailures,
	}, log.Logger)

	portalSvc := portal.NewService(store, orch, notifier, log.Logger)

	// REST API server
	apiServer := api.NewRESTServer(cfg, store, portalSvc, orch, hub)

	// WaitGroup for services
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notifier.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Event notifier stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Usage monitor stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.ListenAndServe(cfg.API.Addr()); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Revoke access for devices we still track so routers do not keep
	// stale entries after a restart
	for _, device := range registry.List() {
		if _, err := orch.Deauthorize(context.Background(), device.MACAddress, network.ReasonShutdown); err != nil {
			log.Warn().Err(err).Str("mac", device.MACAddress).Msg("Failed to deauthorize device on shutdown")
		}
	}

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}
	hub.Shutdown(context.Background())

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Hotspot server stopped")
}

// buildAdapter selects the enforcement backend from configuration
func buildAdapter(cfg *config.Config) network.Adapter {
	switch cfg.Network.Equipment {
	case config.EquipmentMikroTik:
		return network.NewMikroTikAdapter(network.MikroTikConfig{
			Address:  cfg.Network.MikroTik.Address,
			Username: cfg.Network.MikroTik.Username,
			Password: cfg.Network.MikroTik.Password,
		}, log.Logger)
	case config.EquipmentPfSense:
		return network.NewPfSenseAdapter(network.PfSenseConfig{
			BaseURL:            cfg.Network.PfSense.BaseURL,
			APIToken:           cfg.Network.PfSense.APIToken,
			InsecureSkipVerify: cfg.Network.PfSense.InsecureSkipVerify,
			Timeout:            cfg.Network.PfSense.Timeout,
		}, log.Logger)
	case config.EquipmentRADIUS:
		return network.NewRADIUSAdapter(network.RADIUSConfig{
			Host:           cfg.Network.RADIUS.Host,
			AuthPort:       cfg.Network.RADIUS.AuthPort,
			DisconnectPort: cfg.Network.RADIUS.DisconnectPort,
			Secret:         cfg.Network.RADIUS.Secret,
			NASIdentifier:  cfg.Network.RADIUS.NASIdentifier,
			Timeout:        cfg.Network.RADIUS.Timeout,
		}, log.Logger)
	default:
		return network.NewNoopAdapter(log.Logger)
	}
}
