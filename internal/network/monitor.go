package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// Disconnect reasons recorded on enforced sessions
const (
	ReasonTimeLimit = "time_limit_exceeded"
	ReasonDataLimit = "data_limit_exceeded"
	ReasonPeerLost  = "peer_lost"
	ReasonManual    = "admin_disconnect"
	ReasonShutdown  = "server_shutdown"
)

// MonitorConfig tunes the usage monitor
type MonitorConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// MaxPollFailures is the consecutive usage poll failures tolerated
	// before a device is treated as lost
	MaxPollFailures int
}

// DefaultMonitorConfig returns the standard sweep settings
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{Interval: 30 * time.Second, MaxPollFailures: 3}
}

// Monitor periodically polls usage for every authorized device and
// enforces plan limits. A sweep never overlaps with itself, a slow
// backend just delays the next tick.
type Monitor struct {
	orch    *Orchestrator
	adapter Adapter
	store   storage.Store
	cfg     MonitorConfig
	logger  zerolog.Logger

	sweeping atomic.Bool

	mu       sync.Mutex
	failures map[string]int
}

// NewMonitor creates a monitor over the orchestrator's registry
func NewMonitor(orch *Orchestrator, adapter Adapter, store storage.Store, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = 3
	}
	return &Monitor{
		orch:     orch,
		adapter:  adapter,
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "monitor").Logger(),
		failures: make(map[string]int),
	}
}

// Run sweeps on every tick until the context is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Int("max_poll_failures", m.cfg.MaxPollFailures).
		Msg("Usage monitor started")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Usage monitor stopped")
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one monitoring pass. If a previous pass is still running
// the call is skipped.
func (m *Monitor) Sweep(ctx context.Context) {
	if !m.sweeping.CompareAndSwap(false, true) {
		m.logger.Debug().Msg("Previous sweep still running, skipping")
		return
	}
	defer m.sweeping.Store(false)

	m.expireVouchers(ctx)

	for _, device := range m.orch.Registry().List() {
		if ctx.Err() != nil {
			return
		}
		m.checkDevice(ctx, device)
	}
}

func (m *Monitor) checkDevice(ctx context.Context, device *Device) {
	info := DeviceInfo{MACAddress: device.MACAddress, IPAddress: device.IPAddress}

	usage, err := m.adapter.Usage(ctx, info)
	switch {
	case errors.Is(err, ErrUsageUnsupported):
		// Backend has no query path, fall through to the time check
		m.resetFailures(device.MACAddress)
	case err != nil:
		streak := m.recordFailure(device.MACAddress)
		m.logger.Warn().
			Err(err).
			Str("mac", device.MACAddress).
			Int("streak", streak).
			Msg("Usage poll failed")
		if streak >= m.cfg.MaxPollFailures {
			m.enforce(ctx, device, ReasonPeerLost)
		}
		return
	default:
		m.resetFailures(device.MACAddress)
		m.orch.Registry().UpdateUsage(device.MACAddress, usage.DataUsedMB, usage.Online)
		device.DataUsedMB = usage.DataUsedMB

		if device.SessionRowID > 0 {
			if _, err := m.store.UpdateSessionActivity(ctx, device.SessionRowID, usage.DataUsedMB); err != nil {
				m.logger.Error().Err(err).Int64("session_id", device.SessionRowID).Msg("Failed to update session activity")
			}
		}
	}

	elapsed := time.Since(device.AuthorizedAt)
	if device.TimeLimit > 0 && elapsed >= device.TimeLimit {
		m.enforce(ctx, device, ReasonTimeLimit)
		return
	}
	if device.DataCapMB > 0 && device.DataUsedMB >= device.DataCapMB {
		m.enforce(ctx, device, ReasonDataLimit)
	}
}

func (m *Monitor) enforce(ctx context.Context, device *Device, reason string) {
	m.logger.Info().
		Str("mac", device.MACAddress).
		Str("reason", reason).
		Int64("data_used_mb", device.DataUsedMB).
		Msg("Enforcing limit")

	entry := &models.EventLog{
		Type:        models.EventTypeLimitEnforced,
		Level:       models.EventLevelWarning,
		Description: fmt.Sprintf("Limit enforced for %s: %s", device.MACAddress, reason),
		VoucherID:   &device.VoucherID,
		MACAddress:  &device.MACAddress,
	}
	if device.SessionRowID > 0 {
		entry.SessionID = &device.SessionRowID
	}
	if err := m.store.CreateEventLog(ctx, entry); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist event log")
	}

	if _, err := m.orch.Deauthorize(ctx, device.MACAddress, reason); err != nil {
		m.logger.Error().Err(err).Str("mac", device.MACAddress).Msg("Failed to deauthorize device")
	}
	m.resetFailures(device.MACAddress)
}

// expireVouchers flips overdue active and used vouchers to expired
func (m *Monitor) expireVouchers(ctx context.Context) {
	n, err := m.store.ExpireOverdueVouchers(ctx, time.Now())
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to expire vouchers")
		return
	}
	if n == 0 {
		return
	}

	m.logger.Info().Int64("count", n).Msg("Expired overdue vouchers")
	entry := &models.EventLog{
		Type:        models.EventTypeVoucherExpired,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("%d voucher(s) passed their validity window", n),
	}
	if err := m.store.CreateEventLog(ctx, entry); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist event log")
	}
}

func (m *Monitor) recordFailure(mac string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[mac]++
	return m.failures[mac]
}

func (m *Monitor) resetFailures(mac string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, mac)
}
