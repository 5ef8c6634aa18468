package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hotspot-server/hotspot-server-pro/internal/events"
	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// Options tunes orchestrator retry behavior
type Options struct {
	// Attempts is the total number of tries per backend call
	Attempts int
	// Backoff is the wait between tries
	Backoff time.Duration
}

// DefaultOptions returns the standard retry settings
func DefaultOptions() Options {
	return Options{Attempts: 2, Backoff: 500 * time.Millisecond}
}

// Orchestrator coordinates device authorization against the network
// backend. It owns the device registry and guarantees the backend call
// succeeds before a session is considered started.
type Orchestrator struct {
	adapter  Adapter
	registry *Registry
	store    storage.Store
	notifier *events.Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewOrchestrator wires the orchestrator with its collaborators
func NewOrchestrator(adapter Adapter, registry *Registry, store storage.Store, notifier *events.Notifier, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Orchestrator{
		adapter:  adapter,
		registry: registry,
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "orchestrator").Str("backend", adapter.Name()).Logger(),
	}
}

// Registry exposes the device registry for read paths
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Backend returns the active adapter name
func (o *Orchestrator) Backend() string {
	return o.adapter.Name()
}

// Authorize applies the plan's limits for the device on the network
// backend and registers it. The session row is created by the caller
// after this returns, then bound via BindSession.
func (o *Orchestrator) Authorize(ctx context.Context, voucher *models.Voucher, plan *models.Plan, info DeviceInfo) (*Device, error) {
	mac, err := NormalizeMAC(info.MACAddress)
	if err != nil {
		return nil, err
	}
	info.MACAddress = mac

	if !o.registry.BeginAuthorize(mac) {
		return nil, ErrAlreadyAuthorized
	}
	defer o.registry.EndAuthorize(mac)

	if plan.MaxDevices > 0 {
		count, err := o.store.CountActiveSessionsForVoucher(ctx, voucher.ID)
		if err != nil {
			return nil, fmt.Errorf("count active sessions: %w", err)
		}
		if count >= int64(plan.MaxDevices) {
			return nil, ErrDeviceLimit
		}
	}

	policy := buildPolicy(plan)
	if err := o.withRetry(ctx, "apply policy", func(ctx context.Context) error {
		return o.adapter.ApplyPolicy(ctx, info, policy)
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	device := &Device{
		MACAddress:       mac,
		IPAddress:        info.IPAddress,
		NetworkSessionID: policy.SessionID,
		VoucherID:        voucher.ID,
		TimeLimit:        plan.Duration(),
		DataCapMB:        policy.DataCapMB,
		Online:           true,
		AuthorizedAt:     now,
		LastSeen:         now,
	}
	o.registry.Put(device)

	o.logEvent(ctx, models.EventTypeDeviceAuthorized, models.EventLevelInfo,
		fmt.Sprintf("Device %s authorized for voucher %s", mac, voucher.Code),
		&voucher.ID, nil, &mac)

	o.notifier.Publish(events.New(events.TypeDeviceAuthorized, events.DeviceAuthorized{
		MACAddress:       mac,
		IPAddress:        info.IPAddress,
		VoucherID:        voucher.ID,
		NetworkSessionID: policy.SessionID,
	}))

	o.logger.Info().
		Str("mac", mac).
		Str("ip", info.IPAddress).
		Str("network_session_id", policy.SessionID).
		Int64("voucher_id", voucher.ID).
		Msg("Device authorized")

	return device, nil
}

// BindSession records the persisted session row on the device so the
// monitor can update and close it later
func (o *Orchestrator) BindSession(mac string, sessionRowID int64) {
	o.registry.BindSession(mac, sessionRowID)
}

// Deauthorize removes network access for the device. It returns false
// when the device was not authorized, making repeated calls safe.
func (o *Orchestrator) Deauthorize(ctx context.Context, mac, reason string) (bool, error) {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return false, err
	}

	// Remove is the snapshot: taken under the registry lock, it carries
	// any session bound up to this point. A Get here could miss a
	// BindSession landing before the removal.
	device := o.registry.Remove(normalized)
	if device == nil {
		return false, nil
	}

	info := DeviceInfo{MACAddress: normalized, IPAddress: device.IPAddress}
	if err := o.withRetry(ctx, "remove policy", func(ctx context.Context) error {
		return o.adapter.RemovePolicy(ctx, info, device.NetworkSessionID)
	}); err != nil {
		// Local state is already gone so enforcement converges, the
		// backend entry expires on its own limits.
		o.logger.Warn().Err(err).Str("mac", normalized).Msg("Policy removal failed, local record already dropped")
	}

	if device.SessionRowID > 0 {
		if _, err := o.store.EndSession(ctx, device.SessionRowID); err != nil {
			o.logger.Error().Err(err).Int64("session_id", device.SessionRowID).Msg("Failed to end session")
		}
		o.notifier.Publish(events.New(events.TypeSessionEnded, events.SessionEnded{
			SessionID: device.SessionRowID,
			Reason:    reason,
		}))
	}

	o.logEvent(ctx, models.EventTypeDeviceDeauthorized, models.EventLevelInfo,
		fmt.Sprintf("Device %s deauthorized (%s)", normalized, reason),
		&device.VoucherID, nil, &normalized)

	o.notifier.Publish(events.New(events.TypeDeviceDeauthorized, events.DeviceDeauthorized{
		MACAddress: normalized,
		VoucherID:  device.VoucherID,
		Reason:     reason,
	}))

	o.logger.Info().
		Str("mac", normalized).
		Str("reason", reason).
		Msg("Device deauthorized")

	return true, nil
}

// withRetry runs fn up to opts.Attempts times. Policy rejections and
// context cancellation are never retried, everything else counts as a
// transport failure and surfaces as ErrBackendUnreachable.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= o.opts.Attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPolicyRejected) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		o.logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", o.opts.Attempts).
			Msg("Backend call failed")

		if attempt < o.opts.Attempts {
			select {
			case <-time.After(o.opts.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnreachable, lastErr)
}

func (o *Orchestrator) logEvent(ctx context.Context, eventType models.EventType, level models.EventLevel, description string, voucherID *int64, sessionID *int64, mac *string) {
	entry := &models.EventLog{
		Type:        eventType,
		Level:       level,
		Description: description,
		VoucherID:   voucherID,
		SessionID:   sessionID,
		MACAddress:  mac,
	}
	if err := o.store.CreateEventLog(ctx, entry); err != nil {
		o.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to persist event log")
	}
}

func buildPolicy(plan *models.Plan) Policy {
	policy := Policy{
		SessionID:      uuid.New().String(),
		DownloadKbps:   plan.SpeedLimitDownMbps * 1024,
		UploadKbps:     plan.SpeedLimitUpMbps * 1024,
		SessionSeconds: plan.DurationMinutes * 60,
	}
	if plan.DataLimitMB != nil {
		policy.DataCapMB = *plan.DataLimitMB
	}
	return policy
}
