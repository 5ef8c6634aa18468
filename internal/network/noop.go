package network

import (
	"context"

	"github.com/rs/zerolog"
)

// NoopAdapter accepts every policy without touching any equipment. It
// is the backend used when no router is configured, so the portal and
// session flows work end to end in demo deployments. Time limits are
// still enforced by the monitor, data usage is never reported.
type NoopAdapter struct {
	logger zerolog.Logger
}

// NewNoopAdapter creates the no-op backend
func NewNoopAdapter(logger zerolog.Logger) *NoopAdapter {
	return &NoopAdapter{logger: logger.With().Str("component", "noop-backend").Logger()}
}

// Name implements Adapter
func (a *NoopAdapter) Name() string { return "none" }

// ApplyPolicy implements Adapter
func (a *NoopAdapter) ApplyPolicy(ctx context.Context, device DeviceInfo, policy Policy) error {
	a.logger.Info().
		Str("mac", device.MACAddress).
		Str("session_id", policy.SessionID).
		Msg("No equipment configured, policy accepted without enforcement")
	return nil
}

// RemovePolicy implements Adapter
func (a *NoopAdapter) RemovePolicy(ctx context.Context, device DeviceInfo, sessionID string) error {
	return nil
}

// Usage implements Adapter
func (a *NoopAdapter) Usage(ctx context.Context, device DeviceInfo) (*Usage, error) {
	return nil, ErrUsageUnsupported
}
