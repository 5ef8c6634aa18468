package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors returned by adapters and the orchestrator
var (
	// ErrBackendUnreachable means the network equipment could not be
	// reached after the configured retries
	ErrBackendUnreachable = errors.New("network backend unreachable")

	// ErrPolicyRejected means the equipment refused the policy
	ErrPolicyRejected = errors.New("policy rejected by network backend")

	// ErrAlreadyAuthorized means the device already holds an active
	// authorization or one is being applied right now
	ErrAlreadyAuthorized = errors.New("device already authorized")

	// ErrDeviceLimit means the voucher reached its concurrent device cap
	ErrDeviceLimit = errors.New("voucher device limit reached")

	// ErrUsageUnsupported means the adapter cannot report per-device
	// usage counters and the monitor should fall back to time limits
	ErrUsageUnsupported = errors.New("usage polling not supported by backend")
)

// Policy describes the limits applied to a single device
type Policy struct {
	SessionID      string
	DownloadKbps   int
	UploadKbps     int
	SessionSeconds int
	// DataCapMB caps total transfer, zero means unlimited
	DataCapMB int64
}

// DeviceInfo identifies the client the policy applies to
type DeviceInfo struct {
	MACAddress string
	IPAddress  string
	UserAgent  string
}

// Usage is a point-in-time usage reading for one device
type Usage struct {
	DataUsedMB int64
	Online     bool
}

// Adapter abstracts a network enforcement backend. Implementations
// exist for MikroTik RouterOS, pfSense and RADIUS, plus a no-op used
// when no equipment is configured.
type Adapter interface {
	// Name returns the backend identifier used in logs and events
	Name() string

	// ApplyPolicy grants network access to the device under the policy
	ApplyPolicy(ctx context.Context, device DeviceInfo, policy Policy) error

	// RemovePolicy revokes access. Must tolerate the policy already
	// being gone on the backend.
	RemovePolicy(ctx context.Context, device DeviceInfo, sessionID string) error

	// Usage reads current counters for the device. Backends without a
	// query path return ErrUsageUnsupported.
	Usage(ctx context.Context, device DeviceInfo) (*Usage, error)
}

// NormalizeMAC canonicalizes a MAC address to upper-case colon form
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	return strings.ToUpper(hw.String()), nil
}
