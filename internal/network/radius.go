package network

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
	"layeh.com/radius/rfc2869"
)

// RADIUSConfig holds RADIUS server settings. Limits live on the RADIUS
// server itself, the adapter only signals session start and teardown.
type RADIUSConfig struct {
	Host string
	// AuthPort is the authentication port, default 1812
	AuthPort int
	// DisconnectPort is the dynamic authorization port, default 3799
	DisconnectPort int
	Secret         string
	NASIdentifier  string
	Timeout        time.Duration
}

// RADIUSAdapter authorizes devices with MAC-based Access-Requests and
// tears them down with Disconnect-Requests (RFC 5176). It has no query
// path for usage, accounting is pushed by the NAS to the RADIUS server,
// so Usage reports ErrUsageUnsupported and the monitor falls back to
// time limits.
type RADIUSAdapter struct {
	cfg    RADIUSConfig
	logger zerolog.Logger
}

// NewRADIUSAdapter creates a RADIUS-backed adapter
func NewRADIUSAdapter(cfg RADIUSConfig, logger zerolog.Logger) *RADIUSAdapter {
	if cfg.AuthPort <= 0 {
		cfg.AuthPort = 1812
	}
	if cfg.DisconnectPort <= 0 {
		cfg.DisconnectPort = 3799
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.NASIdentifier == "" {
		cfg.NASIdentifier = "hotspot-server"
	}
	return &RADIUSAdapter{
		cfg:    cfg,
		logger: logger.With().Str("component", "radius").Logger(),
	}
}

// Name implements Adapter
func (a *RADIUSAdapter) Name() string { return "radius" }

// ApplyPolicy implements Adapter
func (a *RADIUSAdapter) ApplyPolicy(ctx context.Context, device DeviceInfo, policy Policy) error {
	packet := radius.New(radius.CodeAccessRequest, []byte(a.cfg.Secret))

	rfc2865.UserName_SetString(packet, device.MACAddress)
	rfc2865.UserPassword_SetString(packet, policy.SessionID)
	rfc2865.NASIdentifier_SetString(packet, a.cfg.NASIdentifier)
	rfc2865.CallingStationID_SetString(packet, dashMAC(device.MACAddress))
	if ip := net.ParseIP(device.IPAddress); ip != nil {
		rfc2865.FramedIPAddress_Set(packet, ip)
	}
	if policy.SessionSeconds > 0 {
		rfc2865.SessionTimeout_Set(packet, rfc2865.SessionTimeout(policy.SessionSeconds))
	}

	if err := signMessageAuthenticator(packet, []byte(a.cfg.Secret)); err != nil {
		return fmt.Errorf("sign access request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.AuthPort)
	response, err := radius.Exchange(reqCtx, packet, addr)
	if err != nil {
		return fmt.Errorf("radius exchange with %s: %w", addr, err)
	}

	switch response.Code {
	case radius.CodeAccessAccept:
		a.logger.Debug().Str("mac", device.MACAddress).Msg("Access accepted")
		return nil
	case radius.CodeAccessReject:
		reason, _ := rfc2865.ReplyMessage_LookupString(response)
		if reason == "" {
			reason = "access rejected"
		}
		return fmt.Errorf("%w: %s", ErrPolicyRejected, reason)
	default:
		return fmt.Errorf("unexpected radius response code %d", response.Code)
	}
}

// RemovePolicy implements Adapter, sending a Disconnect-Request
func (a *RADIUSAdapter) RemovePolicy(ctx context.Context, device DeviceInfo, sessionID string) error {
	packet := radius.New(radius.CodeDisconnectRequest, []byte(a.cfg.Secret))

	rfc2865.UserName_SetString(packet, device.MACAddress)
	rfc2865.NASIdentifier_SetString(packet, a.cfg.NASIdentifier)
	rfc2865.CallingStationID_SetString(packet, dashMAC(device.MACAddress))
	rfc2866.AcctSessionID_SetString(packet, sessionID)

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.DisconnectPort)
	response, err := radius.Exchange(reqCtx, packet, addr)
	if err != nil {
		return fmt.Errorf("disconnect exchange with %s: %w", addr, err)
	}

	switch response.Code {
	case radius.CodeDisconnectACK:
		return nil
	case radius.CodeDisconnectNAK:
		// NAK usually means the session is already gone on the NAS
		a.logger.Debug().Str("mac", device.MACAddress).Msg("Disconnect NAK, treating session as gone")
		return nil
	default:
		return fmt.Errorf("unexpected disconnect response code %d", response.Code)
	}
}

// Usage implements Adapter. Accounting is push based, there is nothing
// to poll.
func (a *RADIUSAdapter) Usage(ctx context.Context, device DeviceInfo) (*Usage, error) {
	return nil, ErrUsageUnsupported
}

// signMessageAuthenticator computes the HMAC-MD5 Message-Authenticator
// over the packet with the attribute zeroed
func signMessageAuthenticator(packet *radius.Packet, secret []byte) error {
	rfc2869.MessageAuthenticator_Del(packet)
	rfc2869.MessageAuthenticator_Set(packet, make([]byte, 16))

	encoded, err := packet.Encode()
	if err != nil {
		return err
	}

	hash := hmac.New(md5.New, secret)
	hash.Write(encoded)
	rfc2869.MessageAuthenticator_Set(packet, hash.Sum(nil))
	return nil
}

// dashMAC renders a colon MAC in the dashed upper-case form RADIUS
// servers conventionally expect in Calling-Station-Id
func dashMAC(mac string) string {
	return strings.ReplaceAll(strings.ToUpper(mac), ":", "-")
}
