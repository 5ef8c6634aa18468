package network

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-routeros/routeros/v3"
	"github.com/rs/zerolog"
)

// MikroTikConfig holds RouterOS API connection settings
type MikroTikConfig struct {
	// Address is host:port of the RouterOS API service (default port 8728)
	Address  string
	Username string
	Password string
}

// MikroTikAdapter enforces policies through the RouterOS API: a hotspot
// user carrying the uptime and byte limits plus a simple queue for the
// speed cap. A connection is dialed per operation, the API is cheap to
// establish and this avoids keeping idle sockets to the router.
type MikroTikAdapter struct {
	cfg    MikroTikConfig
	logger zerolog.Logger
}

// NewMikroTikAdapter creates a RouterOS-backed adapter
func NewMikroTikAdapter(cfg MikroTikConfig, logger zerolog.Logger) *MikroTikAdapter {
	return &MikroTikAdapter{
		cfg:    cfg,
		logger: logger.With().Str("component", "mikrotik").Logger(),
	}
}

// Name implements Adapter
func (a *MikroTikAdapter) Name() string { return "mikrotik" }

func (a *MikroTikAdapter) dial() (*routeros.Client, error) {
	client, err := routeros.Dial(a.cfg.Address, a.cfg.Username, a.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("dial routeros %s: %w", a.cfg.Address, err)
	}
	return client, nil
}

// ApplyPolicy implements Adapter
func (a *MikroTikAdapter) ApplyPolicy(ctx context.Context, device DeviceInfo, policy Policy) error {
	client, err := a.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	userArgs := []string{
		"/ip/hotspot/user/add",
		"=name=" + device.MACAddress,
		"=mac-address=" + device.MACAddress,
		"=limit-uptime=" + strconv.Itoa(policy.SessionSeconds) + "s",
	}
	if policy.DataCapMB > 0 {
		userArgs = append(userArgs, "=limit-bytes-total="+strconv.FormatInt(policy.DataCapMB*1024*1024, 10))
	}
	if _, err := client.RunArgs(userArgs); err != nil {
		return fmt.Errorf("add hotspot user: %w", err)
	}

	if policy.DownloadKbps > 0 || policy.UploadKbps > 0 {
		queueArgs := []string{
			"/queue/simple/add",
			"=name=" + queueName(policy.SessionID),
			"=target=" + device.IPAddress,
			fmt.Sprintf("=max-limit=%dk/%dk", policy.UploadKbps, policy.DownloadKbps),
		}
		if _, err := client.RunArgs(queueArgs); err != nil {
			// Roll the user back so a retry does not hit a duplicate
			a.removeByName(client, "/ip/hotspot/user", device.MACAddress)
			return fmt.Errorf("add simple queue: %w", err)
		}
	}

	a.logger.Debug().
		Str("mac", device.MACAddress).
		Str("session_id", policy.SessionID).
		Msg("Policy applied on router")
	return nil
}

// RemovePolicy implements Adapter
func (a *MikroTikAdapter) RemovePolicy(ctx context.Context, device DeviceInfo, sessionID string) error {
	client, err := a.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := a.removeByName(client, "/ip/hotspot/user", device.MACAddress); err != nil {
		return fmt.Errorf("remove hotspot user: %w", err)
	}
	if err := a.removeByName(client, "/queue/simple", queueName(sessionID)); err != nil {
		return fmt.Errorf("remove simple queue: %w", err)
	}

	// Kick the active hotspot session so the cut is immediate
	reply, err := client.Run("/ip/hotspot/active/print", "?mac-address="+device.MACAddress, "=.proplist=.id")
	if err == nil {
		for _, re := range reply.Re {
			if id := re.Map[".id"]; id != "" {
				client.Run("/ip/hotspot/active/remove", "=.id="+id)
			}
		}
	}
	return nil
}

// Usage implements Adapter, reading counters from the active session
func (a *MikroTikAdapter) Usage(ctx context.Context, device DeviceInfo) (*Usage, error) {
	client, err := a.dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reply, err := client.Run("/ip/hotspot/active/print", "?mac-address="+device.MACAddress)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	if len(reply.Re) == 0 {
		return &Usage{Online: false}, nil
	}

	var totalBytes int64
	for _, re := range reply.Re {
		totalBytes += parseBytes(re.Map["bytes-in"]) + parseBytes(re.Map["bytes-out"])
	}
	return &Usage{DataUsedMB: totalBytes / (1024 * 1024), Online: true}, nil
}

// removeByName finds an entry by name and removes it. A missing entry
// is not an error, removal must be idempotent.
func (a *MikroTikAdapter) removeByName(client *routeros.Client, path, name string) error {
	reply, err := client.Run(path+"/print", "?name="+name, "=.proplist=.id")
	if err != nil {
		return err
	}
	for _, re := range reply.Re {
		id := re.Map[".id"]
		if id == "" {
			continue
		}
		if _, err := client.Run(path+"/remove", "=.id="+id); err != nil {
			return err
		}
	}
	return nil
}

func queueName(sessionID string) string {
	return "hs-" + sessionID
}

func parseBytes(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
