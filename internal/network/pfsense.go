package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// PfSenseConfig holds settings for the pfSense REST API package
type PfSenseConfig struct {
	// BaseURL is the firewall web root, e.g. https://10.0.0.1
	BaseURL string
	// APIToken is the client-id client-token pair in "id token" form
	APIToken string
	// InsecureSkipVerify disables TLS verification for firewalls with
	// self-signed certificates
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// PfSenseAdapter enforces policies through the pfSense captive portal
// REST API. The portal handles the speed and uptime limits itself once
// the client entry is created.
type PfSenseAdapter struct {
	cfg    PfSenseConfig
	client *http.Client
	logger zerolog.Logger
}

// NewPfSenseAdapter creates a pfSense-backed adapter
func NewPfSenseAdapter(cfg PfSenseConfig, logger zerolog.Logger) *PfSenseAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &PfSenseAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger.With().Str("component", "pfsense").Logger(),
	}
}

// Name implements Adapter
func (a *PfSenseAdapter) Name() string { return "pfsense" }

type pfSenseClientRequest struct {
	MACAddress     string `json:"mac_address"`
	IPAddress      string `json:"ip_address,omitempty"`
	SessionID      string `json:"session_id"`
	SessionTimeout int    `json:"session_timeout,omitempty"`
	BandwidthUp    int    `json:"bandwidth_up,omitempty"`
	BandwidthDown  int    `json:"bandwidth_down,omitempty"`
	DataLimitBytes int64  `json:"data_limit_bytes,omitempty"`
}

// ApplyPolicy implements Adapter
func (a *PfSenseAdapter) ApplyPolicy(ctx context.Context, device DeviceInfo, policy Policy) error {
	req := pfSenseClientRequest{
		MACAddress:     device.MACAddress,
		IPAddress:      device.IPAddress,
		SessionID:      policy.SessionID,
		SessionTimeout: policy.SessionSeconds,
		BandwidthUp:    policy.UploadKbps,
		BandwidthDown:  policy.DownloadKbps,
	}
	if policy.DataCapMB > 0 {
		req.DataLimitBytes = policy.DataCapMB * 1024 * 1024
	}
	return a.do(ctx, http.MethodPost, "/api/v1/services/captive_portal/client", req, nil)
}

// RemovePolicy implements Adapter
func (a *PfSenseAdapter) RemovePolicy(ctx context.Context, device DeviceInfo, sessionID string) error {
	path := "/api/v1/services/captive_portal/client?mac_address=" + url.QueryEscape(device.MACAddress)
	err := a.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && isNotFoundStatus(err) {
		// Already gone on the firewall, removal is idempotent
		return nil
	}
	return err
}

type pfSenseClientStatus struct {
	Online   bool  `json:"online"`
	BytesIn  int64 `json:"bytes_in"`
	BytesOut int64 `json:"bytes_out"`
}

// Usage implements Adapter
func (a *PfSenseAdapter) Usage(ctx context.Context, device DeviceInfo) (*Usage, error) {
	path := "/api/v1/status/captive_portal/client?mac_address=" + url.QueryEscape(device.MACAddress)

	var status pfSenseClientStatus
	if err := a.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		if isNotFoundStatus(err) {
			return &Usage{Online: false}, nil
		}
		return nil, err
	}
	return &Usage{
		DataUsedMB: (status.BytesIn + status.BytesOut) / (1024 * 1024),
		Online:     status.Online,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("pfsense api status %d: %s", e.code, e.body)
}

func isNotFoundStatus(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (a *PfSenseAdapter) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.cfg.APIToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("pfsense request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrPolicyRejected, string(data))
	default:
		return &statusError{code: resp.StatusCode, body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
