package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  dsn: postgres://localhost/hotspot?sslmode=disable
jwt:
  secret: test-secret
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "hotspot-server", cfg.Server.Name)
	assert.Equal(t, 8090, cfg.API.Port)
	assert.Equal(t, ":8090", cfg.API.Addr())
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, EquipmentNone, cfg.Network.Equipment)
	assert.Equal(t, 2, cfg.Network.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.MaxPollFailures)
	assert.Equal(t, 256, cfg.Events.Buffer)
	assert.Equal(t, "hotspot.events", cfg.NATS.SubjectPrefix)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api:
  host: 127.0.0.1
  port: 9000
database:
  dsn: postgres://localhost/hotspot?sslmode=disable
jwt:
  secret: test-secret
network:
  equipment: mikrotik
  retry_attempts: 5
  retry_backoff: 2s
  mikrotik:
    address: 192.168.88.1:8728
    username: api
    password: secret
monitor:
  interval: 10s
  max_poll_failures: 5
nats:
  enabled: true
  url: nats://localhost:4222
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr())
	assert.Equal(t, EquipmentMikroTik, cfg.Network.Equipment)
	assert.Equal(t, "192.168.88.1:8728", cfg.Network.MikroTik.Address)
	assert.Equal(t, 5, cfg.Network.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Network.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.True(t, cfg.NATS.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://envhost/db")
	t.Setenv("PORT", "7777")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("NATS_URL", "nats://envhost:4222")
	t.Setenv("EQUIPMENT_TYPE", "radius")
	t.Setenv("RADIUS_HOST", "10.0.0.2")
	t.Setenv("RADIUS_SECRET", "radius-secret")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres://envhost/db", cfg.Database.DSN)
	assert.Equal(t, 7777, cfg.API.Port)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.True(t, cfg.NATS.Enabled, "NATS_URL implies enabled")
	assert.Equal(t, "nats://envhost:4222", cfg.NATS.URL)
	assert.Equal(t, EquipmentRADIUS, cfg.Network.Equipment)
	assert.Equal(t, "10.0.0.2", cfg.Network.RADIUS.Host)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing dsn",
			content: "jwt:\n  secret: s\n",
			wantErr: "database dsn is required",
		},
		{
			name:    "missing jwt secret",
			content: "database:\n  dsn: postgres://x\n",
			wantErr: "jwt secret is required",
		},
		{
			name:    "unknown equipment",
			content: minimalConfig + "network:\n  equipment: cisco\n",
			wantErr: "unknown equipment type",
		},
		{
			name:    "mikrotik without address",
			content: minimalConfig + "network:\n  equipment: mikrotik\n",
			wantErr: "mikrotik address is required",
		},
		{
			name:    "pfsense without base url",
			content: minimalConfig + "network:\n  equipment: pfsense\n",
			wantErr: "pfsense base_url is required",
		},
		{
			name:    "radius without secret",
			content: minimalConfig + "network:\n  equipment: radius\n  radius:\n    host: 10.0.0.2\n",
			wantErr: "radius host and secret are required",
		},
		{
			name:    "nats enabled without url",
			content: minimalConfig + "nats:\n  enabled: true\n",
			wantErr: "nats url is required",
		},
		{
			name:    "mqtt enabled without broker",
			content: minimalConfig + "mqtt:\n  enabled: true\n",
			wantErr: "mqtt broker_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
