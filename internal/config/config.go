package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Network  NetworkConfig  `yaml:"network"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Events   EventsConfig   `yaml:"events"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents HTTP API configuration
type APIConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	StaticDir string   `yaml:"static_dir"`
	CORSAllow []string `yaml:"cors_allow"`
}

// Addr returns the host:port bind address
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration. NATS is optional, events
// stay on the websocket when it is disabled.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MQTTConfig represents the optional MQTT event bridge
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TLS         bool   `yaml:"tls"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Equipment backend identifiers
const (
	EquipmentNone     = "none"
	EquipmentMikroTik = "mikrotik"
	EquipmentPfSense  = "pfsense"
	EquipmentRADIUS   = "radius"
)

// NetworkConfig selects and configures the enforcement backend
type NetworkConfig struct {
	// Equipment is one of none, mikrotik, pfsense, radius
	Equipment string `yaml:"equipment"`

	// RetryAttempts and RetryBackoff tune backend calls
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	MikroTik MikroTikConfig `yaml:"mikrotik"`
	PfSense  PfSenseConfig  `yaml:"pfsense"`
	RADIUS   RADIUSConfig   `yaml:"radius"`
}

// MikroTikConfig represents RouterOS API settings
type MikroTikConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PfSenseConfig represents pfSense REST API settings
type PfSenseConfig struct {
	BaseURL            string        `yaml:"base_url"`
	APIToken           string        `yaml:"api_token"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// RADIUSConfig represents RADIUS server settings
type RADIUSConfig struct {
	Host           string        `yaml:"host"`
	AuthPort       int           `yaml:"auth_port"`
	DisconnectPort int           `yaml:"disconnect_port"`
	Secret         string        `yaml:"secret"`
	NASIdentifier  string        `yaml:"nas_identifier"`
	Timeout        time.Duration `yaml:"timeout"`
}

// MonitorConfig represents usage monitor configuration
type MonitorConfig struct {
	Interval        time.Duration `yaml:"interval"`
	MaxPollFailures int           `yaml:"max_poll_failures"`
}

// EventsConfig represents the notifier queue configuration
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.API.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
		c.NATS.Enabled = true
	}

	if mqttURL := os.Getenv("MQTT_URL"); mqttURL != "" {
		c.MQTT.BrokerURL = mqttURL
		c.MQTT.Enabled = true
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if equipment := os.Getenv("EQUIPMENT_TYPE"); equipment != "" {
		c.Network.Equipment = equipment
	}

	if addr := os.Getenv("ROUTER_ADDRESS"); addr != "" {
		c.Network.MikroTik.Address = addr
	}
	if user := os.Getenv("ROUTER_USERNAME"); user != "" {
		c.Network.MikroTik.Username = user
	}
	if pass := os.Getenv("ROUTER_PASSWORD"); pass != "" {
		c.Network.MikroTik.Password = pass
	}

	if url := os.Getenv("PFSENSE_URL"); url != "" {
		c.Network.PfSense.BaseURL = url
	}
	if token := os.Getenv("PFSENSE_TOKEN"); token != "" {
		c.Network.PfSense.APIToken = token
	}

	if host := os.Getenv("RADIUS_HOST"); host != "" {
		c.Network.RADIUS.Host = host
	}
	if secret := os.Getenv("RADIUS_SECRET"); secret != "" {
		c.Network.RADIUS.Secret = secret
	}
}

func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "hotspot-server"
	}
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 24 * time.Hour
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Network.Equipment == "" {
		c.Network.Equipment = EquipmentNone
	}
	if c.Network.RetryAttempts == 0 {
		c.Network.RetryAttempts = 2
	}
	if c.Network.RetryBackoff == 0 {
		c.Network.RetryBackoff = 500 * time.Millisecond
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 30 * time.Second
	}
	if c.Monitor.MaxPollFailures == 0 {
		c.Monitor.MaxPollFailures = 3
	}
	if c.Events.Buffer == 0 {
		c.Events.Buffer = 256
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "hotspot.events"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "hotspot/events"
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	switch c.Network.Equipment {
	case EquipmentNone:
	case EquipmentMikroTik:
		if c.Network.MikroTik.Address == "" {
			return fmt.Errorf("mikrotik address is required")
		}
	case EquipmentPfSense:
		if c.Network.PfSense.BaseURL == "" {
			return fmt.Errorf("pfsense base_url is required")
		}
	case EquipmentRADIUS:
		if c.Network.RADIUS.Host == "" || c.Network.RADIUS.Secret == "" {
			return fmt.Errorf("radius host and secret are required")
		}
	default:
		return fmt.Errorf("unknown equipment type: %s", c.Network.Equipment)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required when nats is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt broker_url is required when mqtt is enabled")
	}
	return nil
}
