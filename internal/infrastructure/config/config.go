package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTickInterval is the simulation period: one minute plus a small
// offset so ticks never line up with minute-aligned host housekeeping.
const DefaultTickInterval = 60*time.Second + 100*time.Millisecond

// Config is the root configuration structure for the Eve door simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Host       HostConfig       `yaml:"host"`
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PlatformConfig is the configuration record the host hands to the platform.
type PlatformConfig struct {
	Name                 string `yaml:"name"`
	Type                 string `yaml:"type"`
	Debug                bool   `yaml:"debug"`
	UnregisterOnShutdown bool   `yaml:"unregister_on_shutdown"`
}

// HostConfig describes the bridge host the platform runs inside.
type HostConfig struct {
	// Version is the host version reported to the platform's version gate.
	Version string `yaml:"version"`

	// Directory is where per-platform state (the history database) lives.
	Directory string `yaml:"directory"`

	// BridgeMode is "bridge" or "childbridge". In bridge mode devices are
	// exposed as server endpoints.
	BridgeMode string `yaml:"bridge_mode"`
}

// SimulationConfig contains the simulation timer settings.
type SimulationConfig struct {
	Interval time.Duration `yaml:"interval"`

	// HistoryQueueSize bounds the pending asynchronous history writes.
	HistoryQueueSize int `yaml:"history_queue_size"`

	// HistoryRetention is how long entries are kept before pruning. Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// DatabaseConfig contains SQLite settings for the history store.
type DatabaseConfig struct {
	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: EVEDOOR_SECTION_KEY
// For example: EVEDOOR_HOST_DIRECTORY, EVEDOOR_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			Name: "matterbridge-eve-door",
			Type: "DynamicPlatform",
		},
		Host: HostConfig{
			Version:    "3.3.0",
			Directory:  "./data",
			BridgeMode: "bridge",
		},
		Simulation: SimulationConfig{
			Interval:         DefaultTickInterval,
			HistoryQueueSize: 64,
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "evedoor",
			},
			QoS:         1,
			TopicPrefix: "evedoor",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EVEDOOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Platform
	if v := os.Getenv("EVEDOOR_PLATFORM_NAME"); v != "" {
		cfg.Platform.Name = v
	}
	if v, ok := envBool("EVEDOOR_PLATFORM_DEBUG"); ok {
		cfg.Platform.Debug = v
	}
	if v, ok := envBool("EVEDOOR_PLATFORM_UNREGISTER_ON_SHUTDOWN"); ok {
		cfg.Platform.UnregisterOnShutdown = v
	}

	// Host
	if v := os.Getenv("EVEDOOR_HOST_VERSION"); v != "" {
		cfg.Host.Version = v
	}
	if v := os.Getenv("EVEDOOR_HOST_DIRECTORY"); v != "" {
		cfg.Host.Directory = v
	}

	// Simulation
	if v := os.Getenv("EVEDOOR_SIMULATION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulation.Interval = d
		}
	}

	// MQTT
	if v := os.Getenv("EVEDOOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EVEDOOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EVEDOOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v, ok := envBool("EVEDOOR_API_ENABLED"); ok {
		cfg.API.Enabled = v
	}
	if v := os.Getenv("EVEDOOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("EVEDOOR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("EVEDOOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("EVEDOOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Platform.Name == "" {
		errs = append(errs, "platform.name is required")
	}

	if c.Host.Directory == "" {
		errs = append(errs, "host.directory is required")
	}
	switch c.Host.BridgeMode {
	case "", "bridge", "childbridge":
	default:
		errs = append(errs, "host.bridge_mode must be bridge or childbridge")
	}

	if c.Simulation.Interval <= 0 {
		errs = append(errs, "simulation.interval must be positive")
	}
	if c.Simulation.HistoryQueueSize < 0 {
		errs = append(errs, "simulation.history_queue_size must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
