package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the biometric station.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station   StationConfig   `yaml:"station"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	Captures  CapturesConfig  `yaml:"captures"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StationConfig identifies the station the sensor is attached to.
type StationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SensorConfig contains fingerprint sensor and capture loop settings.
type SensorConfig struct {
	// Driver selects the sensor driver implementation. Only "sim" is built in.
	Driver string `yaml:"driver"`

	// DeviceIndex is the enumeration index passed to the driver's open call.
	DeviceIndex int `yaml:"device_index"`

	// PollIntervalMS is the fixed pause between acquisition cycles.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// FailureThreshold is the number of consecutive failed acquisitions
	// that triggers a forced reinitialisation of the session.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryDelayMS is the pause between shutdown and reinitialise during recovery.
	RecoveryDelayMS int `yaml:"recovery_delay_ms"`

	// LEDSettleMS is the pause between the "LED off" and colour writes.
	LEDSettleMS int `yaml:"led_settle_ms"`

	// LEDRetryDelayMS is the pause before the LED reinitialise-and-retry.
	LEDRetryDelayMS int `yaml:"led_retry_delay_ms"`

	// StartupDelayMS is the settling pause after SDK init and stale-handle close.
	StartupDelayMS int `yaml:"startup_delay_ms"`

	// PresenceMinDarkPixels is the absolute floor of dark pixels for presence.
	PresenceMinDarkPixels int `yaml:"presence_min_dark_pixels"`

	// PresenceDarkPct is the resolution-relative presence threshold (percent of frame).
	PresenceDarkPct float64 `yaml:"presence_dark_pct"`

	// MatchThreshold is the minimum match score for a successful verify.
	MatchThreshold int `yaml:"match_threshold"`

	// Speed and Sensitivity are written to the sensor before capture starts.
	Speed       int `yaml:"speed"`
	Sensitivity int `yaml:"sensitivity"`

	// DefaultLED is the colour set after initialisation: off, green or red.
	DefaultLED string `yaml:"default_led"`
}

// FanoutConfig contains notification fan-out settings.
type FanoutConfig struct {
	// QueueSize is the per-listener event buffer. When full, the oldest
	// undelivered event for that listener is dropped.
	QueueSize int `yaml:"queue_size"`
}

// CapturesConfig contains settings for saved fingerprint images.
type CapturesConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig lists the browser origins allowed to call the API.
// An empty list allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: BIOMETRIC_SECTION_KEY
// For example: BIOMETRIC_DATABASE_PATH, BIOMETRIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
//
// The sensor timings mirror what the ZK-family sensors need in practice:
// 100ms between polls, 10 failures before recovery, 1s recovery pause.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			ID:   "station-001",
			Name: "Biometric Station",
		},
		Sensor: SensorConfig{
			Driver:                "sim",
			DeviceIndex:           0,
			PollIntervalMS:        100,
			FailureThreshold:      10,
			RecoveryDelayMS:       1000,
			LEDSettleMS:           100,
			LEDRetryDelayMS:       500,
			StartupDelayMS:        1000,
			PresenceMinDarkPixels: 1000,
			PresenceDarkPct:       1.0,
			MatchThreshold:        50,
			Speed:                 1,
			Sensitivity:           3,
			DefaultLED:            "green",
		},
		Fanout: FanoutConfig{
			QueueSize: 16,
		},
		Captures: CapturesConfig{
			Dir: "./data/captures",
		},
		Database: DatabaseConfig{
			Path:        "./data/biometric.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "biometric-station",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BIOMETRIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIOMETRIC_STATION_ID"); v != "" {
		cfg.Station.ID = v
	}

	// Sensor
	if v := os.Getenv("BIOMETRIC_SENSOR_DRIVER"); v != "" {
		cfg.Sensor.Driver = v
	}
	if v := os.Getenv("BIOMETRIC_SENSOR_DEVICE_INDEX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sensor.DeviceIndex = n
		}
	}

	// Database
	if v := os.Getenv("BIOMETRIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BIOMETRIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BIOMETRIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BIOMETRIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BIOMETRIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BIOMETRIC_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}

	// InfluxDB
	if v := os.Getenv("BIOMETRIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Station.ID == "" {
		errs = append(errs, "station.id is required")
	}

	// Sensor validation
	if c.Sensor.Driver == "" {
		errs = append(errs, "sensor.driver is required")
	}
	if c.Sensor.DeviceIndex < 0 {
		errs = append(errs, "sensor.device_index must not be negative")
	}
	if c.Sensor.PollIntervalMS <= 0 {
		errs = append(errs, "sensor.poll_interval_ms must be positive")
	}
	if c.Sensor.FailureThreshold <= 0 {
		errs = append(errs, "sensor.failure_threshold must be positive")
	}
	if c.Sensor.PresenceMinDarkPixels < 0 {
		errs = append(errs, "sensor.presence_min_dark_pixels must not be negative")
	}
	if c.Sensor.PresenceDarkPct < 0 || c.Sensor.PresenceDarkPct > 100 {
		errs = append(errs, "sensor.presence_dark_pct must be between 0 and 100")
	}
	if c.Sensor.MatchThreshold < 0 || c.Sensor.MatchThreshold > 100 {
		errs = append(errs, "sensor.match_threshold must be between 0 and 100")
	}
	switch strings.ToLower(c.Sensor.DefaultLED) {
	case "off", "green", "red":
	default:
		errs = append(errs, "sensor.default_led must be off, green, or red")
	}

	if c.Fanout.QueueSize <= 0 {
		errs = append(errs, "fanout.queue_size must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the inter-poll pause as a Duration.
func (s SensorConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// RecoveryDelay returns the recovery pause as a Duration.
func (s SensorConfig) RecoveryDelay() time.Duration {
	return time.Duration(s.RecoveryDelayMS) * time.Millisecond
}

// LEDSettle returns the LED off-to-colour pause as a Duration.
func (s SensorConfig) LEDSettle() time.Duration {
	return time.Duration(s.LEDSettleMS) * time.Millisecond
}

// LEDRetryDelay returns the pause before the LED retry as a Duration.
func (s SensorConfig) LEDRetryDelay() time.Duration {
	return time.Duration(s.LEDRetryDelayMS) * time.Millisecond
}

// StartupDelay returns the post-init settling pause as a Duration.
func (s SensorConfig) StartupDelay() time.Duration {
	return time.Duration(s.StartupDelayMS) * time.Millisecond
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
