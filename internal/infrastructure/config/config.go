package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "PILIGHT_CONFIG"

// Config is the root configuration structure for the pilight gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CatalogConfig selects where the protocol catalog comes from.
type CatalogConfig struct {
	// Path is a JSON, YAML or TOML catalog file. Empty means the embedded
	// catalog (or the latest stored revision when UseStore is set).
	Path string `yaml:"path"`

	// Format forces a document format: json, yaml, toml or auto.
	Format string `yaml:"format"`

	// Strict rejects catalogs with unknown type tags or duplicate names.
	Strict bool `yaml:"strict"`

	// Watch reloads Path when the file changes.
	Watch bool `yaml:"watch"`

	// DebounceMS is the quiet period before a changed file is reloaded.
	DebounceMS int `yaml:"debounce_ms"`

	// UseStore loads the latest stored revision at startup when Path is empty.
	UseStore bool `yaml:"use_store"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// GatewayConfig controls the MQTT validation gateway.
type GatewayConfig struct {
	// SendAsList emits the protocol of validated outgoing commands as a
	// single-element list, the form the daemon expects.
	SendAsList bool `yaml:"send_as_list"`

	// ReceiveAsList does the same for validated incoming events.
	ReceiveAsList bool `yaml:"receive_as_list"`

	// PublishRejections publishes a report for every rejected payload.
	PublishRejections bool `yaml:"publish_rejections"`

	// AuditRejections records rejected payloads in the database.
	AuditRejections bool `yaml:"audit_rejections"`

	// RejectionRetentionDays prunes older audit rows. 0 keeps everything.
	RejectionRetentionDays int `yaml:"rejection_retention_days"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled      bool             `yaml:"enabled"`
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`
	Timeouts     APITimeoutConfig `yaml:"timeouts"`
	CORS         CORSConfig       `yaml:"cors"`
	Auth         APIAuthConfig    `yaml:"auth"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APIAuthConfig protects catalog replacement with HS256 bearer tokens.
// An empty Secret disables the check.
type APIAuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PILIGHT_SECTION_KEY
// For example: PILIGHT_DATABASE_PATH, PILIGHT_CATALOG_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Format:     "auto",
			DebounceMS: 250,
		},
		Database: DatabaseConfig{
			Path:        "./data/pilight-gateway.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pilight-gateway",
			},
			QoS:         1,
			TopicPrefix: "pilight",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Gateway: GatewayConfig{
			SendAsList:             true,
			ReceiveAsList:          true,
			PublishRejections:      true,
			AuditRejections:        true,
			RejectionRetentionDays: 30,
		},
		API: APIConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         8080,
			MaxBodyBytes: 1 << 20,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "pilight",
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
func applyEnvOverrides(cfg *Config) error {
	// Catalog
	if v := os.Getenv("PILIGHT_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("PILIGHT_CATALOG_FORMAT"); v != "" {
		cfg.Catalog.Format = v
	}
	if v := os.Getenv("PILIGHT_CATALOG_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PILIGHT_CATALOG_STRICT: %w", err)
		}
		cfg.Catalog.Strict = b
	}

	// Database
	if v := os.Getenv("PILIGHT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PILIGHT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PILIGHT_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PILIGHT_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("PILIGHT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PILIGHT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PILIGHT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PILIGHT_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PILIGHT_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("PILIGHT_API_SECRET"); v != "" {
		cfg.API.Auth.Secret = v
	}

	// InfluxDB
	if v := os.Getenv("PILIGHT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PILIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Catalog.Format) {
	case "", "auto", "json", "yaml", "yml", "toml":
	default:
		errs = append(errs, "catalog.format must be auto, json, yaml or toml")
	}
	if c.Catalog.Watch && c.Catalog.Path == "" {
		errs = append(errs, "catalog.watch requires catalog.path")
	}
	if c.Catalog.DebounceMS < 0 {
		errs = append(errs, "catalog.debounce_ms must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}
	if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
	}

	if c.Gateway.RejectionRetentionDays < 0 {
		errs = append(errs, "gateway.rejection_retention_days must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.MaxBodyBytes <= 0 {
		errs = append(errs, "api.max_body_bytes must be positive")
	}

	// A short HS256 secret is brute-forceable.
	const minSecretLength = 32
	if c.API.Auth.Secret != "" && len(c.API.Auth.Secret) < minSecretLength {
		errs = append(errs, "api.auth.secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Debounce returns the catalog reload debounce as a Duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Catalog.DebounceMS) * time.Millisecond
}

// RejectionRetention returns the audit retention window. Zero disables pruning.
func (c *Config) RejectionRetention() time.Duration {
	return time.Duration(c.Gateway.RejectionRetentionDays) * 24 * time.Hour
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
