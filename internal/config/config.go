package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	// MaxMessageBytes caps a single inbound websocket frame.
	MaxMessageBytes    int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	AllowedOrigins     []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	JWT         JWTConfig         `mapstructure:"jwt" yaml:"jwt"`
	NATS        NATSConfig        `mapstructure:"nats" yaml:"nats"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`
}

// StorageConfig selects and configures the message backend.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"` // sqlite, postgres or mongo
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL   string `mapstructure:"postgres_url" yaml:"postgres_url"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// JWTConfig configures token issuance and the websocket handshake.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Required rejects websocket upgrades without a valid token.
	Required bool `mapstructure:"required" yaml:"required"`
}

// NATSConfig configures the message mirror. An empty URL disables it.
type NATSConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	Stream        string `mapstructure:"stream" yaml:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// MaintenanceConfig holds cron specs for periodic jobs. Empty disables a job.
type MaintenanceConfig struct {
	CheckpointSchedule     string `mapstructure:"checkpoint_schedule" yaml:"checkpoint_schedule"`
	PresenceReportSchedule string `mapstructure:"presence_report_schedule" yaml:"presence_report_schedule"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":4000",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxMessageBytes:    16 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 0,
		Storage: StorageConfig{
			Driver:        "sqlite",
			SQLitePath:    "chatrelay.db",
			MongoURI:      "mongodb://127.0.0.1:27017",
			MongoDatabase: "chatApp",
		},
		JWT: JWTConfig{
			Secret:   "change-me",
			Issuer:   "chatrelay",
			Audience: "chatrelay",
			TTL:      24 * time.Hour,
		},
		NATS: NATSConfig{
			Stream:        "CHAT_MESSAGES",
			SubjectPrefix: "chat.messages",
		},
		Maintenance: MaintenanceConfig{
			CheckpointSchedule:     "@every 10m",
			PresenceReportSchedule: "@every 1m",
		},
	}
}

// UpdateFrom overwrites non-zero top-level values from other config into receiver.
// Used for command line overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
}
