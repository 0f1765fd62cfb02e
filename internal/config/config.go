package config

import "time"

// Storage driver names.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StoragePebble = "pebble"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	MaxMessageBytes   int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxTextLength     int     `mapstructure:"max_text_length" yaml:"max_text_length"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int     `mapstructure:"message_burst" yaml:"message_burst"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	SessionTTL  time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`

	// IdentitySecret verifies identity tokens minted by the login provider.
	IdentitySecret    string `mapstructure:"identity_secret" yaml:"identity_secret"`
	IdentityIssuer    string `mapstructure:"identity_issuer" yaml:"identity_issuer"`
	AdminEmail        string `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPasswordHash string `mapstructure:"admin_password_hash" yaml:"admin_password_hash"`
	CookieSecure      bool   `mapstructure:"cookie_secure" yaml:"cookie_secure"`

	WSPingInterval   time.Duration `mapstructure:"ws_ping_interval" yaml:"ws_ping_interval"`
	PresenceLeaseTTL time.Duration `mapstructure:"presence_lease_ttl" yaml:"presence_lease_ttl"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
}

// StorageConfig selects the journal backing the realtime store.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// RetentionConfig controls removal of stale conversations.
type RetentionConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Cron    string        `mapstructure:"cron" yaml:"cron"`
	MaxAge  time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   1 << 16,
		MaxTextLength:     2000,
		MessagesPerSecond: 2,
		MessageBurst:      10,
		JWTSecret:         "change-me",
		JWTIssuer:         "eten-chat",
		JWTAudience:       "eten-storefront",
		SessionTTL:        7 * 24 * time.Hour,
		IdentitySecret:    "change-me-too",
		WSPingInterval:    20 * time.Second,
		PresenceLeaseTTL:  time.Minute,
		MetricsEnabled:    true,
		Storage: StorageConfig{
			Driver: StorageSQLite,
			Path:   "eten-chat.db",
		},
		Retention: RetentionConfig{
			Enabled: false,
			Cron:    "0 3 * * *",
			MaxAge:  90 * 24 * time.Hour,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.AdminEmail != "" {
		c.AdminEmail = other.AdminEmail
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
}
