package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "ETEN_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
// The result is not validated; call Validate once overrides are applied.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("ETEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite, StoragePebble:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return errors.New("retention.max_age must be positive when retention is enabled")
	}
	return nil
}

// Warnings lists settings that work but should not reach production.
func (c Config) Warnings() []string {
	def := Default()
	var out []string
	if c.JWTSecret == def.JWTSecret {
		out = append(out, "jwt_secret is still the shipped default")
	}
	if c.IdentitySecret == def.IdentitySecret {
		out = append(out, "identity_secret is still the shipped default")
	}
	return out
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_text_length", cfg.MaxTextLength)
	v.SetDefault("messages_per_second", cfg.MessagesPerSecond)
	v.SetDefault("message_burst", cfg.MessageBurst)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("session_ttl", cfg.SessionTTL)
	v.SetDefault("identity_secret", cfg.IdentitySecret)
	v.SetDefault("identity_issuer", cfg.IdentityIssuer)
	v.SetDefault("admin_email", cfg.AdminEmail)
	v.SetDefault("admin_password_hash", cfg.AdminPasswordHash)
	v.SetDefault("cookie_secure", cfg.CookieSecure)
	v.SetDefault("ws_ping_interval", cfg.WSPingInterval)
	v.SetDefault("presence_lease_ttl", cfg.PresenceLeaseTTL)
	v.SetDefault("metrics_enabled", cfg.MetricsEnabled)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("retention.enabled", cfg.Retention.Enabled)
	v.SetDefault("retention.cron", cfg.Retention.Cron)
	v.SetDefault("retention.max_age", cfg.Retention.MaxAge)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
