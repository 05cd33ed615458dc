package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrSecretInConfig is returned when a config file carries database
// credentials.
var ErrSecretInConfig = errors.New("database credentials not allowed in config files (use NP_SERVER_DB_URL environment variable)")

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	return Load(viper.New(), configPath)
}

// Load reads configuration through v, so callers can bind CLI flags
// to v before loading.
func Load(v *viper.Viper, configPath string) (*ServerConfig, error) {
	// Set defaults matching DefaultServerConfig
	d := DefaultServerConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("server.schema_file", d.SchemaFile)
	v.SetDefault("server.db_url", d.DBURL)
	v.SetDefault("server.metrics_addr", d.MetricsAddr)

	// Bind environment variables with NP_ prefix
	v.SetEnvPrefix("NP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Credentials must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		SchemaFile:     v.GetString("server.schema_file"),
		DBURL:          v.GetString("server.db_url"),
		MetricsAddr:    v.GetString("server.metrics_addr"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive connection and timeout values,
// and that a schema file is named.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.SchemaFile == "" {
		return fmt.Errorf("schema_file must be set")
	}
	return nil
}

// validateNoSecretsInConfig rejects database URLs with passwords that come
// from the config file rather than the environment.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("server.db_url") && hasPassword(v.GetString("server.db_url")) {
		return ErrSecretInConfig
	}
	return nil
}
