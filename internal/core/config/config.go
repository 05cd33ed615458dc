// Package config provides configuration management for normprops services.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// ServerConfig holds configuration for the query service.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	SchemaFile     string
	DBURL          string
	MetricsAddr    string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50051,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		SchemaFile:     "./schema.yaml",
		DBURL:          "",
		MetricsAddr:    ":9090",
	}
}

// Addr returns the gRPC listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasDatabase reports whether a storage collaborator is configured.
func (c *ServerConfig) HasDatabase() bool {
	return c.DBURL != ""
}

// RedactedDBURL returns the database URL with any password masked, for logs.
func (c *ServerConfig) RedactedDBURL() string {
	return redactURL(c.DBURL)
}

// redactURL masks the password of a URL. Unparseable input is returned
// fully masked.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

// hasPassword reports whether raw is a URL carrying a password.
func hasPassword(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
