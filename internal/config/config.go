// Package config holds the server and client configuration, the magnitude
// limit type and the environment variable overrides.
package config

import (
	"net"
	"strconv"
	"time"

	apperrors "github.com/agbru/fibnet/internal/errors"
)

// EnvPrefix is prepended to every environment variable the application reads.
const EnvPrefix = "FIBNET_"

const (
	// DefaultPort is the TCP port used when none is configured.
	DefaultPort = 9000
	// DefaultHost is the host the client dials by default.
	DefaultHost = "localhost"
	// DefaultAlgo is the calculator the server uses by default.
	DefaultAlgo = "fast"
	// DefaultClientTimeout bounds one client round trip.
	DefaultClientTimeout = 30 * time.Second
)

// ServerConfig is the configuration of a server process. It is read-only once
// the listener has started.
type ServerConfig struct {
	// Host is the bind address; empty means all interfaces.
	Host string
	// Port is the TCP port; 0 asks the OS for a free one.
	Port int
	// Limit bounds request magnitudes.
	Limit Limit
	// Algo names the calculator used to compute results.
	Algo string
	// Workers bounds concurrent computations; 0 means unbounded.
	Workers int
	// CacheTTL enables the result cache when positive.
	CacheTTL time.Duration
	// AdminAddr enables the admin HTTP endpoint when non-empty.
	AdminAddr string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is json or console.
	LogFormat string
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:      DefaultPort,
		Limit:     DefaultLimit,
		Algo:      DefaultAlgo,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Addr returns the host:port the server listens on.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration. knownAlgos lists the calculator names
// available in this build; when empty the algorithm is not checked.
//
// Parameters:
//   - knownAlgos: Registered calculator names.
//
// Returns:
//   - error: A ConfigError describing the first problem found, or nil.
func (c ServerConfig) Validate(knownAlgos ...string) error {
	if c.Port < 0 || c.Port > 65535 {
		return apperrors.NewConfigError("invalid port %d: must be between 0 and 65535", c.Port)
	}
	if err := c.Limit.Validate(); err != nil {
		return apperrors.ConfigError{Message: err.Error()}
	}
	if c.Workers < 0 {
		return apperrors.NewConfigError("workers must not be negative, got %d", c.Workers)
	}
	if c.CacheTTL < 0 {
		return apperrors.NewConfigError("cache TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return apperrors.NewConfigError("unknown log format %q: must be json or console", c.LogFormat)
	}
	if len(knownAlgos) > 0 {
		for _, name := range knownAlgos {
			if name == c.Algo {
				return nil
			}
		}
		return apperrors.NewConfigError("unknown algorithm %q (available: %v)", c.Algo, knownAlgos)
	}
	return nil
}

// ClientConfig is the configuration of the interactive and single-shot clients.
type ClientConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	// Quiet suppresses the spinner and decorations.
	Quiet bool
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultClientTimeout,
	}
}

// Addr returns the host:port the client dials.
func (c ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration.
func (c ClientConfig) Validate() error {
	if c.Host == "" {
		return apperrors.NewConfigError("host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return apperrors.NewConfigError("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.Timeout < 0 {
		return apperrors.NewConfigError("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
