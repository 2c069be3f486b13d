// This file contains environment variable utilities for configuration override.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	apperrors "github.com/agbru/fibnet/internal/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

// isFlagSetAny checks if any of the specified flags were explicitly set on
// the command line. A nil flag set counts as nothing set.
func isFlagSetAny(fs *pflag.FlagSet, names ...string) bool {
	if fs == nil {
		return false
	}
	for _, name := range names {
		if f := fs.Lookup(name); f != nil && f.Changed {
			return true
		}
	}
	return false
}

// envOverride declares a single environment variable override.
// Each entry maps an env key (without the FIBNET_ prefix) to the CLI flag
// name(s) it corresponds to and a function that applies the env value.
type envOverride[T any] struct {
	envKey string
	flags  []string
	apply  func(*T, string) error
}

func parseInt(dst *int) func(string) error {
	return func(v string) error {
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func parseDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

// serverEnvOverrides is the declarative table of the server's environment
// variable overrides.
var serverEnvOverrides = []envOverride[ServerConfig]{
	{"HOST", []string{"host"}, func(c *ServerConfig, v string) error {
		c.Host = v
		return nil
	}},
	{"PORT", []string{"port", "p"}, func(c *ServerConfig, v string) error {
		return parseInt(&c.Port)(v)
	}},
	{"LIMIT", []string{"limit", "l"}, func(c *ServerConfig, v string) error {
		return c.Limit.Set(v)
	}},
	{"ALGO", []string{"algo"}, func(c *ServerConfig, v string) error {
		c.Algo = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"WORKERS", []string{"workers"}, func(c *ServerConfig, v string) error {
		return parseInt(&c.Workers)(v)
	}},
	{"CACHE_TTL", []string{"cache-ttl"}, func(c *ServerConfig, v string) error {
		return parseDuration(&c.CacheTTL)(v)
	}},
	{"ADMIN_ADDR", []string{"admin-addr"}, func(c *ServerConfig, v string) error {
		c.AdminAddr = v
		return nil
	}},
	{"LOG_LEVEL", []string{"log-level"}, func(c *ServerConfig, v string) error {
		c.LogLevel = v
		return nil
	}},
	{"LOG_FORMAT", []string{"log-format"}, func(c *ServerConfig, v string) error {
		c.LogFormat = strings.ToLower(v)
		return nil
	}},
}

// clientEnvOverrides is the declarative table of the client's environment
// variable overrides.
var clientEnvOverrides = []envOverride[ClientConfig]{
	{"HOST", []string{"host"}, func(c *ClientConfig, v string) error {
		c.Host = v
		return nil
	}},
	{"PORT", []string{"port", "p"}, func(c *ClientConfig, v string) error {
		return parseInt(&c.Port)(v)
	}},
	{"TIMEOUT", []string{"timeout"}, func(c *ClientConfig, v string) error {
		return parseDuration(&c.Timeout)(v)
	}},
	{"QUIET", []string{"quiet", "q"}, func(c *ClientConfig, v string) error {
		c.Quiet = parseBoolEnv(v, c.Quiet)
		return nil
	}},
}

// parseBoolEnv parses a boolean environment variable value.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
// Returns defaultVal if the value is not recognized.
func parseBoolEnv(val string, defaultVal bool) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

func applyEnvOverrides[T any](cfg *T, fs *pflag.FlagSet, table []envOverride[T]) error {
	for _, o := range table {
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		val := os.Getenv(EnvPrefix + o.envKey)
		if val == "" {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			return apperrors.ConfigError{Message: fmt.Sprintf("invalid %s%s value %q: %v", EnvPrefix, o.envKey, val, err)}
		}
	}
	return nil
}

// ApplyServerEnv applies environment variable values to the server
// configuration for any flags that were not explicitly set on the command
// line. This implements the priority: CLI flags > Environment variables > Defaults.
//
// Supported environment variables (all prefixed with FIBNET_):
//   - HOST, PORT, LIMIT, ALGO, WORKERS, CACHE_TTL, ADMIN_ADDR, LOG_LEVEL, LOG_FORMAT
func ApplyServerEnv(cfg *ServerConfig, fs *pflag.FlagSet) error {
	return applyEnvOverrides(cfg, fs, serverEnvOverrides)
}

// ApplyClientEnv applies environment variable values to the client
// configuration with the same priority rules as ApplyServerEnv.
//
// Supported environment variables (all prefixed with FIBNET_):
//   - HOST, PORT, TIMEOUT, QUIET
func ApplyClientEnv(cfg *ClientConfig, fs *pflag.FlagSet) error {
	return applyEnvOverrides(cfg, fs, clientEnvOverrides)
}
