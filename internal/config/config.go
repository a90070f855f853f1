// Package config loads server configuration from a TOML file, environment
// variables, and CLI flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Spec     SpecConfig     `toml:"spec"`
	Upstream UpstreamConfig `toml:"upstream"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig controls how the MCP server is exposed.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Transport string `toml:"transport"` // "stdio" or "http"
}

// SpecConfig points at the OpenAPI document to serve.
type SpecConfig struct {
	Path string `toml:"path"`
}

// UpstreamConfig holds the upstream base URL and the single credential used
// for every proxied call. The credential fields must never be logged.
type UpstreamConfig struct {
	BaseURL      string `toml:"base_url"`
	BearerToken  string `toml:"bearer_token"`
	BasicAuth    string `toml:"basic_auth"`
	APIKey       string `toml:"api_key"`
	APIKeyHeader string `toml:"api_key_header"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			Transport: "stdio",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path (if it exists) over the defaults, then
// applies APIMCP_* environment overrides. A missing file is not an error; an
// unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Server.Host, "APIMCP_HOST")
	if v := os.Getenv("APIMCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	setStr(&c.Server.Transport, "APIMCP_TRANSPORT")
	setStr(&c.Spec.Path, "APIMCP_SPEC")
	setStr(&c.Upstream.BaseURL, "APIMCP_BASE_URL")
	setStr(&c.Upstream.BearerToken, "APIMCP_BEARER_TOKEN")
	setStr(&c.Upstream.BasicAuth, "APIMCP_BASIC_AUTH")
	setStr(&c.Upstream.APIKey, "APIMCP_API_KEY")
	setStr(&c.Upstream.APIKeyHeader, "APIMCP_API_KEY_HEADER")
	setStr(&c.Logging.Level, "APIMCP_LOG_LEVEL")
}

func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport %q: must be \"stdio\" or \"http\"", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// Addr returns the host:port the HTTP transport listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// FlagOverrides carries CLI flag values that take precedence over the file
// and the environment. Empty values leave the config untouched.
type FlagOverrides struct {
	Transport    string
	HTTPAddr     string
	SpecPath     string
	BaseURL      string
	BearerToken  string
	BasicAuth    string
	APIKey       string
	APIKeyHeader string
	LogLevel     string
}

// ApplyFlagOverrides folds the flag values into the config.
func (c *Config) ApplyFlagOverrides(f FlagOverrides) error {
	if f.Transport != "" {
		c.Server.Transport = f.Transport
	}
	if f.HTTPAddr != "" {
		c.Server.Transport = "http"
		host, port, err := splitAddr(f.HTTPAddr)
		if err != nil {
			return err
		}
		if host != "" {
			c.Server.Host = host
		}
		c.Server.Port = port
	}
	if f.SpecPath != "" {
		c.Spec.Path = f.SpecPath
	}
	if f.BaseURL != "" {
		c.Upstream.BaseURL = f.BaseURL
	}
	if f.BearerToken != "" {
		c.Upstream.BearerToken = f.BearerToken
	}
	if f.BasicAuth != "" {
		c.Upstream.BasicAuth = f.BasicAuth
	}
	if f.APIKey != "" {
		c.Upstream.APIKey = f.APIKey
	}
	if f.APIKeyHeader != "" {
		c.Upstream.APIKeyHeader = f.APIKeyHeader
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
	return c.validate()
}

func splitAddr(addr string) (string, int, error) {
	host := ""
	portStr := addr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			portStr = addr[i+1:]
			break
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q", addr)
	}
	return host, port, nil
}
