package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file
// settings. Nested keys are separated by a double underscore, so
// EDGE_SERVER__PORT sets server.port.
const EnvPrefix = "EDGE_"

// DefaultPath is read when Load is given an empty path.
const DefaultPath = "config.yaml"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Identity IdentityConfig `koanf:"identity"`
	Storage  StorageConfig  `koanf:"storage"`
	Logging  LoggingConfig  `koanf:"logging"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Routes   []RouteConfig  `koanf:"routes"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AdminToken      string        `koanf:"admin_token"` // bearer token for /admin, empty leaves it open
}

type GatewayConfig struct {
	StripPrefix   int           `koanf:"strip_prefix"`   // leading path segments removed before dispatch
	FlushInterval time.Duration `koanf:"flush_interval"` // 0 disables periodic flushing, negative flushes every write
}

type IdentityConfig struct {
	Mode        string `koanf:"mode"` // none, claims
	TokenHeader string `koanf:"token_header"`
	Algorithm   string `koanf:"algorithm"` // HS256, RS256, EdDSA
	Secret      string `koanf:"secret"`
	PublicKey   string `koanf:"public_key"` // PEM
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // none, memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
	Memory MemoryConfig `koanf:"memory"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type MemoryConfig struct {
	Capacity int `koanf:"capacity"`
}

type LoggingConfig struct {
	Level string        `koanf:"level"` // debug, info, warn, error
	File  LogFileConfig `koanf:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type RouteConfig struct {
	ID     string `koanf:"id"`
	Prefix string `koanf:"prefix"`
	Target string `koanf:"target"`
}

var defaults = map[string]any{
	"server.port":               8080,
	"server.request_timeout":    "30s",
	"server.shutdown_timeout":   "30s",
	"gateway.strip_prefix":      1,
	"identity.mode":             "none",
	"identity.token_header":     "X-Access-Token",
	"storage.type":              "none",
	"storage.sqlite.path":       "./data/access.db",
	"storage.memory.capacity":   1000,
	"logging.level":             "info",
	"logging.file.path":         "./logs/gateway.log",
	"logging.file.max_size_mb":  100,
	"logging.file.max_backups":  5,
	"logging.file.max_age_days": 30,
	"tracing.enabled":           false,
	"tracing.service_name":      "edge-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (DefaultPath if empty), then applies
// EDGE_ environment overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Server.AdminToken = substituteEnvVars(cfg.Server.AdminToken)
	cfg.Identity.Secret = substituteEnvVars(cfg.Identity.Secret)
	cfg.Identity.PublicKey = substituteEnvVars(cfg.Identity.PublicKey)
	for i := range cfg.Routes {
		cfg.Routes[i].Target = substituteEnvVars(cfg.Routes[i].Target)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		addf("server.port %d out of range", c.Server.Port)
	}
	if c.Gateway.StripPrefix < 0 {
		addf("gateway.strip_prefix must not be negative")
	}

	switch c.Identity.Mode {
	case "", "none":
	case "claims":
		if c.Identity.Secret == "" && c.Identity.PublicKey == "" {
			addf("identity.mode claims requires identity.secret or identity.public_key")
		}
	default:
		addf("unknown identity.mode %q", c.Identity.Mode)
	}

	switch c.Storage.Type {
	case "", "none", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			addf("storage.sqlite.path is required for sqlite storage")
		}
	default:
		addf("unknown storage.type %q", c.Storage.Type)
	}

	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		addf("logging.file.path is required when file logging is enabled")
	}

	seen := make(map[string]string, len(c.Routes))
	for i, r := range c.Routes {
		name := r.ID
		if name == "" {
			name = fmt.Sprintf("routes[%d]", i)
		}
		prefix := strings.Trim(r.Prefix, "/")
		switch {
		case prefix == "":
			addf("%s: prefix is required", name)
		case strings.Contains(prefix, "/"):
			addf("%s: prefix %q must be a single path segment", name, r.Prefix)
		default:
			if other, dup := seen[prefix]; dup {
				addf("%s: prefix %q already used by %s", name, prefix, other)
			}
			seen[prefix] = name
		}

		u, err := url.Parse(r.Target)
		if err != nil || !u.IsAbs() || u.Host == "" {
			addf("%s: target %q must be an absolute URL", name, r.Target)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
