package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 30*time.Second {
			t.Errorf("Load() request timeout = %v, want 30s", cfg.Server.RequestTimeout)
		}
		if cfg.Gateway.StripPrefix != 1 {
			t.Errorf("Load() strip prefix = %d, want 1", cfg.Gateway.StripPrefix)
		}
		if cfg.Identity.Mode != "none" || cfg.Identity.TokenHeader != "X-Access-Token" {
			t.Errorf("Load() identity = %+v", cfg.Identity)
		}
		if cfg.Storage.Type != "none" || cfg.Storage.SQLite.Path != "./data/access.db" {
			t.Errorf("Load() storage = %+v", cfg.Storage)
		}
		if cfg.Tracing.Enabled {
			t.Error("Load() tracing enabled by default")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should validate: %v", err)
		}
	})

	t.Run("file values", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9090
  request_timeout: 5s
gateway:
  strip_prefix: 2
identity:
  mode: claims
  secret: top-secret
storage:
  type: memory
routes:
  - id: orders
    prefix: orders
    target: http://orders.internal:8080
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9090 || cfg.Server.RequestTimeout != 5*time.Second {
			t.Errorf("Load() server = %+v", cfg.Server)
		}
		if cfg.Gateway.StripPrefix != 2 {
			t.Errorf("Load() strip prefix = %d", cfg.Gateway.StripPrefix)
		}
		if len(cfg.Routes) != 1 || cfg.Routes[0].Target != "http://orders.internal:8080" {
			t.Errorf("Load() routes = %+v", cfg.Routes)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("env var override", func(t *testing.T) {
		t.Setenv("EDGE_SERVER__PORT", "9000")
		t.Setenv("EDGE_STORAGE__SQLITE__PATH", "/tmp/x.db")

		cfg, err := Load(writeConfig(t, "server:\n  port: 7000\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Storage.SQLite.Path != "/tmp/x.db" {
			t.Errorf("Load() sqlite path = %q", cfg.Storage.SQLite.Path)
		}
	})

	t.Run("secret substitution", func(t *testing.T) {
		t.Setenv("GATEWAY_JWT_SECRET", "from-env")

		cfg, err := Load(writeConfig(t, "identity:\n  mode: claims\n  secret: ${GATEWAY_JWT_SECRET}\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Identity.Secret != "from-env" {
			t.Errorf("Load() secret = %q, want from-env", cfg.Identity.Secret)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "server: [\n")); err == nil {
			t.Error("Load() expected error for malformed yaml")
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Gateway:  GatewayConfig{StripPrefix: 1},
			Identity: IdentityConfig{Mode: "none"},
			Storage:  StorageConfig{Type: "none"},
			Routes: []RouteConfig{
				{ID: "a", Prefix: "a", Target: "http://a:80"},
				{ID: "b", Prefix: "/b/", Target: "https://b"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"negative strip", func(c *Config) { c.Gateway.StripPrefix = -1 }, "strip_prefix"},
		{"unknown mode", func(c *Config) { c.Identity.Mode = "oauth" }, `unknown identity.mode "oauth"`},
		{"claims without key", func(c *Config) { c.Identity.Mode = "claims" }, "requires identity.secret"},
		{"claims with secret", func(c *Config) { c.Identity.Mode = "claims"; c.Identity.Secret = "s" }, ""},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }, "unknown storage.type"},
		{"sqlite without path", func(c *Config) { c.Storage.Type = "sqlite" }, "storage.sqlite.path"},
		{"empty prefix", func(c *Config) { c.Routes[0].Prefix = "/" }, "a: prefix is required"},
		{"nested prefix", func(c *Config) { c.Routes[0].Prefix = "a/b" }, "single path segment"},
		{"duplicate prefix", func(c *Config) { c.Routes[1].Prefix = "a" }, "already used by a"},
		{"relative target", func(c *Config) { c.Routes[1].Target = "/local" }, "must be an absolute URL"},
		{"file logging without path", func(c *Config) { c.Logging.File.Enabled = true }, "logging.file.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
