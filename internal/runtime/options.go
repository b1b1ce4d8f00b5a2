package runtime

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
	"github.com/tjfontaine/edge-gateway/internal/adapters/config/file"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfigFile uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, g.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before WithConfigFile so the
// config provider logs through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithAccessLogStore records access entries in store instead of the store
// named by storage.type. The caller keeps ownership of store.
func WithAccessLogStore(store accesslog.Recorder) Option {
	return func(g *Gateway) error {
		g.accessLog = store
		return nil
	}
}

// WithTransport sets the round tripper used to reach backends.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) error {
		g.transport = rt
		return nil
	}
}

// WithClock replaces the clock used to time requests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) error {
		g.now = now
		return nil
	}
}

// WithListener serves on l instead of listening on server.port.
func WithListener(l net.Listener) Option {
	return func(g *Gateway) error {
		g.listener = l
		return nil
	}
}
