// Package runtime provides the core Gateway struct and lifecycle management
// for the edge gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
	"github.com/tjfontaine/edge-gateway/internal/accesslog/memory"
	"github.com/tjfontaine/edge-gateway/internal/accesslog/sqlite"
	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/config"
	"github.com/tjfontaine/edge-gateway/internal/identity"
	"github.com/tjfontaine/edge-gateway/internal/interceptor"
	"github.com/tjfontaine/edge-gateway/internal/proxy"
	"github.com/tjfontaine/edge-gateway/internal/routing"
	"github.com/tjfontaine/edge-gateway/internal/server"
)

// ConfigProvider supplies the gateway configuration and reports changes.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// Gateway is the main entry point for running the edge gateway.
// It owns configuration, the request chain and the HTTP server lifecycle.
// Gateway can be embedded in larger applications or run standalone.
type Gateway struct {
	// Dependencies (injected via options)
	config    ConfigProvider
	logger    *slog.Logger
	accessLog accesslog.Recorder
	transport http.RoundTripper
	now       func() time.Time
	listener  net.Listener

	// Internal state
	ownsAccessLog bool
	routes        *routing.Table
	interceptor   *interceptor.RequestInterceptor
	chain         *chain.Chain
	server        *server.Server
	serveDone     chan struct{}

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Gateway with the given options.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		return nil, fmt.Errorf("config provider required (use WithConfigFile or WithConfigProvider)")
	}

	return gw, nil
}

// Start loads configuration, builds the chain and starts serving. On failure
// anything Start opened is released and Start may be called again.
func (g *Gateway) Start(ctx context.Context) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)
	defer func() {
		if err != nil {
			g.abortStart()
		}
	}()

	cfg, err := g.config.Load(g.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if g.accessLog == nil {
		store, err := openAccessLog(cfg.Storage)
		if err != nil {
			return fmt.Errorf("open access log: %w", err)
		}
		g.accessLog = store
		g.ownsAccessLog = store != nil
	}

	resolver, err := identity.New(identityOptions(cfg.Identity, g.logger))
	if err != nil {
		return fmt.Errorf("init identity: %w", err)
	}

	routes, err := buildRoutes(cfg.Routes)
	if err != nil {
		return fmt.Errorf("init routes: %w", err)
	}
	g.routes = routing.NewTable(routes)

	g.interceptor = interceptor.New(interceptor.Options{
		Logger:      g.logger,
		Resolver:    resolver,
		StripPrefix: cfg.Gateway.StripPrefix,
		Recorder:    g.accessLog,
		RequestID:   server.ExchangeRequestID,
		Now:         g.now,
	})

	dispatcher := proxy.New(
		proxy.WithTransport(g.transport),
		proxy.WithLogger(g.logger),
		proxy.WithFlushInterval(cfg.Gateway.FlushInterval),
	)

	g.chain = chain.New(dispatcher.Dispatch, routing.NewStage(g.routes), g.interceptor)

	g.server = server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminToken:     cfg.Server.AdminToken,
		Logger:         g.logger,
		Chain:          g.chain,
		AccessLog:      g.accessLog,
	})

	if err := g.startServer(cfg); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	// Watch for config changes
	if err := g.config.Watch(g.ctx, g.onConfigChange); err != nil {
		g.logger.Warn("config watch unavailable, hot reload disabled", slog.String("error", err.Error()))
	}

	g.logger.Info("gateway started",
		slog.String("addr", g.listener.Addr().String()),
		slog.Int("routes", g.routes.Len()),
		slog.Any("stages", g.chain.Stages()),
		slog.String("identity_mode", cfg.Identity.Mode),
		slog.String("storage", cfg.Storage.Type))

	return nil
}

func (g *Gateway) abortStart() {
	g.cancel()
	if g.ownsAccessLog && g.accessLog != nil {
		if err := g.accessLog.Close(); err != nil {
			g.logger.Error("failed to close access log", slog.String("error", err.Error()))
		}
		g.accessLog = nil
		g.ownsAccessLog = false
	}
}

func (g *Gateway) startServer(cfg *config.Config) error {
	if g.listener == nil {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
		if err != nil {
			return err
		}
		g.listener = l
	}

	g.serveDone = make(chan struct{})
	go func() {
		defer close(g.serveDone)
		if err := g.server.Serve(g.listener); err != nil {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the address the gateway is serving on, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	var errs []error

	// Stop HTTP server
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		if g.serveDone != nil {
			<-g.serveDone
		}
	}

	// Close resources
	if g.ownsAccessLog && g.accessLog != nil {
		if err := g.accessLog.Close(); err != nil {
			g.logger.Error("failed to close access log", slog.String("error", err.Error()))
		}
	}

	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

func (g *Gateway) onConfigChange(cfg *config.Config) {
	g.logger.Info("config changed, reloading")
	if err := g.reload(cfg); err != nil {
		g.logger.Error("failed to reload", slog.String("error", err.Error()))
	}
}

// reload applies the parts of cfg that can change without a restart: the
// route table, the identity resolver and the strip count.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	resolver, err := identity.New(identityOptions(cfg.Identity, g.logger))
	if err != nil {
		return fmt.Errorf("reinit identity: %w", err)
	}
	routes, err := buildRoutes(cfg.Routes)
	if err != nil {
		return fmt.Errorf("reinit routes: %w", err)
	}

	g.routes.Update(routes)
	g.interceptor.SetResolver(resolver)
	g.interceptor.SetStripPrefix(cfg.Gateway.StripPrefix)

	g.logger.Info("reload complete",
		slog.Int("routes", len(routes)),
		slog.Int("strip_prefix", cfg.Gateway.StripPrefix),
		slog.String("identity_mode", cfg.Identity.Mode))

	return nil
}

func openAccessLog(cfg config.StorageConfig) (accesslog.Recorder, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.Memory.Capacity), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func identityOptions(cfg config.IdentityConfig, logger *slog.Logger) identity.Options {
	return identity.Options{
		Mode:        cfg.Mode,
		TokenHeader: cfg.TokenHeader,
		Secret:      cfg.Secret,
		PublicKey:   cfg.PublicKey,
		Algorithm:   cfg.Algorithm,
		Logger:      logger,
	}
}

func buildRoutes(cfgs []config.RouteConfig) ([]routing.Route, error) {
	routes := make([]routing.Route, 0, len(cfgs))
	for _, rc := range cfgs {
		target, err := url.Parse(rc.Target)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", rc.ID, err)
		}
		id := rc.ID
		if id == "" {
			id = rc.Prefix
		}
		routes = append(routes, routing.Route{ID: id, Prefix: rc.Prefix, Target: target})
	}
	return routes, nil
}
