package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
	"github.com/tjfontaine/edge-gateway/internal/api"
	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/routing"
)

const defaultAccessLogLimit = 50

// Runner executes the gateway chain for one exchange.
type Runner interface {
	Run(ex *chain.Exchange) error
}

// Options configures a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	AdminToken     string
	Logger         *slog.Logger
	Chain          Runner
	// AccessLog enables GET /admin/access-log when set.
	AccessLog accesslog.Recorder
}

type Server struct {
	Router     *chi.Mux
	Port       int
	logger     *slog.Logger
	accessLog  accesslog.Recorder
	httpServer *http.Server
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "edge-gateway")
	})

	s := &Server{
		Router:    r,
		Port:      opts.Port,
		logger:    logger,
		accessLog: opts.AccessLog,
	}

	r.Group(func(r chi.Router) {
		r.Use(LoggingMiddleware(logger))
		r.Get("/health", s.handleHealth)
		if opts.AccessLog != nil {
			r.With(AdminTokenMiddleware(opts.AdminToken)).Get("/admin/access-log", s.handleAccessLog)
		}
	})

	r.Handle("/*", GatewayHandler(opts.Chain, logger))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Start listens on the configured port. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return ignoreClosed(s.httpServer.ListenAndServe())
}

// Serve accepts connections on l. It returns nil after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", l.Addr().String()))
	return ignoreClosed(s.httpServer.Serve(l))
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GatewayHandler runs every request through c and renders chain errors.
func GatewayHandler(c Runner, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := chain.NewExchange(w, r)
		err := c.Run(ex)
		if err == nil {
			return
		}

		var notFound *routing.NotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("no route for request",
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", notFound.Path),
			)
		}
		WriteError(ex.Response, err)
	})
}

// AdminTokenMiddleware requires "Authorization: Bearer <token>" when token is
// non-empty.
func AdminTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteError(chain.NewResponseWriter(w), api.Unauthorized("missing or invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = api.Write(w, http.StatusOK, api.OKWith("ok", map[string]string{"status": "ok"}))
}

func (s *Server) handleAccessLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultAccessLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = api.Write(w, http.StatusBadRequest, api.ErrorCode[any](http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.accessLog.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list access log", slog.String("error", err.Error()))
		_ = api.Write(w, http.StatusInternalServerError, api.Error[any]("failed to list access log"))
		return
	}
	if records == nil {
		records = []*accesslog.Record{}
	}

	_ = api.Write(w, http.StatusOK, api.OKData(records))
}
