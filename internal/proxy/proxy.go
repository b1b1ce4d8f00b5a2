// Package proxy forwards intercepted exchanges to their backend route.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/routing"
)

// Dispatcher is the terminal handler of the gateway chain.
type Dispatcher struct {
	logger        *slog.Logger
	transport     http.RoundTripper
	flushInterval time.Duration
	proxy         *httputil.ReverseProxy
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTransport sets the round tripper used to reach backends. It is wrapped
// with OpenTelemetry instrumentation.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.transport = rt
	}
}

// WithLogger sets the logger used for proxy diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithFlushInterval sets how often streamed response bodies are flushed.
// A negative value flushes after every write.
func WithFlushInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.flushInterval = interval
	}
}

type dispatchKey struct{}

// dispatch carries per-request state between Dispatch and the proxy hooks.
type dispatch struct {
	route *routing.Route
	ex    *chain.Exchange
	err   error
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	base := d.transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	d.proxy = &httputil.ReverseProxy{
		Rewrite:       d.rewrite,
		Transport:     otelhttp.NewTransport(base),
		FlushInterval: d.flushInterval,
		ErrorHandler:  d.handleError,
		ErrorLog:      slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn),
	}
	return d
}

// Dispatch forwards the exchange to its matched route and returns any
// transport error. Errors are not written to the response.
func (d *Dispatcher) Dispatch(ex *chain.Exchange) error {
	route, ok := routing.FromExchange(ex)
	if !ok {
		return &routing.NotFoundError{Path: ex.RequestURL().EscapedPath()}
	}

	state := &dispatch{route: route, ex: ex}
	req := ex.Request.WithContext(context.WithValue(ex.Request.Context(), dispatchKey{}, state))

	d.proxy.ServeHTTP(ex.Response, req)

	if state.err != nil {
		return fmt.Errorf("dispatch to route %s: %w", route.ID, state.err)
	}
	return nil
}

func (d *Dispatcher) rewrite(pr *httputil.ProxyRequest) {
	state, ok := pr.In.Context().Value(dispatchKey{}).(*dispatch)
	if !ok {
		return
	}

	target := state.ex.RequestURL()
	pr.Out.URL.Path = target.Path
	pr.Out.URL.RawPath = target.RawPath
	pr.Out.URL.RawQuery = target.RawQuery
	pr.SetURL(state.route.Target)
	pr.SetXForwarded()

	d.logger.Debug("dispatching request",
		slog.String("route", state.route.ID),
		slog.String("target", pr.Out.URL.String()),
	)
}

func (d *Dispatcher) handleError(w http.ResponseWriter, r *http.Request, err error) {
	state, ok := r.Context().Value(dispatchKey{}).(*dispatch)
	if !ok {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	state.err = err
}
