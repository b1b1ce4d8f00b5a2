// Package interceptor implements the gateway's request interceptor: it
// strips the leading path segment, injects the base-path and user headers
// and writes one access log entry when the request completes.
package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/clientip"
	"github.com/tjfontaine/edge-gateway/internal/identity"
)

const (
	// HeaderBasePath carries the gateway's externally visible base URL.
	HeaderBasePath = "X-Gateway-Base-Path"
	// HeaderUserName carries the resolved user name.
	HeaderUserName = "Authorization-UserName"

	// DefaultStripPrefix is the number of leading path segments removed.
	DefaultStripPrefix = 1

	// StageName identifies the interceptor in a chain.
	StageName = "request-interceptor"
)

// Options configures a RequestInterceptor.
type Options struct {
	Logger      *slog.Logger
	Resolver    identity.Resolver
	StripPrefix int
	Recorder    accesslog.Recorder
	ClientIP    *clientip.Resolver
	// RequestID extracts the request ID assigned by the server, if any.
	RequestID func(*chain.Exchange) string
	Now       func() time.Time
}

type settings struct {
	resolver    identity.Resolver
	stripPrefix int
}

// RequestInterceptor is the chain stage that prepares every request for
// dispatch and logs its outcome.
type RequestInterceptor struct {
	logger    *slog.Logger
	recorder  accesslog.Recorder
	clientIP  *clientip.Resolver
	requestID func(*chain.Exchange) string
	now       func() time.Time

	settings atomic.Pointer[settings]
}

var _ chain.Stage = (*RequestInterceptor)(nil)

// New creates a RequestInterceptor. StripPrefix is used as given, so callers
// wanting the usual behaviour pass DefaultStripPrefix. A nil Logger uses
// slog.Default and a nil Resolver leaves the user header empty.
func New(opts Options) *RequestInterceptor {
	ri := &RequestInterceptor{
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		clientIP:  opts.ClientIP,
		requestID: opts.RequestID,
		now:       opts.Now,
	}
	if ri.logger == nil {
		ri.logger = slog.Default()
	}
	if ri.clientIP == nil {
		ri.clientIP = &clientip.Resolver{}
	}
	if ri.now == nil {
		ri.now = time.Now
	}
	ri.settings.Store(&settings{resolver: opts.Resolver, stripPrefix: opts.StripPrefix})
	return ri
}

func (ri *RequestInterceptor) Name() string { return StageName }

func (ri *RequestInterceptor) Order() int { return 0 }

// SetResolver replaces the identity resolver used for subsequent requests.
func (ri *RequestInterceptor) SetResolver(r identity.Resolver) {
	for {
		cur := ri.settings.Load()
		next := &settings{resolver: r, stripPrefix: cur.stripPrefix}
		if ri.settings.CompareAndSwap(cur, next) {
			return
		}
	}
}

// SetStripPrefix replaces the number of segments stripped from subsequent
// requests.
func (ri *RequestInterceptor) SetStripPrefix(n int) {
	for {
		cur := ri.settings.Load()
		next := &settings{resolver: cur.resolver, stripPrefix: n}
		if ri.settings.CompareAndSwap(cur, next) {
			return
		}
	}
}

// StripCount returns the current number of stripped segments.
func (ri *RequestInterceptor) StripCount() int {
	return ri.settings.Load().stripPrefix
}

// Filter rewrites the request, hands it to next and logs the result once
// next has returned or panicked.
func (ri *RequestInterceptor) Filter(ex *chain.Exchange, next chain.Next) (err error) {
	cfg := ri.settings.Load()
	receivedAt := ri.now()

	inbound := ex.Request
	original := requestURL(inbound)
	rewritten := withPath(original, StripPrefix(original.EscapedPath(), cfg.stripPrefix))

	rc := &RequestContext{
		ReceivedAt:    receivedAt,
		OriginalURL:   original,
		BasePath:      BasePath(original),
		RewrittenPath: rewritten.EscapedPath(),
	}

	ex = ex.WithOriginalURL(original).WithAttribute(chain.AttrRequestURL, rewritten)

	ctx := inbound.Context()
	outbound := inbound.Clone(ctx)
	outbound.URL.Path = rewritten.Path
	outbound.URL.RawPath = rewritten.RawPath
	outbound.RequestURI = rewritten.RequestURI()

	if cfg.resolver != nil {
		rc.ResolvedUserName = cfg.resolver.Resolve(ctx, outbound.Header)
	}

	outbound.Header.Set(HeaderBasePath, rc.BasePath)
	outbound.Header.Set(HeaderUserName, rc.ResolvedUserName)
	outbound = outbound.WithContext(NewContext(ctx, rc))

	ex = ex.WithRequest(outbound).WithAttribute(AttrRequestContext, rc)

	defer func() {
		if p := recover(); p != nil {
			ri.complete(ex, rc, fmt.Errorf("panic: %v", p))
			panic(p)
		}
		ri.complete(ex, rc, err)
	}()

	return next(ex)
}

func (ri *RequestInterceptor) complete(ex *chain.Exchange, rc *RequestContext, err error) {
	r := ex.Request
	rec := accesslog.NewRecord(rc.ReceivedAt, ri.now().Sub(rc.ReceivedAt), err)
	rec.Method = r.Method
	rec.URI = ex.RequestURL().String()
	rec.User = r.Header.Get(HeaderUserName)
	rec.ClientIP = ri.clientIP.Resolve(r.Header, r.RemoteAddr)
	if ex.Response != nil {
		rec.Status = ex.Response.Status()
	}
	if ri.requestID != nil {
		rec.RequestID = ri.requestID(ex)
	}

	ri.logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", rec.Attrs()...)

	if ri.recorder != nil {
		if rerr := ri.recorder.Record(context.WithoutCancel(r.Context()), rec); rerr != nil {
			ri.logger.Warn("failed to record access log entry",
				slog.String("request_id", rec.RequestID),
				slog.String("error", rerr.Error()),
			)
		}
	}
}
