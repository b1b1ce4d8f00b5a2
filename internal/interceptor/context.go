package interceptor

import (
	"context"
	"net/url"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/chain"
)

// AttrRequestContext holds the *RequestContext of an intercepted exchange.
const AttrRequestContext chain.AttributeKey = "gateway.request_context"

// RequestContext is the per-request state captured on entry.
type RequestContext struct {
	ReceivedAt       time.Time
	OriginalURL      *url.URL
	BasePath         string
	RewrittenPath    string
	ResolvedUserName string
}

// ReceivedAtMillis returns ReceivedAt as unix milliseconds.
func (rc *RequestContext) ReceivedAtMillis() int64 {
	return rc.ReceivedAt.UnixMilli()
}

type requestContextKey struct{}

// NewContext returns a copy of ctx carrying rc.
func NewContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
