// Package identity resolves the user name the gateway forwards to backends in
// the Authorization-UserName header.
//
// Resolution never rejects a request: a resolver that cannot determine an
// identity returns the empty string and the request is forwarded anyway.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Modes accepted by New.
const (
	ModeNone   = "none"
	ModeClaims = "claims"
)

// DefaultTokenHeader carries the access token read by the claims resolver.
const DefaultTokenHeader = "X-Access-Token"

// Resolver derives an identity from request headers.
type Resolver interface {
	Resolve(ctx context.Context, h http.Header) string
}

// Noop always resolves to the empty identity.
type Noop struct{}

func (Noop) Resolve(context.Context, http.Header) string { return "" }

// Options configures New.
type Options struct {
	Mode        string
	TokenHeader string
	// Secret is the HMAC key for HS256 tokens.
	Secret string
	// PublicKey is a PEM-encoded RSA or Ed25519 key for RS256/EdDSA tokens.
	PublicKey string
	// Algorithm is HS256, RS256 or EdDSA. Empty selects HS256 when Secret is
	// set and RS256 otherwise.
	Algorithm string
	Logger    *slog.Logger
}

// New builds the resolver selected by opts.Mode. An empty mode means ModeNone.
func New(opts Options) (Resolver, error) {
	switch opts.Mode {
	case "", ModeNone:
		return Noop{}, nil
	case ModeClaims:
		return NewClaims(opts)
	default:
		return nil, fmt.Errorf("unknown identity mode %q", opts.Mode)
	}
}
