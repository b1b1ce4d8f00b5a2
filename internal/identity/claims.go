package identity

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims resolves the identity from a signed JWT: the "username" claim if
// present, otherwise the subject.
type Claims struct {
	header    string
	algorithm string
	key       any
	logger    *slog.Logger
}

// NewClaims builds a claims resolver. Key material must match the algorithm.
func NewClaims(opts Options) (*Claims, error) {
	header := opts.TokenHeader
	if header == "" {
		header = DefaultTokenHeader
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	alg := opts.Algorithm
	if alg == "" {
		if opts.Secret != "" {
			alg = "HS256"
		} else {
			alg = "RS256"
		}
	}

	c := &Claims{header: header, algorithm: alg, logger: logger}

	switch alg {
	case "HS256":
		if opts.Secret == "" {
			return nil, errors.New("identity: HS256 requires a secret")
		}
		c.key = []byte(opts.Secret)
	case "RS256", "EdDSA":
		if opts.PublicKey == "" {
			return nil, fmt.Errorf("identity: %s requires a public key", alg)
		}
		pub, err := parsePublicKey(opts.PublicKey, alg)
		if err != nil {
			return nil, fmt.Errorf("identity: %w", err)
		}
		c.key = pub
	default:
		return nil, fmt.Errorf("identity: unsupported algorithm %q", alg)
	}

	return c, nil
}

// Resolve returns the token's user name, or "" when the token is absent or
// does not verify.
func (c *Claims) Resolve(ctx context.Context, h http.Header) string {
	token := strings.TrimSpace(h.Get(c.header))
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.algorithm}))
	if err != nil {
		c.logger.WarnContext(ctx, "token parse failed", slog.String("error", err.Error()))
		return ""
	}

	if username, ok := claims["username"].(string); ok && strings.TrimSpace(username) != "" {
		return username
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

func (c *Claims) keyFunc(*jwt.Token) (any, error) {
	return c.key, nil
}

// parsePublicKey decodes a PEM public key (RSA or Ed25519).
func parsePublicKey(pemStr, algorithm string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	switch algorithm {
	case "RS256":
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA public key")
		}
		return rsaPub, nil
	case "EdDSA":
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not Ed25519 public key")
		}
		return edPub, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}
