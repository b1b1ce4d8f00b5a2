package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/tjfontaine/edge-gateway/internal/api"
	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/routing"
)

// StatusFor maps an error returned by the chain to an HTTP status. It
// returns 0 when no response should be written.
func StatusFor(err error) int {
	var notFound *routing.NotFoundError
	var unauthorized *api.UnauthorizedError

	switch {
	case err == nil:
		return 0
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 0
	default:
		return http.StatusBadGateway
	}
}

// WriteError renders err as an error envelope. Nothing is written if the
// response has already started or the client went away.
func WriteError(w *chain.ResponseWriter, err error) {
	if w.Written() {
		return
	}
	status := StatusFor(err)
	if status == 0 {
		return
	}

	msg := "backend unavailable"
	var unauthorized *api.UnauthorizedError
	switch {
	case status == http.StatusNotFound:
		msg = err.Error()
	case errors.As(err, &unauthorized):
		msg = unauthorized.Error()
	case status == http.StatusGatewayTimeout:
		msg = "backend timed out"
	}

	_ = api.Write(w, status, api.ErrorCode[any](status, msg))
}
