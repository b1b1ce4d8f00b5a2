package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestConstructors(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	freezeClock(t, at)

	tests := []struct {
		name    string
		env     Envelope[string]
		success bool
		code    int
		message string
		result  string
	}{
		{"ok", OK[string](), true, 200, msgOK, ""},
		{"ok message", OKMessage[string]("done"), true, 200, "done", ""},
		{"ok data", OKData("payload"), true, 200, msgOK, "payload"},
		{"ok with", OKWith("done", "payload"), true, 200, "done", "payload"},
		{"error", Error[string]("boom"), false, 500, "boom", ""},
		{"error code", ErrorCode[string](404, "missing"), false, 404, "missing", ""},
		{"error data", ErrorData("boom", "ctx"), false, 500, "boom", "ctx"},
		{"no auth", NoAuth[string]("denied"), false, CodeNoAuthz, "denied", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.success, tt.env.Success)
			assert.Equal(t, tt.code, tt.env.Code)
			assert.Equal(t, tt.message, tt.env.Message)
			assert.Equal(t, tt.result, tt.env.Result)
			assert.Equal(t, at.UnixMilli(), tt.env.Timestamp)
		})
	}
}

func TestFluentMethodsReturnCopies(t *testing.T) {
	base := OK[int]()
	failed := base.WithFailure(503, "down").WithResult(7)

	assert.True(t, base.Success)
	assert.Equal(t, 0, base.Result)
	assert.False(t, failed.Success)
	assert.Equal(t, 503, failed.Code)
	assert.Equal(t, 7, failed.Result)

	recovered := failed.WithSuccess(200, "up").WithMessage("back")
	assert.True(t, recovered.Success)
	assert.Equal(t, "back", recovered.Message)
}

func TestWrite_JSONShape(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, http.StatusBadGateway, ErrorCode[any](502, "backend unavailable")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(502), body["code"])
	assert.Equal(t, "backend unavailable", body["message"])
	assert.Contains(t, body, "data")
	assert.Contains(t, body, "timestamp")
}

func TestUnauthorizedError(t *testing.T) {
	cause := errors.New("token expired")

	assert.Equal(t, "unauthorized", (&UnauthorizedError{}).Error())
	assert.Equal(t, "login required", Unauthorized("login required").Error())
	assert.Equal(t, "token expired", (&UnauthorizedError{Err: cause}).Error())

	err := error(&UnauthorizedError{Message: "rejected", Err: cause})
	assert.Equal(t, "rejected: token expired", err.Error())
	assert.ErrorIs(t, err, cause)

	var target *UnauthorizedError
	assert.True(t, errors.As(err, &target))
}
