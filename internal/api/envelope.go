// Package api holds the JSON response envelope shared by the gateway's own
// endpoints and its error responses.
package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Status codes carried in the envelope's code field.
const (
	CodeOK                  = http.StatusOK
	CodeInternalServerError = http.StatusInternalServerError
	// CodeNoAuthz marks a caller that is authenticated but lacks permission.
	CodeNoAuthz = 510
)

const (
	msgOK = "operation succeeded"
)

// Envelope is the fixed-shape success/failure wrapper.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Result    T      `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

var now = time.Now

func newEnvelope[T any](success bool, code int, msg string) Envelope[T] {
	return Envelope[T]{
		Success:   success,
		Code:      code,
		Message:   msg,
		Timestamp: now().UnixMilli(),
	}
}

// OK returns an empty success envelope.
func OK[T any]() Envelope[T] {
	return newEnvelope[T](true, CodeOK, msgOK)
}

// OKMessage returns a success envelope with a custom message.
func OKMessage[T any](msg string) Envelope[T] {
	return newEnvelope[T](true, CodeOK, msg)
}

// OKData returns a success envelope carrying data.
func OKData[T any](data T) Envelope[T] {
	return OK[T]().WithResult(data)
}

// OKWith returns a success envelope carrying a message and data.
func OKWith[T any](msg string, data T) Envelope[T] {
	return OKMessage[T](msg).WithResult(data)
}

// Error returns a failure envelope with code 500.
func Error[T any](msg string) Envelope[T] {
	return newEnvelope[T](false, CodeInternalServerError, msg)
}

// ErrorCode returns a failure envelope with the given code.
func ErrorCode[T any](code int, msg string) Envelope[T] {
	return newEnvelope[T](false, code, msg)
}

// ErrorData returns a code 500 failure envelope carrying data.
func ErrorData[T any](msg string, data T) Envelope[T] {
	return Error[T](msg).WithResult(data)
}

// NoAuth returns a failure envelope signalling missing authorization.
func NoAuth[T any](msg string) Envelope[T] {
	return newEnvelope[T](false, CodeNoAuthz, msg)
}

// WithSuccess returns a copy marked successful with code and message.
func (e Envelope[T]) WithSuccess(code int, msg string) Envelope[T] {
	e.Success = true
	e.Code = code
	e.Message = msg
	return e
}

// WithFailure returns a copy marked failed with code and message.
func (e Envelope[T]) WithFailure(code int, msg string) Envelope[T] {
	e.Success = false
	e.Code = code
	e.Message = msg
	return e
}

// WithResult returns a copy carrying result.
func (e Envelope[T]) WithResult(result T) Envelope[T] {
	e.Result = result
	return e
}

// WithMessage returns a copy with msg.
func (e Envelope[T]) WithMessage(msg string) Envelope[T] {
	e.Message = msg
	return e
}

// Write encodes env as JSON with the given HTTP status.
func Write[T any](w http.ResponseWriter, status int, env Envelope[T]) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}
