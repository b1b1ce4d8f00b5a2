// Package accesslog defines the access record produced for every completed
// request and the stores that can retain it.
package accesslog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StatusUnavailable is logged in place of a status when none was produced.
const StatusUnavailable = "N/A"

// Record is one completed request as seen by the gateway.
type Record struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Method     string    `json:"method"`
	URI        string    `json:"uri"`
	Status     int       `json:"status"` // 0 when no status was produced
	DurationMs int64     `json:"duration_ms"`
	User       string    `json:"user"`
	ClientIP   string    `json:"client_ip,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRecord returns a Record with a fresh ID for a request received at
// receivedAt that took duration and finished with err. A negative duration is
// clamped to zero.
func NewRecord(receivedAt time.Time, duration time.Duration, err error) *Record {
	if duration < 0 {
		duration = 0
	}
	rec := &Record{
		ID:         uuid.NewString(),
		DurationMs: duration.Milliseconds(),
		CreatedAt:  receivedAt,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Attrs returns the record as log attributes. The error attribute is present
// only when the request failed.
func (r *Record) Attrs() []slog.Attr {
	status := slog.Any("status", StatusUnavailable)
	if r.HasStatus() {
		status = slog.Int("status", r.Status)
	}
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("uri", r.URI),
		status,
		slog.Int64("duration_ms", r.DurationMs),
		slog.String("user", r.User),
		slog.String("request_id", r.RequestID),
		slog.String("client_ip", r.ClientIP),
	}
	if r.Error != "" {
		attrs = append(attrs, slog.String("error", r.Error))
	}
	return attrs
}

// HasStatus reports whether a response status was produced.
func (r *Record) HasStatus() bool { return r.Status != 0 }

// Recorder persists access records.
type Recorder interface {
	// Record stores rec. Implementations assign CreatedAt when it is zero.
	Record(ctx context.Context, rec *Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)
	// Close releases resources held by the recorder.
	Close() error
}
