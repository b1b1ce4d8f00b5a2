package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a recorder replaying testdata/fixtures/<cassetteName>.yaml.
// Set VCR_MODE=record to capture a fresh cassette from a live backend.
//
// Interactions match on method and URL. Each header named in matchHeaders must
// also carry the recorded value, which lets a cassette pin headers the gateway
// is expected to inject.
func NewVCRRecorder(t *testing.T, cassetteName string, matchHeaders ...string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Don't match on request body for simplicity
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		if r.Method != i.Method || r.URL.String() != i.URL {
			return false
		}
		for _, h := range matchHeaders {
			if r.Header.Get(h) != i.Headers.Get(h) {
				return false
			}
		}
		return true
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}
