package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/tjfontaine/edge-gateway/internal/accesslog/memory"
	"github.com/tjfontaine/edge-gateway/internal/chain"
	"github.com/tjfontaine/edge-gateway/internal/interceptor"
	"github.com/tjfontaine/edge-gateway/internal/routing"
	"github.com/tjfontaine/edge-gateway/internal/testutil"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func ordersTable(t *testing.T) *routing.Table {
	t.Helper()
	target, err := url.Parse("http://orders.internal:8080")
	if err != nil {
		t.Fatal(err)
	}
	return routing.NewTable([]routing.Route{{ID: "orders", Prefix: "orders", Target: target}})
}

func newGatewayChain(t *testing.T, d *Dispatcher) *chain.Chain {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return chain.New(d.Dispatch,
		interceptor.New(interceptor.Options{Logger: logger, StripPrefix: interceptor.DefaultStripPrefix}),
		routing.NewStage(ordersTable(t)),
	)
}

func TestDispatcher_ReplaysBackend(t *testing.T) {
	rec, cleanup := testutil.NewVCRRecorder(t, "orders_get", interceptor.HeaderBasePath, interceptor.HeaderUserName)
	defer cleanup()

	c := newGatewayChain(t, New(WithTransport(rec)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.example.com/orders/api/orders/42?expand=items", nil)
	ex := chain.NewExchange(w, req)

	if err := c.Run(ex); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"id":42,"status":"shipped"}` {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if ex.Response.Status() != http.StatusOK {
		t.Errorf("captured status = %d", ex.Response.Status())
	}
}

func TestDispatcher_EarlyHintsRecordFinalStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", "</app.css>; rel=preload")
		w.WriteHeader(http.StatusEarlyHints)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer backend.Close()

	target, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatal(err)
	}
	store := memory.New(10)
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	c := chain.New(New(WithTransport(backend.Client().Transport)).Dispatch,
		interceptor.New(interceptor.Options{Logger: logger, StripPrefix: interceptor.DefaultStripPrefix, Recorder: store}),
		routing.NewStage(routing.NewTable([]routing.Route{{ID: "app", Prefix: "app", Target: target}})),
	)

	captured := make(chan int, 1)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := chain.NewExchange(w, r)
		if err := c.Run(ex); err != nil {
			t.Errorf("Run() error = %v", err)
		}
		captured <- ex.Response.Status()
	}))
	defer front.Close()

	resp, err := http.Get(front.URL + "/app/index.html")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("client got %d %q, want 200 \"ok\"", resp.StatusCode, body)
	}
	if got := <-captured; got != http.StatusOK {
		t.Errorf("captured status = %d, want 200", got)
	}
	records, err := store.Recent(context.Background(), 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("Recent() = %v, %v", records, err)
	}
	if records[0].Status != http.StatusOK {
		t.Errorf("access record status = %d, want 200", records[0].Status)
	}
}

func TestDispatcher_PassesBackendErrorStatus(t *testing.T) {
	rec, cleanup := testutil.NewVCRRecorder(t, "orders_get", interceptor.HeaderBasePath)
	defer cleanup()

	c := newGatewayChain(t, New(WithTransport(rec)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw.example.com/orders/api/orders/404", nil)

	if err := c.Run(chain.NewExchange(w, req)); err != nil {
		t.Fatalf("backend status codes are not dispatch errors, got %v", err)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDispatcher_RewritesTarget(t *testing.T) {
	var seen *http.Request
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return &http.Response{
			StatusCode: http.StatusNoContent,
			Header:     make(http.Header),
			Body:       http.NoBody,
			Request:    r,
		}, nil
	})

	target, _ := url.Parse("https://backend.internal/base?tenant=a")
	route := &routing.Route{ID: "svc", Prefix: "svc", Target: target}
	d := New(WithTransport(transport))

	req := httptest.NewRequest(http.MethodPut, "http://gw/svc/items/7?x=1", nil)
	rewritten, _ := url.Parse("http://gw/items/7?x=1")
	ex := chain.NewExchange(httptest.NewRecorder(), req).
		WithAttribute(chain.AttrRoute, route).
		WithAttribute(chain.AttrRequestURL, rewritten)

	if err := d.Dispatch(ex); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if seen == nil {
		t.Fatal("transport not called")
	}
	if got := seen.URL.String(); got != "https://backend.internal/base/items/7?tenant=a&x=1" {
		t.Errorf("backend URL = %q", got)
	}
	if seen.Method != http.MethodPut {
		t.Errorf("method = %q", seen.Method)
	}
	if seen.Header.Get("X-Forwarded-Host") != "gw" {
		t.Errorf("X-Forwarded-Host = %q", seen.Header.Get("X-Forwarded-Host"))
	}
	if ex.Response.Status() != http.StatusNoContent {
		t.Errorf("status = %d", ex.Response.Status())
	}
}

func TestDispatcher_ReturnsTransportError(t *testing.T) {
	errBackend := errors.New("connection refused")
	d := New(WithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errBackend
	})))

	target, _ := url.Parse("http://backend")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://gw/svc/x", nil)
	ex := chain.NewExchange(w, req).WithAttribute(chain.AttrRoute, &routing.Route{ID: "svc", Target: target})

	err := d.Dispatch(ex)
	if !errors.Is(err, errBackend) {
		t.Fatalf("Dispatch() error = %v, want %v", err, errBackend)
	}
	if ex.Response.Written() {
		t.Errorf("dispatcher wrote a response on error: %d", ex.Response.Status())
	}
}

func TestDispatcher_NoRoute(t *testing.T) {
	d := New()

	req := httptest.NewRequest(http.MethodGet, "http://gw/svc/x", nil)
	err := d.Dispatch(chain.NewExchange(httptest.NewRecorder(), req))

	var nf *routing.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
