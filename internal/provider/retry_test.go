package provider

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testDoer() httpDoer {
	d := newHTTPDoer(slog.Default())
	d.backoffStep = time.Millisecond
	return d
}

func getBuilder(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestDoWithRetryBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := testDoer()
	_, status, err := d.doWithRetry(context.Background(), getBuilder(srv.URL))
	if err != nil {
		t.Fatalf("expected last response, got error: %v", err)
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d attempts, want exactly 3", got)
	}
}

func TestDoWithRetryEventualSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := testDoer()
	body, status, err := d.doWithRetry(context.Background(), getBuilder(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK || string(body) != "ok" {
		t.Errorf("got status %d body %q, want 200 ok", status, body)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestDoWithRetryNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := testDoer()
	_, status, err := d.doWithRetry(context.Background(), getBuilder(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("400 must not be retried, server saw %d attempts", got)
	}
}

func TestDoWithRetryNetworkError(t *testing.T) {
	// Closed server: every attempt is a connection error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := testDoer()
	_, _, err := d.doWithRetry(context.Background(), getBuilder(url))
	if err == nil {
		t.Fatal("expected error after exhausting retries on network failure")
	}
}

func TestDoWithRetryContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newHTTPDoer(slog.Default()) // real backoff so cancellation wins
	_, _, err := d.doWithRetry(ctx, getBuilder(srv.URL))
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 503} {
		if !retryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 402, 404, 422, 502, 504} {
		if retryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}
