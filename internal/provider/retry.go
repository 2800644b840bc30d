package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// maxTransientRetries is how many times a failed call is retried after
	// the initial attempt. 429/500/503 and network errors qualify.
	maxTransientRetries = 2

	// defaultBackoffStep scales linearly: 2s after the first failure, 4s
	// after the second.
	defaultBackoffStep = 2 * time.Second

	defaultRequestTimeout = 120 * time.Second
)

// httpDoer wraps an http.Client with bounded transient-failure retries.
// Requests are rebuilt per attempt so bodies can be re-sent.
type httpDoer struct {
	client      *http.Client
	backoffStep time.Duration
	logger      *slog.Logger
}

func newHTTPDoer(logger *slog.Logger) httpDoer {
	if logger == nil {
		logger = slog.Default()
	}
	return httpDoer{
		client:      &http.Client{Timeout: defaultRequestTimeout},
		backoffStep: defaultBackoffStep,
		logger:      logger,
	}
}

// doWithRetry executes the built request, retrying transient failures with
// linear backoff. On success or a non-retryable status it returns the body
// and status code; classification is left to the caller. When retries are
// exhausted the last response is returned so the caller sees the real
// status. Only repeated network errors produce a non-nil error.
func (d *httpDoer) doWithRetry(ctx context.Context, build func() (*http.Request, error)) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * d.backoffStep
			d.logger.Debug("retrying provider request", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, 0, err
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < maxTransientRetries {
			lastErr = fmt.Errorf("provider returned status %d", resp.StatusCode)
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, fmt.Errorf("provider request failed after %d attempts: %w", maxTransientRetries+1, lastErr)
}
