package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failures. Wrapped by ProviderError so
// callers can use errors.Is while still getting provider/model context.
var (
	ErrContentBlocked      = errors.New("content blocked by provider")
	ErrRateLimited         = errors.New("provider rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidProviderKey  = errors.New("invalid provider credentials")
	ErrTaskFailed          = errors.New("provider task failed")
	ErrEmptyResult         = errors.New("provider returned no image")
)

// Error categories.
const (
	CategoryRateLimit      = "rate_limit"
	CategoryProviderError  = "provider_error"
	CategoryInvalidKey     = "invalid_key"
	CategoryInvalidRequest = "invalid_request"
	CategoryContentBlocked = "content_blocked"
	CategoryTaskFailed     = "task_failed"
	CategoryTimeout        = "timeout"
)

// ProviderError carries structured context about an upstream failure.
type ProviderError struct {
	Err         error  // underlying/sentinel error
	StatusCode  int    // HTTP status from the provider, 0 if not applicable
	Provider    string
	Model       string
	Category    string
	UserMessage string // safe to show to the end user
	Retryable   bool   // transient, the transport layer may retry
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s/%s: %v (status %d)", e.Provider, e.Model, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// retryableStatus reports whether an HTTP status is transient. Only 429,
// 500 and 503 are retried; everything else propagates immediately.
func retryableStatus(code int) bool {
	return code == 429 || code == 500 || code == 503
}

// classifyStatus maps a non-2xx provider response to a ProviderError.
func classifyStatus(provider, model string, status int, body string) *ProviderError {
	e := &ProviderError{
		StatusCode: status,
		Provider:   provider,
		Model:      model,
		Retryable:  retryableStatus(status),
	}

	switch {
	case status == 429:
		e.Err = ErrRateLimited
		e.Category = CategoryRateLimit
		e.UserMessage = "The image service is busy. Please try again shortly."
	case status == 401 || status == 403:
		e.Err = ErrInvalidProviderKey
		e.Category = CategoryInvalidKey
		e.UserMessage = "The image service rejected our credentials."
	case status == 400 || status == 422:
		e.Err = fmt.Errorf("provider rejected request: %s", truncate(body, 200))
		e.Category = CategoryInvalidRequest
		e.UserMessage = "The image service could not process this request."
	case status >= 500:
		e.Err = ErrProviderUnavailable
		e.Category = CategoryProviderError
		e.UserMessage = "The image service had a problem. Please try again."
	default:
		e.Err = fmt.Errorf("unexpected provider status %d: %s", status, truncate(body, 200))
		e.Category = CategoryProviderError
		e.UserMessage = "The image service had a problem. Please try again."
	}

	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// UserMessage extracts a user-safe message from any error.
func UserMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.UserMessage != "" {
		return pe.UserMessage
	}
	return "Generation failed. Your credits have been refunded."
}
