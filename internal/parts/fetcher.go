package parts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher retrieves reference images by URL, returning the bytes and the
// content type reported by the server.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

const (
	// maxReferenceBytes caps how much we download per reference image.
	maxReferenceBytes = 20 * 1024 * 1024

	fetchTimeout = 30 * time.Second
)

// HTTPFetcher fetches reference images over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with a bounded timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch downloads the URL, rejecting non-2xx responses and oversized bodies.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", fmt.Errorf("unsupported reference URL scheme: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("reference fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxReferenceBytes {
		return nil, "", fmt.Errorf("reference image exceeds %d bytes", maxReferenceBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}
