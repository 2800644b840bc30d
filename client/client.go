// Package client is the canvas-side SDK for the easel API: a thin HTTP
// client plus an orchestrator that supervises asynchronous generations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SubmitRequest is a generation submission.
type SubmitRequest struct {
	JobID            string      `json:"job_id"`
	Prompt           string      `json:"prompt"`
	Tier             string      `json:"tier,omitempty"`
	Title            string      `json:"title,omitempty"`
	SourceArtifactID string      `json:"source_artifact_id,omitempty"`
	Variables        []Variable  `json:"variables,omitempty"`
	Mask             string      `json:"mask,omitempty"` // base64 PNG
	References       []Reference `json:"references,omitempty"`
	AspectRatio      string      `json:"aspect_ratio,omitempty"`
}

// Variable is a named set of prompt substitution values.
type Variable struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Reference is an external image URL with an optional caption.
type Reference struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	JobID               string  `json:"job_id"`
	Status              string  `json:"status"`
	Tier                string  `json:"tier"`
	CostUSD             float64 `json:"cost_usd"`
	EstimatedDurationMs int64   `json:"estimated_duration_ms"`
}

// Job mirrors the server's generation job record.
type Job struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Tier         string  `json:"tier"`
	CostUSD      float64 `json:"cost_usd"`
	Title        string  `json:"title"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// Artifact mirrors the server's artifact record plus its download URL.
type Artifact struct {
	ID         string  `json:"id"`
	ParentID   *string `json:"parent_id,omitempty"`
	Title      string  `json:"title"`
	Version    int     `json:"version"`
	Prompt     string  `json:"prompt,omitempty"`
	URL        string  `json:"url,omitempty"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	RealWidth  int     `json:"real_width"`
	RealHeight int     `json:"real_height"`
}

// Balance is the server-side credit balance.
type Balance struct {
	BalanceUSD float64 `json:"balance_usd"`
	Unlimited  bool    `json:"unlimited"`
}

// Client talks to the easel API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates an API client. The token is sent as a bearer credential on
// every request; both session tokens and ez_ API keys work.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitGeneration submits a generation job.
func (c *Client) SubmitGeneration(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches one job. Returns nil without error when the job does not
// exist (or belongs to someone else).
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var out Job
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+jobID, nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetArtifact fetches one artifact with its download URL. Returns nil
// without error on 404.
func (c *Client) GetArtifact(ctx context.Context, artifactID string) (*Artifact, error) {
	var out Artifact
	err := c.do(ctx, http.MethodGet, "/api/v1/artifacts/"+artifactID, nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalance fetches the authoritative credit balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/api/v1/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errorMessage pulls the human-readable detail out of a huma error body.
func errorMessage(data []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}
	msg := string(data)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
