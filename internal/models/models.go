// Package models defines the core domain types.
package models

import "time"

// JobStatus represents the lifecycle state of a generation job.
// A job is created in processing and ends in exactly one terminal state.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal returns true if the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationJob represents one asynchronous image generation request.
// The ID is a client-generated ULID; the artifact produced by a successful
// job shares the same ID.
type GenerationJob struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Status             JobStatus  `json:"status"`
	Tier               string     `json:"tier"`
	CostUSD            float64    `json:"cost_usd"`
	Prompt             string     `json:"prompt"`
	Title              string     `json:"title"`
	SourceArtifactID   *string    `json:"source_artifact_id,omitempty"`
	RequestJSON        string     `json:"-"` // serialized GenerationRequest for the worker
	ModelVersion       string     `json:"model_version,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	HasMask            bool       `json:"has_mask"`
	ReferenceCount     int        `json:"reference_count"`
	ConcurrentAtSubmit int        `json:"concurrent_at_submit"`
	DurationMs         int64      `json:"duration_ms"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// GenerationRequest is the part of a submission the worker needs to rebuild
// the provider call. Stored on the job row as JSON.
type GenerationRequest struct {
	Variables   []Variable  `json:"variables,omitempty"`
	MaskB64     string      `json:"mask_b64,omitempty"` // base64-encoded PNG annotation overlay
	References  []Reference `json:"references,omitempty"`
	AspectRatio string      `json:"aspect_ratio,omitempty"`
}

// Variable is a named set of prompt substitution values.
type Variable struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Reference is an external image the generation should take cues from.
type Reference struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Artifact is a stored generation result. Its ID equals the ID of the job
// that produced it. Versions group artifacts sharing a title: each new
// generation under the same title gets max(existing versions)+1.
type Artifact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ParentID     *string   `json:"parent_id,omitempty"` // source artifact this was edited from
	Title        string    `json:"title"`
	Version      int       `json:"version"`
	Prompt       string    `json:"prompt,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	StorageKey   string    `json:"-"`
	Width        int       `json:"width"`       // display dimensions
	Height       int       `json:"height"`      //
	RealWidth    int       `json:"real_width"`  // pixel dimensions of the stored image
	RealHeight   int       `json:"real_height"` //
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIKey represents a programmatic access key. Only the SHA-256 hash of the
// key is stored; the full key is shown once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"` // first chars for display, e.g. "ez_AbCd..."
	Tier       string     `json:"tier"`
	Unlimited  bool       `json:"unlimited"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
