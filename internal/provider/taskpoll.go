package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/easelhq/easel-api/internal/parts"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 60
)

// TaskPollClient calls relay providers with a create-then-poll API: task
// creation returns an ID, and the task is polled until it reaches a
// terminal state carrying a result image URL.
type TaskPollClient struct {
	name         string
	baseURL      string
	apiKey       string
	doer         httpDoer
	pollInterval time.Duration
	maxPolls     int
	logger       *slog.Logger
}

// NewTaskPollClient creates a task-poll provider client.
func NewTaskPollClient(name, baseURL, apiKey string, logger *slog.Logger) *TaskPollClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskPollClient{
		name:         name,
		baseURL:      baseURL,
		apiKey:       apiKey,
		doer:         newHTTPDoer(logger),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		logger:       logger.With("provider", name),
	}
}

func (c *TaskPollClient) Name() string { return c.name }

type taskCreateRequest struct {
	Model string        `json:"model"`
	Input taskInputSpec `json:"input"`
}

type taskInputSpec struct {
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	OutputSize  string   `json:"output_size,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type taskCreateResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
	TaskID string `json:"taskId"` // some relays skip the envelope
}

type taskStatusResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type taskState struct {
	State   string `json:"state"`
	FailMsg string `json:"failMsg"`
}

// Generate creates a task from the part list and polls it to completion.
// Text parts are joined into the prompt; image parts are sent as base64
// data URLs so the relay can fetch them without callbacks.
func (c *TaskPollClient) Generate(ctx context.Context, ps []parts.Part, opts Options) ([]byte, error) {
	var prompts []string
	var imageURLs []string
	for _, p := range ps {
		switch p.Kind {
		case parts.PartText:
			prompts = append(prompts, p.Text)
		case parts.PartImage:
			imageURLs = append(imageURLs, fmt.Sprintf("data:%s;base64,%s", p.MIME, base64.StdEncoding.EncodeToString(p.Data)))
		}
	}

	taskID, err := c.createTask(ctx, taskCreateRequest{
		Model: opts.Model,
		Input: taskInputSpec{
			Prompt:      strings.Join(prompts, "\n\n"),
			ImageURLs:   imageURLs,
			OutputSize:  opts.OutputSize,
			AspectRatio: opts.AspectRatio,
		},
	}, opts.Model)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("task created", "task_id", taskID, "model", opts.Model)
	return c.pollTask(ctx, taskID, opts.Model)
}

func (c *TaskPollClient) createTask(ctx context.Context, req taskCreateRequest, model string) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task request: %w", err)
	}

	url := c.baseURL + "/api/v1/task/create"
	body, status, err := c.doer.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		return r, nil
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", classifyStatus(c.name, model, status, string(body))
	}

	var resp taskCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode task response: %w", err)
	}

	taskID := resp.Data.TaskID
	if taskID == "" {
		taskID = resp.TaskID
	}
	if taskID == "" {
		return "", &ProviderError{
			Err:         fmt.Errorf("task creation returned no task id: %s", truncate(string(body), 200)),
			StatusCode:  status,
			Provider:    c.name,
			Model:       model,
			Category:    CategoryProviderError,
			UserMessage: "The image service had a problem. Please try again.",
		}
	}
	return taskID, nil
}

func (c *TaskPollClient) pollTask(ctx context.Context, taskID, model string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/task/%s", c.baseURL, taskID)

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		body, status, err := c.doer.doWithRetry(ctx, func() (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			r.Header.Set("Authorization", "Bearer "+c.apiKey)
			return r, nil
		})
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, classifyStatus(c.name, model, status, string(body))
		}

		var resp taskStatusResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode task status: %w", err)
		}

		var st taskState
		if len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, &st); err != nil {
				return nil, fmt.Errorf("failed to decode task state: %w", err)
			}
		}

		switch st.State {
		case "pending", "processing", "running", "queueing", "":
			continue

		case "success":
			var payload map[string]any
			if err := json.Unmarshal(resp.Data, &payload); err != nil {
				return nil, fmt.Errorf("failed to decode task result: %w", err)
			}
			imageURL, err := ExtractImageURL(payload)
			if err != nil {
				return nil, &ProviderError{
					Err:         err,
					Provider:    c.name,
					Model:       model,
					Category:    CategoryProviderError,
					UserMessage: "The image service returned an unexpected result.",
				}
			}
			return c.download(ctx, imageURL, model)

		case "fail", "failed", "error":
			msg := st.FailMsg
			if msg == "" {
				msg = "no failure detail provided"
			}
			return nil, &ProviderError{
				Err:         fmt.Errorf("%w: %s", ErrTaskFailed, msg),
				Provider:    c.name,
				Model:       model,
				Category:    CategoryTaskFailed,
				UserMessage: fmt.Sprintf("Generation failed: %s", msg),
			}

		default:
			c.logger.Warn("unknown task state", "task_id", taskID, "state", st.State)
		}
	}

	return nil, &ProviderError{
		Err:         fmt.Errorf("task %s did not complete after %d polls", taskID, c.maxPolls),
		Provider:    c.name,
		Model:       model,
		Category:    CategoryTimeout,
		UserMessage: "Generation timed out. Your credits have been refunded.",
	}
}

func (c *TaskPollClient) download(ctx context.Context, imageURL, model string) ([]byte, error) {
	body, status, err := c.doer.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.name, model, status, string(body))
	}
	return body, nil
}
