package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/easelhq/easel-api/internal/parts"
)

// InlineClient calls Gemini-style generateContent endpoints that return
// image bytes inline in the response.
type InlineClient struct {
	name    string
	baseURL string
	apiKey  string
	doer    httpDoer
	logger  *slog.Logger
}

// NewInlineClient creates an inline provider client.
func NewInlineClient(name, baseURL, apiKey string, logger *slog.Logger) *InlineClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &InlineClient{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		doer:    newHTTPDoer(logger),
		logger:  logger.With("provider", name),
	}
}

func (c *InlineClient) Name() string { return c.name }

// Request/response shapes for the generateContent API.
type inlinePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineBlobPart `json:"inline_data,omitempty"`
}

type inlineBlobPart struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type inlineRequest struct {
	Contents []struct {
		Role  string       `json:"role"`
		Parts []inlinePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        *struct {
			AspectRatio string `json:"aspectRatio"`
		} `json:"imageConfig,omitempty"`
	} `json:"generationConfig"`
}

type inlineResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
				FileData *struct {
					FileURI string `json:"fileUri"`
				} `json:"fileData"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends the part list and decodes the inline image from the
// response. A blocked prompt surfaces as a non-retryable ProviderError.
func (c *InlineClient) Generate(ctx context.Context, ps []parts.Part, opts Options) ([]byte, error) {
	var req inlineRequest
	req.Contents = make([]struct {
		Role  string       `json:"role"`
		Parts []inlinePart `json:"parts"`
	}, 1)
	req.Contents[0].Role = "user"

	for _, p := range ps {
		switch p.Kind {
		case parts.PartText:
			req.Contents[0].Parts = append(req.Contents[0].Parts, inlinePart{Text: p.Text})
		case parts.PartImage:
			req.Contents[0].Parts = append(req.Contents[0].Parts, inlinePart{
				InlineData: &inlineBlobPart{
					MIMEType: p.MIME,
					Data:     base64.StdEncoding.EncodeToString(p.Data),
				},
			})
		}
	}

	req.GenerationConfig.ResponseModalities = []string{"IMAGE"}
	if opts.AspectRatio != "" {
		req.GenerationConfig.ImageConfig = &struct {
			AspectRatio string `json:"aspectRatio"`
		}{AspectRatio: opts.AspectRatio}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, opts.Model)
	body, status, err := c.doer.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("x-goog-api-key", c.apiKey)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.name, opts.Model, status, string(body))
	}

	var resp inlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &ProviderError{
			Err:         ErrContentBlocked,
			Provider:    c.name,
			Model:       opts.Model,
			Category:    CategoryContentBlocked,
			UserMessage: fmt.Sprintf("The request was blocked by the provider (%s). Adjust the prompt and try again.", resp.PromptFeedback.BlockReason),
		}
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode inline image: %w", err)
				}
				return data, nil
			}
			if part.FileData != nil && part.FileData.FileURI != "" {
				return c.download(ctx, part.FileData.FileURI, opts.Model)
			}
		}
	}

	// No image and no block reason; report what finish reason we saw.
	reason := "unknown"
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		reason = resp.Candidates[0].FinishReason
	}
	return nil, &ProviderError{
		Err:         ErrEmptyResult,
		Provider:    c.name,
		Model:       opts.Model,
		Category:    CategoryProviderError,
		UserMessage: fmt.Sprintf("The provider returned no image (finish reason: %s).", reason),
	}
}

func (c *InlineClient) download(ctx context.Context, uri, model string) ([]byte, error) {
	body, status, err := c.doer.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("x-goog-api-key", c.apiKey)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classifyStatus(c.name, model, status, string(body))
	}
	return body, nil
}
