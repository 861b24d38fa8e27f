// Package endpoint talks to Azure OpenAI regional deployments and
// spreads calls across them.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// Caller executes one model call. Satisfied by Client and by test fakes.
type Caller interface {
	Name() string
	Complete(ctx context.Context, messages []domain.Message) (*Completion, error)
}

// Completion is a successful model response
type Completion struct {
	Text        string
	TotalTokens int
}

// CallConfig holds per-call API settings shared by all endpoints
type CallConfig struct {
	Model               string
	APIVersion          string
	MaxCompletionTokens int
	Timeout             time.Duration
}

// Client calls one Azure OpenAI endpoint's chat completions deployment
type Client struct {
	endpoint   domain.Endpoint
	cfg        CallConfig
	httpClient *http.Client
}

// NewClient creates a client for one endpoint
func NewClient(ep domain.Endpoint, cfg CallConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		endpoint:   ep,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the endpoint's region label
func (c *Client) Name() string { return c.endpoint.Name }

type chatRequest struct {
	Messages            []domain.Message `json:"messages"`
	MaxCompletionTokens int              `json:"max_completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message domain.Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the conversation and returns the assistant response.
// Failures are classified: 429 and 5xx (and transport errors) are
// transient, other 4xx and malformed bodies are permanent.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (*Completion, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint.BaseURL, c.cfg.Model, c.cfg.APIVersion)

	body, err := json.Marshal(chatRequest{
		Messages:            messages,
		MaxCompletionTokens: c.cfg.MaxCompletionTokens,
	})
	if err != nil {
		return nil, &domain.PermanentError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.endpoint.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransientError{Err: fmt.Errorf("%s: %w", c.endpoint.Name, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		callErr := fmt.Errorf("%s: HTTP %d: %s", c.endpoint.Name, resp.StatusCode, bytes.TrimSpace(detail))
		if retryableStatus(resp.StatusCode) {
			return nil, &domain.TransientError{Err: callErr}
		}
		return nil, &domain.PermanentError{Err: callErr}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &domain.PermanentError{Err: fmt.Errorf("%s: decode response: %w", c.endpoint.Name, err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &domain.PermanentError{Err: fmt.Errorf("%s: response has no choices", c.endpoint.Name)}
	}

	return &Completion{
		Text:        parsed.Choices[0].Message.Content,
		TotalTokens: parsed.Usage.TotalTokens,
	}, nil
}

// retryableStatus reports whether an HTTP status is worth retrying
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

var errEmptyPool = errors.New("endpoint pool is empty")
