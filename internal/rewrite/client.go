// Package rewrite issues single-turn completion requests to an external
// chat-style endpoint and extracts the resulting text.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/draftroom/draftroom/internal/model"
)

// Request describes one rewrite call. The user message wraps Content under
// Instruction; Model, when non-empty, overrides the client default.
type Request struct {
	System      string
	Instruction string
	Content     string
	Model       string
}

// Client abstracts the rewrite endpoint so the draft service can be tested
// without a live completion API.
type Client interface {
	Rewrite(ctx context.Context, req Request) (string, error)
}

// HTTPClient implements Client against an OpenAI-compatible Chat Completions
// endpoint. A custom base URL covers compatible alternate providers.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures the HTTP rewrite client.
type Option func(*HTTPClient)

// WithModel sets the default model name.
func WithModel(model string) Option {
	return func(c *HTTPClient) { c.model = model }
}

// WithBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
func WithBaseURL(url string) Option {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the outgoing request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// NewHTTPClient creates a rewrite client.
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		model:   "gpt-4o-mini",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// apiError represents an endpoint error that may or may not be retryable.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// isRetryable returns true for transient errors (rate limit, server errors).
func (e *apiError) isRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Rewrite sends one non-streaming completion request and returns the first
// textual completion. An empty completion yields model.ErrNoContent.
// It retries once with backoff on transient failures.
func (c *HTTPClient) Rewrite(ctx context.Context, r Request) (string, error) {
	mdl := c.model
	if r.Model != "" {
		mdl = r.Model
	}
	reqBody := chatRequest{
		Model: mdl,
		Messages: []chatMessage{
			{Role: "system", Content: r.System},
			{Role: "user", Content: r.Instruction + "\n\n" + r.Content},
		},
		Temperature: 0.3,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	const maxAttempts = 2
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := c.doRequest(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Only retry on transient/retryable errors.
		var ae *apiError
		if errors.As(err, &ae) && !ae.isRetryable() {
			return "", fmt.Errorf("rewrite: %w", err)
		}
		if errors.Is(err, model.ErrNoContent) {
			return "", err
		}

		// Backoff before retry (skip on last attempt).
		if attempt < maxAttempts-1 {
			backoff := time.Duration(attempt+1) * 2 * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("rewrite: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("api error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", model.ErrNoContent
	}

	return chatResp.Choices[0].Message.Content, nil
}
