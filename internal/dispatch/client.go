package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowdesk/internal/config"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the minimal contract with the completion service. The HTTP
// client implements it; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Client talks to an OpenAI-compatible chat-completions endpoint. The
// provider shape is incidental; what matters is the contract: role-tagged
// messages in, text completion out, 429 with an optional Retry-After.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	temperature  float64
	maxTokens    int
	retryDefault time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a client from dispatch configuration.
func NewClient(cfg config.DispatchConfig, logger *zap.Logger) *Client {
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		retryDefault: cfg.RetryDefault(),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout()},
		logger:       logger.Named("dispatch-client"),
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends the message list and returns the completion text.
//
// Failure contract:
//   - empty API key: ErrNoCredential, no network call.
//   - HTTP 429: wait the service-provided Retry-After (or the configured
//     default), retry exactly once; a second 429 yields *RateLimitError.
//   - any other non-2xx: *HTTPError with status and body.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoCredential
	}

	reqBody := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	retried := false
	for {
		text, retryAfter, err := c.attempt(ctx, jsonData)
		if err == nil {
			return text, nil
		}

		rle, isRateLimit := err.(*RateLimitError)
		if !isRateLimit {
			return "", err
		}
		if retried {
			c.logger.Warn("rate limited twice, giving up", zap.Duration("retry_after", rle.RetryAfter))
			return "", rle
		}

		retried = true
		c.logger.Info("rate limited, retrying once", zap.Duration("retry_after", retryAfter))
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// attempt performs one HTTP round trip. A 429 comes back as *RateLimitError
// with the delay the caller should honor.
func (c *Client) attempt(ctx context.Context, body []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		delay := c.retryDelay(resp.Header.Get("Retry-After"))
		return "", delay, &RateLimitError{RetryAfter: delay}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &HTTPError{Status: resp.StatusCode, Body: snippet(string(respBody))}
	}

	var cr completionResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if cr.Error != nil {
		return "", 0, &HTTPError{Status: resp.StatusCode, Body: cr.Error.Message}
	}
	if len(cr.Choices) == 0 {
		return "", 0, &HTTPError{Status: resp.StatusCode, Body: "no completion returned"}
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), 0, nil
}

// retryDelay parses a Retry-After header given in seconds, falling back to
// the configured default.
func (c *Client) retryDelay(header string) time.Duration {
	if header == "" {
		return c.retryDefault
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return c.retryDefault
	}
	return time.Duration(secs) * time.Second
}
