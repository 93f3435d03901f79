package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"confops/internal/services"
)

// DefaultBaseURL is the chat completions endpoint used when none is configured.
const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"

const (
	defaultHTTPTimeout = 15 * time.Second
	defaultAttempts    = 5
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Second
	snippetLimit       = 160
)

// Config carries the endpoint, credentials and model name.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts bounds the number of requests per completion.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.attempts = attempts }
}

// WithRetryBackoff sets the exponential backoff between attempts. A zero
// base retries immediately.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// NewClient constructs a client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
			Referer: strings.TrimSpace(cfg.Referer),
			Title:   strings.TrimSpace(cfg.Title),
		},
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultBaseURL
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	return c
}

// Complete sends one system and one user message and returns the trimmed
// reply. maxTokens bounds the reply length.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	system = strings.TrimSpace(system)
	user = strings.TrimSpace(user)
	switch {
	case system == "":
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "system prompt required", nil)
	case user == "":
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "user prompt required", nil)
	case maxTokens <= 0:
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "max tokens must be positive", nil)
	case c.cfg.APIKey == "":
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required", nil)
	}
	return c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

// HealthCheck sends a tiny prompt to confirm the key and model are accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Complete(ctx, "Answer with one word.", "Reply with OK.", 5, 0)
	return err
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
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
			Refusal string `json:"refusal"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-2xx reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// emptyReplyError is a 2xx reply without usable text.
type emptyReplyError struct {
	finishReason string
	refusal      string
	snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("empty reply (finish_reason=%q, refusal=%q, body=%s)", e.finishReason, e.refusal, e.snippet)
}

func (c *Client) policy() retrypolicy.RetryPolicy[string] {
	builder := retrypolicy.NewBuilder[string]().
		WithMaxRetries(c.attempts - 1).
		HandleIf(func(_ string, err error) bool { return retryable(err) }).
		ReturnLastFailure()
	switch {
	case c.baseDelay <= 0:
	case c.maxDelay > c.baseDelay:
		builder = builder.WithBackoff(c.baseDelay, c.maxDelay)
	default:
		builder = builder.WithDelay(c.baseDelay)
	}
	return builder.Build()
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode llm request: %w", err)
	}
	text, err := failsafe.With(c.policy()).WithContext(ctx).Get(func() (string, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{code: resp.StatusCode, body: snippet(string(raw))}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	empty := &emptyReplyError{snippet: snippet(string(raw))}
	for _, choice := range decoded.Choices {
		text := strings.TrimSpace(choice.Message.Content)
		if text == "" {
			text = strings.TrimSpace(choice.Text)
		}
		if text != "" {
			return text, nil
		}
		if empty.finishReason == "" {
			empty.finishReason = choice.FinishReason
		}
		if empty.refusal == "" {
			empty.refusal = choice.Message.Refusal
		}
	}
	return "", empty
}

// retryable reports whether another attempt may succeed: rate limits, server
// errors, empty replies and network timeouts.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return true
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusRequestTimeout ||
			status.code == http.StatusTooManyRequests ||
			status.code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classify(err error) error {
	var status *statusError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "llm", "complete", "request timed out", err)
	case errors.As(err, &status) && (status.code == http.StatusUnauthorized || status.code == http.StatusForbidden):
		return services.Wrap(services.ErrConfiguration, "llm", "complete", "api key rejected", err)
	case retryable(err):
		return services.Wrap(services.ErrTransient, "llm", "complete", "", err)
	default:
		return services.Wrap(services.ErrExternalTool, "llm", "complete", "", err)
	}
}

func snippet(body string) string {
	clean := strings.Join(strings.Fields(body), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return clean
}
