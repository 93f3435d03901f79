// Package pretalx reads submissions and speakers from the talk-management
// REST API, following its page links.
package pretalx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"confops/internal/services"
)

// DefaultBaseURL is the hosted API root.
const DefaultBaseURL = "https://pretalx.com/api"

const (
	defaultHTTPTimeout = 60 * time.Second
	maxPages           = 1000
)

// Config holds the API location and token.
type Config struct {
	BaseURL  string
	APIToken string
}

// Client is a read-only API client.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// New constructs a client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken: strings.TrimSpace(cfg.APIToken),
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConfirmedParams are the filters used to pull the program.
func ConfirmedParams() url.Values {
	return url.Values{"state": {"confirmed"}, "questions": {"all"}}
}

// Submissions lists every submission of event matching params.
func (c *Client) Submissions(ctx context.Context, event string, params url.Values) ([]Submission, error) {
	raws, err := c.list(ctx, event, "submissions", params)
	if err != nil {
		return nil, err
	}
	out := make([]Submission, 0, len(raws))
	for _, raw := range raws {
		var sub Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, services.Wrap(services.ErrValidation, "pretalx", "submissions", "decode submission", err)
		}
		sub.Raw = raw
		out = append(out, sub)
	}
	return out, nil
}

// Speakers lists every speaker of event matching params.
func (c *Client) Speakers(ctx context.Context, event string, params url.Values) ([]Speaker, error) {
	raws, err := c.list(ctx, event, "speakers", params)
	if err != nil {
		return nil, err
	}
	out := make([]Speaker, 0, len(raws))
	for _, raw := range raws {
		var sp Speaker
		if err := json.Unmarshal(raw, &sp); err != nil {
			return nil, services.Wrap(services.ErrValidation, "pretalx", "speakers", "decode speaker", err)
		}
		sp.Raw = raw
		out = append(out, sp)
	}
	return out, nil
}

type page struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

func (c *Client) list(ctx context.Context, event, resource string, params url.Values) ([]json.RawMessage, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pretalx", resource, "pretalx.event_slug is required", nil)
	}
	next := fmt.Sprintf("%s/events/%s/%s/", c.cfg.BaseURL, url.PathEscape(event), resource)
	if len(params) > 0 {
		next += "?" + params.Encode()
	}
	var out []json.RawMessage
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, services.Wrap(services.ErrExternalTool, "pretalx", resource, "pagination did not terminate", nil)
		}
		p, err := c.fetch(ctx, resource, next)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Results...)
		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, resource, target string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.APIToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "pretalx", resource, "request timed out", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "pretalx", resource, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		marker := services.ErrExternalTool
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "pretalx", resource,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pretalx", resource, "decode page", err)
	}
	return &p, nil
}
