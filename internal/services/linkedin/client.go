// Package linkedin publishes organization posts through the UGC posts API.
package linkedin

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

	"confops/internal/services"
	"confops/internal/services/social"
)

// DefaultBaseURL is the v2 REST root.
const DefaultBaseURL = "https://api.linkedin.com/v2"

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

// Config holds the organization credentials.
type Config struct {
	BaseURL     string
	CompanyID   string
	AccessToken string
}

// Client posts on behalf of an organization.
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
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			CompanyID:   strings.TrimSpace(cfg.CompanyID),
			AccessToken: strings.TrimSpace(cfg.AccessToken),
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

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string   `json:"status"`
	OriginalURL string   `json:"originalUrl"`
	Title       *ugcText `json:"title,omitempty"`
	Description *ugcText `json:"description,omitempty"`
}

type shareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

func buildPost(companyID string, post social.Post) ugcPost {
	content := shareContent{
		ShareCommentary:    ugcText{Text: post.Text},
		ShareMediaCategory: "NONE",
	}
	if post.Link != "" {
		media := ugcMedia{Status: "READY", OriginalURL: post.Link}
		if post.Title != "" {
			media.Title = &ugcText{Text: post.Title}
		}
		if post.Description != "" {
			media.Description = &ugcText{Text: post.Description}
		}
		content.ShareMediaCategory = "ARTICLE"
		content.Media = []ugcMedia{media}
	}
	return ugcPost{
		Author:          "urn:li:organization:" + companyID,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]shareContent{"com.linkedin.ugc.ShareContent": content},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
}

// CreatePost publishes post publicly. The response carries the body the API
// returned, or the created post id when the body is empty.
func (c *Client) CreatePost(ctx context.Context, post social.Post) (json.RawMessage, error) {
	if c.cfg.CompanyID == "" || c.cfg.AccessToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "linkedin", "create post",
			"social.linkedin_company_id and social.linkedin_access_token are required", nil)
	}
	if strings.TrimSpace(post.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, "linkedin", "create post", "post text is empty", nil)
	}
	body, err := json.Marshal(buildPost(c.cfg.CompanyID, post))
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "linkedin", "create post", "request timed out", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "linkedin", "create post", "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "linkedin", "create post", "read response", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(raw))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, services.Wrap(services.ErrExternalTool, "linkedin", "create post",
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet), nil)
	}
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		id := resp.Header.Get("X-Restli-Id")
		raw, err = json.Marshal(map[string]string{"id": id})
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
	}
	return raw, nil
}
