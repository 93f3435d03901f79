// Package vimeo fetches recording metadata and streams source files from the
// recording host.
package vimeo

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

const (
	DefaultBaseURL   = "https://api.vimeo.com"
	DefaultQuality   = "hd"
	DefaultRendition = "1080p"

	defaultHTTPTimeout = 30 * time.Second
)

// Config holds API access settings.
type Config struct {
	BaseURL     string
	AccessToken string
}

// DownloadLink is one downloadable rendition of a video.
type DownloadLink struct {
	Quality   string `json:"quality"`
	Rendition string `json:"rendition"`
	Link      string `json:"link"`
	Size      int64  `json:"size"`
}

// Metadata is the subset of the video document the pipeline reads. Raw keeps
// the full response for caching.
type Metadata struct {
	URI      string          `json:"uri"`
	Name     string          `json:"name"`
	Download []DownloadLink  `json:"download"`
	Raw      json.RawMessage `json:"-"`
}

// PickLink returns the download link matching quality and rendition.
func (m *Metadata) PickLink(quality, rendition string) (string, bool) {
	if quality == "" {
		quality = DefaultQuality
	}
	if rendition == "" {
		rendition = DefaultRendition
	}
	for _, d := range m.Download {
		if d.Quality == quality && d.Rendition == rendition && d.Link != "" {
			return d.Link, true
		}
	}
	return "", false
}

// Client talks to the hosting API. Downloads use a client without the
// request timeout since source files are large.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	downloadClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides both the API and download HTTP clients.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
			c.downloadClient = client
		}
	}
}

// New constructs a client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			AccessToken: strings.TrimSpace(cfg.AccessToken),
		},
		httpClient:     &http.Client{Timeout: defaultHTTPTimeout},
		downloadClient: &http.Client{},
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VideoMetadata fetches the video document for id.
func (c *Client) VideoMetadata(ctx context.Context, id string) (*Metadata, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "vimeo", "metadata", "video id is required", nil)
	}
	if c.cfg.AccessToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "vimeo", "metadata", "vimeo.access_token is required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/videos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+c.cfg.AccessToken)
	req.Header.Set("Accept", "application/vnd.vimeo.*+json;version=3.4")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport("metadata", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("metadata", resp); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "vimeo", "metadata", "read response", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, services.Wrap(services.ErrValidation, "vimeo", "metadata", "decode video "+id, err)
	}
	meta.Raw = raw
	return &meta, nil
}

// Download streams link into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, link string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "vimeo", "download", "invalid link", err)
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, wrapTransport("download", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("download", resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, wrapTransport("download", err)
	}
	return n, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	marker := services.ErrExternalTool
	if resp.StatusCode == http.StatusNotFound {
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, "vimeo", op,
		fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
}

func wrapTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "vimeo", op, "request cancelled", err)
	}
	return services.Wrap(services.ErrExternalTool, "vimeo", op, "request failed", err)
}
