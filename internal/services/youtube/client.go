package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"confops/internal/logging"
	"confops/internal/services"
)

// MaxBatchSize is the platform limit on ids per videos.list request.
const MaxBatchSize = 50

const (
	privacyPrivate   = "private"
	playlistPageSize = 50
)

// Config captures credentials and request limits.
type Config struct {
	ClientSecretFile string
	TokenFile        string
	APIKey           string
	BatchSize        int
}

// PlaylistItem is one upload in a channel playlist.
type PlaylistItem struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	PlaylistID  string `json:"playlistId,omitempty"`
}

// VideoUpdate lists the fields written by UpdateVideo. A non-nil PublishAt
// forces the private privacy status the platform requires for scheduling.
type VideoUpdate struct {
	ID                   string
	Title                string
	Description          string
	CategoryID           string
	DefaultLanguage      string
	DefaultAudioLanguage string
	Tags                 []string
	PrivacyStatus        string
	License              string
	Embeddable           bool
	PublishAt            *time.Time
	RecordingDate        string
}

// VideoStatus is the visibility reported for one video.
type VideoStatus struct {
	ID            string `json:"id"`
	PrivacyStatus string `json:"privacyStatus"`
	PublishAt     string `json:"publishAt,omitempty"`
}

// Client talks to the video platform.
type Client struct {
	svc       *yt.Service
	batchSize int
	logger    *slog.Logger
	clientOps []option.ClientOption
}

// Option customizes the client.
type Option func(*Client)

// WithClientOptions passes transport options to the generated API client.
// When set, the configured credentials are not consulted.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.clientOps = append(c.clientOps, opts...)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	client := &Client{
		batchSize: cfg.BatchSize,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.batchSize <= 0 || client.batchSize > MaxBatchSize {
		client.batchSize = MaxBatchSize
	}
	client.logger = logging.NewComponentLogger(client.logger, "youtube")

	clientOps := client.clientOps
	if len(clientOps) == 0 {
		auth, err := credentialOptions(ctx, cfg)
		if err != nil {
			return nil, err
		}
		clientOps = auth
	}
	svc, err := yt.NewService(ctx, clientOps...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "init", "create api client", err)
	}
	client.svc = svc
	return client, nil
}

func credentialOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	secretFile := strings.TrimSpace(cfg.ClientSecretFile)
	tokenFile := strings.TrimSpace(cfg.TokenFile)
	if secretFile != "" && tokenFile != "" {
		ts, err := tokenSource(ctx, secretFile, tokenFile)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return []option.ClientOption{option.WithAPIKey(key)}, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "youtube", "init",
		"youtube.client_secret_file and youtube.token_file (or youtube.api_key) are required", nil)
}

func tokenSource(ctx context.Context, secretFile, tokenFile string) (oauth2.TokenSource, error) {
	secret, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "init", "read client secret", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, yt.YoutubeScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "init", "parse client secret", err)
	}
	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "init", "read token file", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "init", "parse token file", err)
	}
	return oauthCfg.TokenSource(ctx, &token), nil
}

// PlaylistItems returns every item in the playlist, following pagination.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, services.Wrap(services.ErrValidation, "youtube", "playlistItems.list", "playlist id required", nil)
	}
	var items []PlaylistItem
	call := c.svc.PlaylistItems.List([]string{"snippet"}).PlaylistId(playlistID).MaxResults(playlistPageSize)
	err := call.Pages(ctx, func(resp *yt.PlaylistItemListResponse) error {
		for _, item := range resp.Items {
			if item == nil || item.Snippet == nil {
				continue
			}
			entry := PlaylistItem{
				Title:       item.Snippet.Title,
				Description: item.Snippet.Description,
				PublishedAt: item.Snippet.PublishedAt,
				PlaylistID:  item.Snippet.PlaylistId,
			}
			if item.Snippet.ResourceId != nil {
				entry.VideoID = item.Snippet.ResourceId.VideoId
			}
			items = append(items, entry)
		}
		return nil
	})
	if err != nil {
		return nil, wrapAPIError("playlistItems.list", err)
	}
	c.logger.Debug("playlist listed",
		logging.String("playlist_id", playlistID),
		logging.Int("items", len(items)),
	)
	return items, nil
}

// UpdateVideo writes snippet, status and recording details and returns the
// platform's response document.
func (c *Client) UpdateVideo(ctx context.Context, update VideoUpdate) (json.RawMessage, error) {
	if strings.TrimSpace(update.ID) == "" {
		return nil, services.Wrap(services.ErrValidation, "youtube", "videos.update", "video id required", nil)
	}
	video := buildVideo(update)
	parts := []string{"snippet", "status"}
	if video.RecordingDetails != nil {
		parts = append(parts, "recordingDetails")
	}
	resp, err := c.svc.Videos.Update(parts, video).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError("videos.update", err)
	}
	raw, err := resp.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode update response: %w", err)
	}
	return raw, nil
}

func buildVideo(update VideoUpdate) *yt.Video {
	category := update.CategoryID
	if category == "" {
		category = "28"
	}
	privacy := update.PrivacyStatus
	status := &yt.VideoStatus{
		License:         update.License,
		Embeddable:      update.Embeddable,
		ForceSendFields: []string{"Embeddable"},
	}
	if update.PublishAt != nil {
		privacy = privacyPrivate
		status.PublishAt = update.PublishAt.UTC().Format(time.RFC3339)
	}
	status.PrivacyStatus = privacy

	video := &yt.Video{
		Id: update.ID,
		Snippet: &yt.VideoSnippet{
			Title:                update.Title,
			Description:          update.Description,
			CategoryId:           category,
			DefaultLanguage:      update.DefaultLanguage,
			DefaultAudioLanguage: update.DefaultAudioLanguage,
			Tags:                 update.Tags,
		},
		Status: status,
	}
	if update.RecordingDate != "" {
		video.RecordingDetails = &yt.VideoRecordingDetails{RecordingDate: update.RecordingDate}
	}
	return video
}

// VideoStatuses fetches visibility for ids in batches of at most the
// configured size. Any failed batch fails the whole call.
func (c *Client) VideoStatuses(ctx context.Context, ids []string) ([]VideoStatus, error) {
	out := make([]VideoStatus, 0, len(ids))
	for start := 0; start < len(ids); start += c.batchSize {
		end := min(start+c.batchSize, len(ids))
		chunk := ids[start:end]
		resp, err := c.svc.Videos.List([]string{"status"}).Id(chunk...).Context(ctx).Do()
		if err != nil {
			return nil, wrapAPIError("videos.list", err)
		}
		for _, item := range resp.Items {
			if item == nil {
				continue
			}
			status := VideoStatus{ID: item.Id}
			if item.Status != nil {
				status.PrivacyStatus = item.Status.PrivacyStatus
				status.PublishAt = item.Status.PublishAt
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func wrapAPIError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "youtube", operation, "request cancelled", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("http %d: %s", apiErr.Code, strings.TrimSpace(apiErr.Message))
		if apiErr.Code == 404 {
			return services.Wrap(services.ErrNotFound, "youtube", operation, msg, err)
		}
		return services.Wrap(services.ErrExternalTool, "youtube", operation, msg, err)
	}
	return services.Wrap(services.ErrExternalTool, "youtube", operation, "request failed", err)
}
