package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	WorkDir      string `toml:"work_dir"`
	VideoDir     string `toml:"video_dir"`
	LogDir       string `toml:"log_dir"`
	TemplateFile string `toml:"template_file"`
}

// Event describes the conference whose recordings are released.
type Event struct {
	Name            string `toml:"name"`
	Tag             string `toml:"tag"`
	SessionLinkBase string `toml:"session_link_base"`
	TeamSignature   string `toml:"team_signature"`
}

// Pretalx contains configuration for the talk-management API.
type Pretalx struct {
	BaseURL   string `toml:"base_url"`
	EventSlug string `toml:"event_slug"`
	APIToken  string `toml:"api_token"`
	// QuestionMap maps a speaker or record attribute to a custom question id.
	QuestionMap map[string]int `toml:"question_map"`
	// VideoToTrack pins a session code to a channel ahead of track matching.
	VideoToTrack   map[string]string `toml:"video_to_track"`
	TrackToChannel map[string]string `toml:"track_to_channel"`
}

// Channel identifies a video-platform channel and its upload playlist.
type Channel struct {
	PlaylistID string `toml:"playlist_id"`
}

// YouTube contains configuration for the video platform.
type YouTube struct {
	ClientSecretFile     string             `toml:"client_secret_file"`
	TokenFile            string             `toml:"token_file"`
	APIKey               string             `toml:"api_key"`
	MaxDescriptionLength int                `toml:"max_description_length"`
	CategoryID           string             `toml:"category_id"`
	BatchSize            int                `toml:"batch_size"`
	Channels             map[string]Channel `toml:"channels"`
}

// Sheets contains configuration for the recording spreadsheet.
type Sheets struct {
	APIKey            string            `toml:"api_key"`
	CredentialsFile   string            `toml:"credentials_file"`
	Spreadsheets      map[string]string `toml:"spreadsheets"`
	Worksheets        []string          `toml:"worksheets"`
	RetryDelaySeconds int               `toml:"retry_delay_seconds"`
	RetryAttempts     int               `toml:"retry_attempts"`
}

// Vimeo contains configuration for the recording host.
type Vimeo struct {
	AccessToken string `toml:"access_token"`
	BaseURL     string `toml:"base_url"`
	Quality     string `toml:"quality"`
	Rendition   string `toml:"rendition"`
	Workers     int    `toml:"workers"`
}

// LLM contains language model connection settings for promotional texts.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TeaserPrompt      string `toml:"teaser_prompt"`
	DescriptionPrompt string `toml:"description_prompt"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Social selects and configures the social posting backend.
type Social struct {
	Provider            string `toml:"provider"`
	LinkedInBaseURL     string `toml:"linkedin_base_url"`
	LinkedInCompanyID   string `toml:"linkedin_company_id"`
	LinkedInAccessToken string `toml:"linkedin_access_token"`
	DiscordBotToken     string `toml:"discord_bot_token"`
	DiscordChannelID    string `toml:"discord_channel_id"`
}

// Email contains SMTP settings for speaker notifications.
type Email struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Queue selects the workflow queue backend.
type Queue struct {
	Backend string `toml:"backend"`
}

// Metrics configures the node_exporter textfile output.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for confops.
//
// Configuration sections by subsystem:
//   - Paths: working, video and log directories, description template
//   - Event: conference name, tag, links and signature
//   - Pretalx: talk-management API and channel assignment rules
//   - YouTube: video platform credentials, limits and channels
//   - Sheets: recording spreadsheet locations and read retries
//   - Vimeo: recording host access and download pool size
//   - LLM: promotional text generation
//   - Social: LinkedIn or Discord posting
//   - Email: SMTP for speaker notifications
//   - Notifications: ntfy run summaries
//   - Queue: workflow queue backend
//   - Metrics: textfile collector output
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Event         Event         `toml:"event"`
	Pretalx       Pretalx       `toml:"pretalx"`
	YouTube       YouTube       `toml:"youtube"`
	Sheets        Sheets        `toml:"sheets"`
	Vimeo         Vimeo         `toml:"vimeo"`
	LLM           LLM           `toml:"llm"`
	Social        Social        `toml:"social"`
	Email         Email         `toml:"email"`
	Notifications Notifications `toml:"notifications"`
	Queue         Queue         `toml:"queue"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file next
// to the config or in the working directory is applied before environment
// fallbacks are read. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := loadDotEnv(dotEnvCandidates(resolved)...); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// resolveConfigPath picks the file to load. An explicit path is used as is,
// existing or not. Otherwise the user config wins over ./confops.toml, and
// the user location is reported when neither exists.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("confops.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the working, video and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.VideoDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkPath joins elem onto the working directory.
func (c *Config) WorkPath(elem ...string) string {
	return filepath.Join(append([]string{c.Paths.WorkDir}, elem...)...)
}

// RecordsDir holds one SessionRecord document per session code.
func (c *Config) RecordsDir() string { return c.WorkPath("records") }

// QueueRoot holds the per-queue directories of the directory backend.
func (c *Config) QueueRoot() string { return c.WorkPath("queues") }

// QueueDBPath is the database file of the sqlite backend.
func (c *Config) QueueDBPath() string { return c.WorkPath("queue.db") }

// ManifestPath is the spreadsheet manifest written by ingestion.
func (c *Config) ManifestPath() string { return c.WorkPath("manifest.json") }

// MappingDir holds the derived code-to-channel and code-to-video maps and
// the cached playlist listings.
func (c *Config) MappingDir() string { return c.WorkPath("mappings") }

// CacheDir holds raw vendor responses, one subdirectory per vendor.
func (c *Config) CacheDir(vendor string) string { return c.WorkPath("cache", vendor) }

// LockPath is the run lock shared by workflow commands.
func (c *Config) LockPath() string { return c.WorkPath("confops.lock") }

// DownloadsDir holds downloaded recordings, one directory per session code.
func (c *Config) DownloadsDir() string { return filepath.Join(c.Paths.VideoDir, "downloads") }

// UploadsDir holds per-channel copies ready for upload.
func (c *Config) UploadsDir() string { return filepath.Join(c.Paths.VideoDir, "uploads") }

// ProcessedMarkerPath lists session codes whose download completed.
func (c *Config) ProcessedMarkerPath() string {
	return filepath.Join(c.DownloadsDir(), "processed.txt")
}

// Playlists maps channel names to their upload playlist ids.
func (c *Config) Playlists() map[string]string {
	out := make(map[string]string, len(c.YouTube.Channels))
	for name, ch := range c.YouTube.Channels {
		if ch.PlaylistID != "" {
			out[name] = ch.PlaylistID
		}
	}
	return out
}

// ChannelNames returns the configured channel names in sorted order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.YouTube.Channels))
	for name := range c.YouTube.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the connection settings handed to the LLM client.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
