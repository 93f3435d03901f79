package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEvent()
	c.normalizePretalx()
	if err := c.normalizeYouTube(); err != nil {
		return err
	}
	if err := c.normalizeSheets(); err != nil {
		return err
	}
	c.normalizeVimeo()
	c.normalizeLLM()
	c.normalizeSocial()
	c.normalizeEmail()
	c.normalizeQueue()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		c.Paths.VideoDir = defaultVideoDir
	}
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TemplateFile, err = expandPath(strings.TrimSpace(c.Paths.TemplateFile)); err != nil {
		return fmt.Errorf("paths.template_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeEvent() {
	c.Event.Name = strings.TrimSpace(c.Event.Name)
	c.Event.Tag = strings.TrimSpace(c.Event.Tag)
	c.Event.SessionLinkBase = strings.TrimRight(strings.TrimSpace(c.Event.SessionLinkBase), "/")
	c.Event.TeamSignature = strings.TrimSpace(c.Event.TeamSignature)
	if c.Event.TeamSignature == "" && c.Event.Name != "" {
		c.Event.TeamSignature = c.Event.Name + " Team"
	}
}

func (c *Config) normalizePretalx() {
	c.Pretalx.BaseURL = strings.TrimRight(strings.TrimSpace(c.Pretalx.BaseURL), "/")
	if c.Pretalx.BaseURL == "" {
		c.Pretalx.BaseURL = defaultPretalxBaseURL
	}
	c.Pretalx.EventSlug = strings.TrimSpace(c.Pretalx.EventSlug)
	c.Pretalx.APIToken = envFallback(c.Pretalx.APIToken, "PRETALX_API_TOKEN")
}

func (c *Config) normalizeYouTube() error {
	var err error
	if c.YouTube.ClientSecretFile, err = expandPath(strings.TrimSpace(c.YouTube.ClientSecretFile)); err != nil {
		return fmt.Errorf("youtube.client_secret_file: %w", err)
	}
	if c.YouTube.TokenFile, err = expandPath(strings.TrimSpace(c.YouTube.TokenFile)); err != nil {
		return fmt.Errorf("youtube.token_file: %w", err)
	}
	c.YouTube.APIKey = envFallback(c.YouTube.APIKey, "YOUTUBE_API_KEY")
	if c.YouTube.MaxDescriptionLength == 0 {
		c.YouTube.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	c.YouTube.CategoryID = strings.TrimSpace(c.YouTube.CategoryID)
	if c.YouTube.CategoryID == "" {
		c.YouTube.CategoryID = defaultCategoryID
	}
	if c.YouTube.BatchSize == 0 {
		c.YouTube.BatchSize = defaultBatchSize
	}
	for name, channel := range c.YouTube.Channels {
		channel.PlaylistID = strings.TrimSpace(channel.PlaylistID)
		c.YouTube.Channels[name] = channel
	}
	return nil
}

func (c *Config) normalizeSheets() error {
	var err error
	c.Sheets.APIKey = envFallback(c.Sheets.APIKey, "GOOGLE_SHEETS_API_KEY")
	if c.Sheets.CredentialsFile, err = expandPath(strings.TrimSpace(c.Sheets.CredentialsFile)); err != nil {
		return fmt.Errorf("sheets.credentials_file: %w", err)
	}
	worksheets := make([]string, 0, len(c.Sheets.Worksheets))
	for _, ws := range c.Sheets.Worksheets {
		if trimmed := strings.TrimSpace(ws); trimmed != "" {
			worksheets = append(worksheets, trimmed)
		}
	}
	c.Sheets.Worksheets = worksheets
	if c.Sheets.RetryAttempts == 0 {
		c.Sheets.RetryAttempts = defaultSheetsRetryAttempts
	}
	return nil
}

func (c *Config) normalizeVimeo() {
	c.Vimeo.AccessToken = envFallback(c.Vimeo.AccessToken, "VIMEO_ACCESS_TOKEN")
	c.Vimeo.BaseURL = strings.TrimRight(strings.TrimSpace(c.Vimeo.BaseURL), "/")
	if c.Vimeo.BaseURL == "" {
		c.Vimeo.BaseURL = defaultVimeoBaseURL
	}
	c.Vimeo.Quality = strings.ToLower(strings.TrimSpace(c.Vimeo.Quality))
	if c.Vimeo.Quality == "" {
		c.Vimeo.Quality = defaultVimeoQuality
	}
	c.Vimeo.Rendition = strings.ToLower(strings.TrimSpace(c.Vimeo.Rendition))
	if c.Vimeo.Rendition == "" {
		c.Vimeo.Rendition = defaultVimeoRendition
	}
	if c.Vimeo.Workers == 0 {
		c.Vimeo.Workers = defaultVimeoWorkers
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "OPENAI_API_KEY", "LLM_API_KEY")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if strings.TrimSpace(c.LLM.TeaserPrompt) == "" {
		c.LLM.TeaserPrompt = DefaultTeaserPrompt
	}
	if strings.TrimSpace(c.LLM.DescriptionPrompt) == "" {
		c.LLM.DescriptionPrompt = DefaultDescriptionPrompt
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeSocial() {
	c.Social.Provider = strings.ToLower(strings.TrimSpace(c.Social.Provider))
	if c.Social.Provider == "" {
		c.Social.Provider = defaultSocialProvider
	}
	c.Social.LinkedInBaseURL = strings.TrimRight(strings.TrimSpace(c.Social.LinkedInBaseURL), "/")
	if c.Social.LinkedInBaseURL == "" {
		c.Social.LinkedInBaseURL = defaultLinkedInBaseURL
	}
	c.Social.LinkedInCompanyID = strings.TrimSpace(c.Social.LinkedInCompanyID)
	c.Social.LinkedInAccessToken = envFallback(c.Social.LinkedInAccessToken, "LINKEDIN_ACCESS_TOKEN")
	c.Social.DiscordBotToken = envFallback(c.Social.DiscordBotToken, "DISCORD_BOT_TOKEN")
	c.Social.DiscordChannelID = strings.TrimSpace(c.Social.DiscordChannelID)
}

func (c *Config) normalizeEmail() {
	c.Email.Host = strings.TrimSpace(c.Email.Host)
	if c.Email.Port == 0 {
		c.Email.Port = defaultSMTPPort
	}
	c.Email.User = strings.TrimSpace(c.Email.User)
	c.Email.Password = envFallback(c.Email.Password, "SMTP_PASSWORD")
	c.Email.From = strings.TrimSpace(c.Email.From)
	c.Email.FromName = strings.TrimSpace(c.Email.FromName)
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// envFallback returns the trimmed value, or the first non-empty variable
// among keys when the value is empty.
func envFallback(value string, keys ...string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	for _, key := range keys {
		if env, ok := os.LookupEnv(key); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return ""
}
