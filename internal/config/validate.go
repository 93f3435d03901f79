package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked by the commands that need them, so a partial config still serves
// the offline steps.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateSheets(); err != nil {
		return err
	}
	if err := c.validateVimeo(); err != nil {
		return err
	}
	if err := c.validateSocial(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "dir", "sqlite":
		return nil
	default:
		return fmt.Errorf("queue.backend must be \"dir\" or \"sqlite\", got %q", c.Queue.Backend)
	}
}

func (c *Config) validateYouTube() error {
	if c.YouTube.MaxDescriptionLength <= 0 {
		return errors.New("youtube.max_description_length must be positive")
	}
	if c.YouTube.BatchSize <= 0 || c.YouTube.BatchSize > maxBatchSize {
		return fmt.Errorf("youtube.batch_size must be between 1 and %d", maxBatchSize)
	}
	for name := range c.YouTube.Channels {
		if strings.TrimSpace(name) == "" {
			return errors.New("youtube.channels must not contain an empty channel name")
		}
	}
	for snippet, channel := range c.Pretalx.TrackToChannel {
		if _, ok := c.YouTube.Channels[channel]; !ok && len(c.YouTube.Channels) > 0 {
			return fmt.Errorf("pretalx.track_to_channel[%q] names unknown channel %q", snippet, channel)
		}
	}
	return nil
}

func (c *Config) validateSheets() error {
	if c.Sheets.RetryAttempts < 1 {
		return errors.New("sheets.retry_attempts must be >= 1")
	}
	if c.Sheets.RetryDelaySeconds < 0 {
		return errors.New("sheets.retry_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateVimeo() error {
	if c.Vimeo.Workers < 1 {
		return errors.New("vimeo.workers must be >= 1")
	}
	return nil
}

func (c *Config) validateSocial() error {
	switch c.Social.Provider {
	case "linkedin", "discord":
		return nil
	default:
		return fmt.Errorf("social.provider must be \"linkedin\" or \"discord\", got %q", c.Social.Provider)
	}
}

func (c *Config) validateEmail() error {
	if c.Email.Port <= 0 || c.Email.Port > 65535 {
		return errors.New("email.port must be between 1 and 65535")
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return errors.New("email.from must be set when email.host is configured")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
