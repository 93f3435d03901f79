package preflight

import (
	"fmt"
	"strings"

	"confops/internal/config"
)

// CheckCredentials reports whether each vendor has the settings it needs.
func CheckCredentials(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckPretalx(cfg),
		CheckYouTube(cfg),
		CheckSheets(cfg),
		CheckVimeo(cfg),
		CheckSocial(cfg),
		CheckEmail(cfg),
		CheckNotifications(cfg),
	}
}

// CheckPretalx requires an event slug. The token is optional for public events.
func CheckPretalx(cfg *config.Config) Result {
	const name = "Pretalx"
	if strings.TrimSpace(cfg.Pretalx.EventSlug) == "" {
		return Result{Name: name, Detail: "Missing event slug"}
	}
	if strings.TrimSpace(cfg.Pretalx.APIToken) == "" {
		return Result{Name: name, Passed: true, Detail: "Public access (no token)"}
	}
	return Result{Name: name, Passed: true, Detail: "Token configured"}
}

// CheckYouTube requires OAuth client files or, for read-only use, an API key.
func CheckYouTube(cfg *config.Config) Result {
	const name = "YouTube"
	yt := cfg.YouTube
	if len(yt.Channels) == 0 {
		return Result{Name: name, Detail: "No channels configured"}
	}
	if yt.ClientSecretFile != "" {
		if r := CheckFile(name, yt.ClientSecretFile); !r.Passed {
			return Result{Name: name, Detail: "client secret " + r.Detail}
		}
		if yt.TokenFile == "" {
			return Result{Name: name, Detail: "Missing token file"}
		}
		if r := CheckFile(name, yt.TokenFile); !r.Passed {
			return Result{Name: name, Detail: "token " + r.Detail}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("OAuth (%d channels)", len(yt.Channels))}
	}
	if strings.TrimSpace(yt.APIKey) != "" {
		return Result{Name: name, Passed: true, Detail: "API key only (read-only)"}
	}
	return Result{Name: name, Detail: "Missing client secret file or API key"}
}

// CheckSheets requires credentials and at least one spreadsheet.
func CheckSheets(cfg *config.Config) Result {
	const name = "Sheets"
	s := cfg.Sheets
	if len(s.Spreadsheets) == 0 {
		return Result{Name: name, Detail: "No spreadsheets configured"}
	}
	switch {
	case s.CredentialsFile != "":
		if r := CheckFile(name, s.CredentialsFile); !r.Passed {
			return Result{Name: name, Detail: "credentials " + r.Detail}
		}
		return Result{Name: name, Passed: true, Detail: "Service account"}
	case strings.TrimSpace(s.APIKey) != "":
		return Result{Name: name, Passed: true, Detail: "API key"}
	default:
		return Result{Name: name, Detail: "Missing credentials file or API key"}
	}
}

// CheckVimeo requires an access token.
func CheckVimeo(cfg *config.Config) Result {
	const name = "Vimeo"
	if strings.TrimSpace(cfg.Vimeo.AccessToken) == "" {
		return Result{Name: name, Detail: "Missing access token"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Token configured (%d workers)", cfg.Vimeo.Workers)}
}

// CheckSocial validates the settings of the selected provider.
func CheckSocial(cfg *config.Config) Result {
	s := cfg.Social
	switch s.Provider {
	case "discord":
		const name = "Social (discord)"
		if strings.TrimSpace(s.DiscordBotToken) == "" {
			return Result{Name: name, Detail: "Missing bot token"}
		}
		if strings.TrimSpace(s.DiscordChannelID) == "" {
			return Result{Name: name, Detail: "Missing channel id"}
		}
		return Result{Name: name, Passed: true, Detail: "Configured"}
	default:
		const name = "Social (linkedin)"
		if strings.TrimSpace(s.LinkedInAccessToken) == "" {
			return Result{Name: name, Detail: "Missing access token"}
		}
		if strings.TrimSpace(s.LinkedInCompanyID) == "" {
			return Result{Name: name, Detail: "Missing company id"}
		}
		return Result{Name: name, Passed: true, Detail: "Configured"}
	}
}

// CheckEmail requires an SMTP host and sender.
func CheckEmail(cfg *config.Config) Result {
	const name = "Email"
	e := cfg.Email
	if strings.TrimSpace(e.Host) == "" {
		return Result{Name: name, Detail: "Missing SMTP host"}
	}
	if strings.TrimSpace(e.From) == "" {
		return Result{Name: name, Detail: "Missing sender address"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s:%d", e.Host, e.Port)}
}

// CheckNotifications passes either way; a missing topic only disables ntfy.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Notifications.NtfyTopic}
}
