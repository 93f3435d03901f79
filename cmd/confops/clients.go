package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"confops/internal/config"
	"confops/internal/dispatch"
	"confops/internal/mapping"
	"confops/internal/services"
	"confops/internal/services/discord"
	"confops/internal/services/email"
	"confops/internal/services/linkedin"
	"confops/internal/services/llm"
	"confops/internal/services/pretalx"
	"confops/internal/services/sheets"
	"confops/internal/services/social"
	"confops/internal/services/vimeo"
	"confops/internal/services/youtube"
)

func newYouTubeClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*youtube.Client, error) {
	return youtube.New(ctx, youtube.Config{
		ClientSecretFile: cfg.YouTube.ClientSecretFile,
		TokenFile:        cfg.YouTube.TokenFile,
		APIKey:           cfg.YouTube.APIKey,
		BatchSize:        cfg.YouTube.BatchSize,
	}, youtube.WithLogger(logger))
}

func newPretalxClient(cfg *config.Config) *pretalx.Client {
	return pretalx.New(pretalx.Config{
		BaseURL:  cfg.Pretalx.BaseURL,
		APIToken: cfg.Pretalx.APIToken,
	})
}

func newSheetsClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sheets.Client, error) {
	return sheets.New(ctx, sheets.Config{
		APIKey:          cfg.Sheets.APIKey,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		RetryDelay:      time.Duration(cfg.Sheets.RetryDelaySeconds) * time.Second,
		RetryAttempts:   cfg.Sheets.RetryAttempts,
	}, sheets.WithLogger(logger))
}

func newLLMClient(cfg *config.Config) (*llm.Client, error) {
	settings := cfg.GetLLM()
	if settings.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "describe", "init", "llm.api_key is required", nil)
	}
	return llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	}), nil
}

func newVimeoClient(cfg *config.Config) *vimeo.Client {
	return vimeo.New(vimeo.Config{
		BaseURL:     cfg.Vimeo.BaseURL,
		AccessToken: cfg.Vimeo.AccessToken,
	})
}

// newPoster returns the backend selected by social.provider.
func newPoster(cfg *config.Config) (social.Poster, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Social.Provider)) {
	case "discord":
		return discord.New(cfg.Social.DiscordBotToken, cfg.Social.DiscordChannelID)
	default:
		if strings.TrimSpace(cfg.Social.LinkedInAccessToken) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "post", "init", "social.linkedin_access_token is required", nil)
		}
		return linkedin.New(linkedin.Config{
			BaseURL:     cfg.Social.LinkedInBaseURL,
			CompanyID:   cfg.Social.LinkedInCompanyID,
			AccessToken: cfg.Social.LinkedInAccessToken,
		}), nil
	}
}

func newMailer(cfg *config.Config) (*email.Sender, error) {
	if strings.TrimSpace(cfg.Email.Host) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "email", "init", "email.host is required", nil)
	}
	return email.NewSender(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}), nil
}

// preparingDispatcher queues posts and mails without any send backend.
func preparingDispatcher(env *runEnv) *dispatch.Dispatcher {
	return dispatch.New(env.queues, env.records, nil, nil, env.cfg.Event.TeamSignature, env.logger)
}

func loadTables(cfg *config.Config) (mapping.Tables, error) {
	tables, err := mapping.LoadTables(cfg.MappingDir())
	if err != nil {
		return mapping.Tables{}, services.Wrap(services.ErrConfiguration, "mapping", "load", "mapping tables missing; run confops mapping build", err)
	}
	return tables, nil
}
