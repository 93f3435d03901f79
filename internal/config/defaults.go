package config

const (
	defaultConfigPath           = "~/.config/confops/config.toml"
	defaultWorkDir              = "~/.local/share/confops"
	defaultVideoDir             = "~/confops/videos"
	defaultLogDir               = "~/.local/share/confops/logs"
	defaultLogRetentionDays     = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultPretalxBaseURL       = "https://pretalx.com/api"
	defaultClientSecretFile     = "~/.config/confops/client_secret.json"
	defaultTokenFile            = "~/.config/confops/youtube_token.json"
	DefaultMaxDescriptionLength = 5000 // platform limit in characters
	defaultCategoryID           = "28"
	defaultBatchSize            = 50
	maxBatchSize                = 50
	defaultSheetsRetryDelay     = 60
	defaultSheetsRetryAttempts  = 4
	defaultVimeoBaseURL         = "https://api.vimeo.com"
	defaultVimeoQuality         = "hd"
	defaultVimeoRendition       = "1080p"
	defaultVimeoWorkers         = 3
	defaultLLMBaseURL           = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel             = "gpt-3.5-turbo"
	defaultLLMTimeoutSeconds    = 60
	defaultSocialProvider       = "linkedin"
	defaultLinkedInBaseURL      = "https://api.linkedin.com/v2"
	defaultSMTPPort             = 587
	defaultNotifyTimeout        = 10
	defaultQueueBackend         = "dir"

	// DefaultTeaserPrompt asks for one catchy sentence inviting people to watch.
	DefaultTeaserPrompt = "You are an expert editor and your task is to write one short teaser sentence " +
		"to encourage people to watch the video based on the title and text. " +
		"The teaser should be a short sentence that is catchy and engaging. " +
		"Use a professional tone. Start with 'Watch'."
	// DefaultDescriptionPrompt asks for a continuous text; %d receives the token budget.
	DefaultDescriptionPrompt = "You are an expert editor and your task is to create a continuous text " +
		"with about %d tokens. The text describes the talk and should be concise and informative please. " +
		"Mention the speaker names, jobs and companies. Do not use the word 'delve'. " +
		"Make sure only to mention jobs and companies if they are mentioned in the text."
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			VideoDir: defaultVideoDir,
			LogDir:   defaultLogDir,
		},
		Pretalx: Pretalx{
			BaseURL: defaultPretalxBaseURL,
		},
		YouTube: YouTube{
			ClientSecretFile:     defaultClientSecretFile,
			TokenFile:            defaultTokenFile,
			MaxDescriptionLength: DefaultMaxDescriptionLength,
			CategoryID:           defaultCategoryID,
			BatchSize:            defaultBatchSize,
		},
		Sheets: Sheets{
			RetryDelaySeconds: defaultSheetsRetryDelay,
			RetryAttempts:     defaultSheetsRetryAttempts,
		},
		Vimeo: Vimeo{
			BaseURL:   defaultVimeoBaseURL,
			Quality:   defaultVimeoQuality,
			Rendition: defaultVimeoRendition,
			Workers:   defaultVimeoWorkers,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			TeaserPrompt:      DefaultTeaserPrompt,
			DescriptionPrompt: DefaultDescriptionPrompt,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
		},
		Social: Social{
			Provider:        defaultSocialProvider,
			LinkedInBaseURL: defaultLinkedInBaseURL,
		},
		Email: Email{
			Port: defaultSMTPPort,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Queue: Queue{
			Backend: defaultQueueBackend,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
