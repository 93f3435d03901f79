package ingest

import (
	"context"
	"log/slog"
	"net/url"

	"confops/internal/config"
	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/services/pretalx"
)

// SessionSource lists the program of an event.
type SessionSource interface {
	Submissions(ctx context.Context, event string, params url.Values) ([]pretalx.Submission, error)
	Speakers(ctx context.Context, event string, params url.Values) ([]pretalx.Speaker, error)
}

// Completer generates text from a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// SheetReader reads one worksheet of a spreadsheet.
type SheetReader interface {
	ReadSheet(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error)
}

// Service runs the ingestion steps.
type Service struct {
	cfg    *config.Config
	recs   *records.Store
	logger *slog.Logger

	sessions  SessionSource
	completer Completer
	sheets    SheetReader
}

// Option wires a backend into the service.
type Option func(*Service)

// WithSessionSource sets the talk-management backend.
func WithSessionSource(src SessionSource) Option {
	return func(s *Service) { s.sessions = src }
}

// WithCompleter sets the text generation backend.
func WithCompleter(c Completer) Option {
	return func(s *Service) { s.completer = c }
}

// WithSheetReader sets the spreadsheet backend.
func WithSheetReader(r SheetReader) Option {
	return func(s *Service) { s.sheets = r }
}

// New constructs a Service. Backends are optional; an operation whose backend
// is missing fails with a configuration error.
func New(cfg *config.Config, recs *records.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		recs:   recs,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
