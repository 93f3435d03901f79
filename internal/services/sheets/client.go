// Package sheets reads recording spreadsheets through the Sheets v4 API.
//
// Reads are retried with a fixed delay since the API rate limit resets per
// minute.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"confops/internal/logging"
	"confops/internal/services"
)

const (
	DefaultRetryDelay    = 60 * time.Second
	DefaultRetryAttempts = 4
)

// Config holds credentials and retry settings.
type Config struct {
	APIKey          string
	CredentialsFile string
	RetryDelay      time.Duration
	RetryAttempts   int
}

// Client reads worksheet values.
type Client struct {
	svc    *sheetsapi.Service
	policy retrypolicy.RetryPolicy[[][]string]
	logger *slog.Logger
}

type options struct {
	clientOptions []option.ClientOption
	logger        *slog.Logger
}

// Option customizes the client.
type Option func(*options)

// WithClientOptions appends Google API client options.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New constructs a client. Without an API key or credentials file only
// injected client options are used.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		clientOpts = append(clientOpts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(strings.TrimSpace(cfg.CredentialsFile)),
			option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope))
	case len(o.clientOptions) == 0:
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "init", "sheets.api_key or sheets.credentials_file is required", nil)
	}
	clientOpts = append(clientOpts, o.clientOptions...)
	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "init", "create sheets service", err)
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	logger := logging.NewComponentLogger(o.logger, "sheets")
	policy := retrypolicy.NewBuilder[[][]string]().
		WithDelay(delay).
		WithMaxRetries(attempts - 1).
		HandleIf(func(_ [][]string, err error) bool { return retryable(err) }).
		OnRetry(func(e failsafe.ExecutionEvent[[][]string]) {
			logging.WarnWithContext(logger, "sheet read retry", "sheet_read_retry",
				logging.Int("attempt", e.Attempts()),
				logging.Error(e.LastError()),
				logging.String(logging.FieldErrorHint, "sheets api quota resets every minute"),
				logging.String(logging.FieldImpact, "manifest build delayed"),
			)
		}).
		ReturnLastFailure().
		Build()

	return &Client{svc: svc, policy: policy, logger: logger}, nil
}

// ReadSheet returns every row of worksheet as strings.
func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, services.Wrap(services.ErrValidation, "sheets", "read", "spreadsheet id is required", nil)
	}
	rows, err := failsafe.With(c.policy).WithContext(ctx).Get(func() ([][]string, error) {
		resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, worksheet).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return stringify(resp.Values), nil
	})
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("read %s/%s", spreadsheetID, worksheet), err)
	}
	return rows, nil
}

func stringify(values [][]any) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				cells[i] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		out = append(out, cells)
	}
	return out
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}

func wrapAPIError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "sheets", op, "request cancelled", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "sheets", op, "spreadsheet not found", err)
	}
	return services.Wrap(services.ErrExternalTool, "sheets", op, "sheets api call failed", err)
}
