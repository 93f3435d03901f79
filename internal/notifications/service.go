package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"confops/internal/config"
)

const userAgent = "confops/0.1.0"

// Service defines the notification surface used by commands.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyReleased(ctx context.Context, code, title, videoID string) error
	NotifyBacklog(ctx context.Context, totals map[string]int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// RunSummary describes one invocation of a workflow command.
type RunSummary struct {
	Command   string
	Succeeded int
	Failed    int
	Duration  time.Duration
	Details   []string
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	command := strings.TrimSpace(summary.Command)
	if command == "" {
		command = "run"
	}

	var title, message string
	if summary.Failed == 0 {
		title = fmt.Sprintf("confops - %s complete", command)
		message = fmt.Sprintf("%s complete: %d items in %s", command, summary.Succeeded, duration)
	} else {
		title = fmt.Sprintf("confops - %s complete (with errors)", command)
		message = fmt.Sprintf("%s complete: %d succeeded, %d failed in %s", command, summary.Succeeded, summary.Failed, duration)
	}
	if len(summary.Details) > 0 {
		message += "\n" + strings.Join(summary.Details, "\n")
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"confops", command, "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReleased(ctx context.Context, code, title, videoID string) error {
	data := payload{
		title:    "confops - Video Released",
		message:  fmt.Sprintf("📺 %s (%s) is public: https://youtu.be/%s", strings.TrimSpace(title), code, videoID),
		tags:     []string{"confops", "release"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBacklog(ctx context.Context, totals map[string]int) error {
	channels := make([]string, 0, len(totals))
	for channel := range totals {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	lines := make([]string, 0, len(channels))
	for _, channel := range channels {
		name := channel
		if name == "" {
			name = "unassigned"
		}
		lines = append(lines, fmt.Sprintf("%s: %d", name, totals[channel]))
	}
	message := "No videos waiting on the platform"
	if len(lines) > 0 {
		message = "Videos waiting on the platform\n" + strings.Join(lines, "\n")
	}
	data := payload{
		title:   "confops - Release Backlog",
		message: message,
		tags:    []string{"confops", "backlog"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "confops - Error",
		message:  builder.String(),
		tags:     []string{"confops", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "confops - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"confops", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// send posts data to the ntfy topic URL. Title, tags and priority travel as
// headers; the body is the plain message.
func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        data.title,
		"Tags":         strings.Join(data.tags, ","),
		"Priority":     data.priority,
	}
	for key, value := range headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error         { return nil }
func (noopService) NotifyReleased(context.Context, string, string, string) error { return nil }
func (noopService) NotifyBacklog(context.Context, map[string]int) error          { return nil }
func (noopService) NotifyError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
