package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"confops/internal/config"
	"confops/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "reconcile"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run completed",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), notifications.RunSummary{
					Command: "reconcile", Succeeded: 3, Duration: 1500 * time.Millisecond,
				})
			},
			expectTitle:   "confops - reconcile complete",
			expectMessage: "reconcile complete: 3 items in 2s",
			expectTags:    "confops,reconcile,completed",
		},
		{
			name: "run completed with errors",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), notifications.RunSummary{
					Command: "send-emails", Succeeded: 2, Failed: 1, Duration: time.Minute, Details: []string{"ABC123: smtp refused"},
				})
			},
			expectTitle:   "confops - send-emails complete (with errors)",
			expectMessage: "send-emails complete: 2 succeeded, 1 failed in 1m0s\nABC123: smtp refused",
			expectTags:    "confops,send-emails,completed",
		},
		{
			name: "released",
			send: func(s notifications.Service) error {
				return s.NotifyReleased(context.Background(), "ABC123", "Intro", "vid-a")
			},
			expectTitle:    "confops - Video Released",
			expectMessage:  "📺 Intro (ABC123) is public: https://youtu.be/vid-a",
			expectTags:     "confops,release",
			expectPriority: "high",
		},
		{
			name: "backlog",
			send: func(s notifications.Service) error {
				return s.NotifyBacklog(context.Background(), map[string]int{"pydata": 4, "pycon": 2})
			},
			expectTitle:   "confops - Release Backlog",
			expectMessage: "Videos waiting on the platform\npycon: 2\npydata: 4",
			expectTags:    "confops,backlog",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("quota exceeded"), "reconcile")
			},
			expectTitle:    "confops - Error",
			expectMessage:  "❌ Error in reconcile: quota exceeded",
			expectTags:     "confops,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
