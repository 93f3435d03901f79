package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"confops/internal/services"
)

func reply(w http.ResponseWriter, choice map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}})
}

func fastClient(url string, attempts int) *Client {
	return NewClient(
		Config{APIKey: "test", BaseURL: url, Model: "m"},
		WithRetryMaxAttempts(attempts),
		WithRetryBackoff(0, 0),
	)
}

func TestCompleteSendsBudgetAndTemperature(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "confops" {
			t.Errorf("X-Title = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		reply(w, map[string]any{"message": map[string]any{"content": "  Watch this talk.  "}})
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-3.5-turbo", Title: "confops"})
	text, err := client.Complete(context.Background(), "You are an editor.", "title: Intro to X", 50, 0.7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Watch this talk." {
		t.Fatalf("text = %q", text)
	}
	if captured["max_tokens"] != float64(50) || captured["temperature"] != 0.7 || captured["model"] != "gpt-3.5-turbo" {
		t.Fatalf("unexpected request body %v", captured)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
}

func TestCompleteValidatesInput(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:0"})
	ctx := context.Background()
	cases := map[string]func() error{
		"no system": func() error { _, err := client.Complete(ctx, "", "user", 10, 0.5); return err },
		"no user":   func() error { _, err := client.Complete(ctx, "system", "  ", 10, 0.5); return err },
		"no budget": func() error { _, err := client.Complete(ctx, "system", "user", 0, 0.5); return err },
	}
	for name, call := range cases {
		if err := call(); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	noKey := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := noKey.Complete(ctx, "system", "user", 10, 0.5); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteAcceptsLegacyTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"text": "from text"})
	}))
	defer srv.Close()

	text, err := fastClient(srv.URL, 1).Complete(context.Background(), "system", "user", 10, 0.9)
	if err != nil || text != "from text" {
		t.Fatalf("Complete = %q, %v", text, err)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(w, map[string]any{"message": map[string]any{"content": "ok"}})
	}))
	defer srv.Close()

	text, err := fastClient(srv.URL, 5).Complete(context.Background(), "system", "user", 100, 0.9)
	if err != nil || text != "ok" {
		t.Fatalf("Complete = %q, %v", text, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteRetriesEmptyReplyThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := ""
		if calls.Add(1) >= 3 {
			content = "third time lucky"
		}
		reply(w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}})
	}))
	defer srv.Close()

	text, err := fastClient(srv.URL, 5).Complete(context.Background(), "system", "user", 300, 0.9)
	if err != nil || text != "third time lucky" {
		t.Fatalf("Complete = %q, %v", text, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteEmptyReplyReportsFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}})
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL, 2).Complete(context.Background(), "system", "user", 10, 0.9)
	if err == nil || !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected finish reason in error, got %v", err)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestCompleteDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL, 5).Complete(context.Background(), "system", "user", 10, 0.9)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, map[string]any{"message": map[string]any{"content": "OK"}})
	}))
	defer srv.Close()

	good := NewClient(Config{APIKey: "good", BaseURL: srv.URL}, WithRetryMaxAttempts(1))
	if err := good.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	bad := NewClient(Config{APIKey: "bad", BaseURL: srv.URL}, WithRetryMaxAttempts(1))
	if err := bad.HealthCheck(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected rejected key to be a configuration error, got %v", err)
	}
}

func TestCompleteHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := fastClient(srv.URL, 3).Complete(ctx, "system", "user", 10, 0.9)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
