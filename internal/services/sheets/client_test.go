package sheets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"

	"confops/internal/services"
	"confops/internal/services/sheets"
)

func newClient(t *testing.T, srv *httptest.Server, attempts int) *sheets.Client {
	t.Helper()
	client, err := sheets.New(context.Background(),
		sheets.Config{RetryDelay: time.Millisecond, RetryAttempts: attempts},
		sheets.WithClientOptions(
			option.WithEndpoint(srv.URL+"/"),
			option.WithHTTPClient(srv.Client()),
		),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestReadSheetRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Day1!A1:C2","values":[["code","title","link"],["ABC123","Intro",42]]}`))
	}))
	defer srv.Close()

	rows, err := newClient(t, srv, 4).ReadSheet(context.Background(), "sheet-id", "Day1")
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(rows) != 2 || rows[1][0] != "ABC123" || rows[1][2] != "42" {
		t.Fatalf("unexpected rows %#v", rows)
	}
}

func TestReadSheetGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, 2).ReadSheet(context.Background(), "sheet-id", "Day1")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestReadSheetNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"missing"}}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, 4).ReadSheet(context.Background(), "sheet-id", "Day1")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := sheets.New(context.Background(), sheets.Config{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
