package youtube_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"

	"confops/internal/services"
	"confops/internal/services/youtube"
)

func newTestClient(t *testing.T, batchSize int, handler http.HandlerFunc) *youtube.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := youtube.New(context.Background(), youtube.Config{BatchSize: batchSize},
		youtube.WithClientOptions(
			option.WithEndpoint(srv.URL+"/"),
			option.WithHTTPClient(srv.Client()),
		),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestPlaylistItemsFollowsPages(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/playlistItems") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("playlistId"); got != "PL-pycon" {
			t.Errorf("playlistId = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"nextPageToken":"p2","items":[{"snippet":{"title":"ABC123 Intro","resourceId":{"videoId":"v1"}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"snippet":{"title":"DEF456 Deep dive","resourceId":{"videoId":"v2"}}}]}`))
	})

	items, err := client.PlaylistItems(context.Background(), "PL-pycon")
	if err != nil {
		t.Fatalf("PlaylistItems: %v", err)
	}
	if len(items) != 2 || items[0].VideoID != "v1" || items[1].Title != "DEF456 Deep dive" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestUpdateVideoForcesPrivateWhenScheduled(t *testing.T) {
	var body map[string]any
	var parts string
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		parts = strings.Join(r.URL.Query()["part"], ",")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"v1","status":{"privacyStatus":"private"}}`))
	})

	at := time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)
	raw, err := client.UpdateVideo(context.Background(), youtube.VideoUpdate{
		ID:            "v1",
		Title:         "Intro to X [Conf24]",
		PrivacyStatus: "unlisted",
		Embeddable:    true,
		PublishAt:     &at,
		RecordingDate: "2024-04-23T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("UpdateVideo: %v", err)
	}
	if !strings.Contains(string(raw), `"v1"`) {
		t.Fatalf("unexpected response %s", raw)
	}
	if !strings.Contains(parts, "recordingDetails") || !strings.Contains(parts, "snippet") {
		t.Fatalf("unexpected parts %q", parts)
	}
	status := body["status"].(map[string]any)
	if status["privacyStatus"] != "private" {
		t.Fatalf("privacyStatus = %v, want private", status["privacyStatus"])
	}
	if status["publishAt"] != "2024-05-01T16:00:00Z" {
		t.Fatalf("publishAt = %v", status["publishAt"])
	}
	snippet := body["snippet"].(map[string]any)
	if snippet["categoryId"] != "28" {
		t.Fatalf("categoryId = %v, want 28", snippet["categoryId"])
	}
}

func TestVideoStatusesBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("maxResults") {
			t.Errorf("maxResults sent together with id: %s", r.URL.RawQuery)
		}
		var ids []string
		for _, v := range r.URL.Query()["id"] {
			ids = append(ids, strings.Split(v, ",")...)
		}
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()
		items := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			items = append(items, map[string]any{"id": id, "status": map[string]any{"privacyStatus": "public"}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	statuses, err := client.VideoStatuses(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("VideoStatuses: %v", err)
	}
	if len(statuses) != 5 {
		t.Fatalf("got %d statuses, want 5", len(statuses))
	}
	if len(batches) != 3 {
		t.Fatalf("got %d requests, want 3", len(batches))
	}
	for _, batch := range batches {
		if len(batch) > 2 {
			t.Fatalf("batch %v exceeds size 2", batch)
		}
	}
}

func TestVideoStatusesFailsWholeCallOnChunkError(t *testing.T) {
	calls := 0
	client := newTestClient(t, 1, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			http.Error(w, `{"error":{"code":400,"message":"bad id"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"a","status":{"privacyStatus":"public"}}]}`))
	})

	statuses, err := client.VideoStatuses(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if statuses != nil {
		t.Fatalf("expected no partial result, got %+v", statuses)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := youtube.New(context.Background(), youtube.Config{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
