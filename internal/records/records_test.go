package records_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"confops/internal/records"
	"confops/internal/services"
)

func TestSpeakerNormalize(t *testing.T) {
	cases := []struct {
		in   records.Speaker
		want records.Speaker
	}{
		{
			in:   records.Speaker{XHandle: "https://x.com/jdoe/", LinkedIn: "www.linkedin.com/in/jdoe", GitHub: "jdoe"},
			want: records.Speaker{XHandle: "@jdoe", LinkedIn: "https://www.linkedin.com/in/jdoe", GitHub: "https://github.com/jdoe"},
		},
		{
			in:   records.Speaker{XHandle: "jdoe", LinkedIn: "in/jdoe", GitHub: "github.com/jdoe"},
			want: records.Speaker{XHandle: "@jdoe", LinkedIn: "https://linkedin.com/in/jdoe", GitHub: "https://github.com/jdoe"},
		},
		{
			in:   records.Speaker{XHandle: "@jdoe", LinkedIn: "https://linkedin.com/in/jdoe", GitHub: "http://github.com/jdoe"},
			want: records.Speaker{XHandle: "@jdoe", LinkedIn: "https://linkedin.com/in/jdoe", GitHub: "http://github.com/jdoe"},
		},
	}
	for _, tc := range cases {
		got := tc.in
		got.Normalize()
		if got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestSpeakerNames(t *testing.T) {
	rec := records.SessionRecord{Speakers: []records.Speaker{{Name: "Ada"}, {Name: " "}, {Name: "Grace"}}}
	if got := rec.SpeakerNames(); got != "Ada, Grace" {
		t.Fatalf("got %q want %q", got, "Ada, Grace")
	}
}

func TestDateJSON(t *testing.T) {
	var rec records.SessionRecord
	if err := json.Unmarshal([]byte(`{"code":"ABC123","recorded_date":"2024-04-23T10:00:00"}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.RecordedDate.String() != "2024-04-23" {
		t.Fatalf("got %q", rec.RecordedDate.String())
	}
	data, err := json.Marshal(records.SessionRecord{Code: "X"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"recorded_date":null`) {
		t.Fatalf("expected null date, got %s", data)
	}
}

func TestNewVideoResourceDefaults(t *testing.T) {
	v := records.NewVideoResource("vid1")
	if v.Snippet.CategoryID != "28" || v.Snippet.DefaultLanguage != "en" || v.Snippet.DefaultAudioLanguage != "en" {
		t.Fatalf("unexpected snippet defaults: %+v", v.Snippet)
	}
	if v.Status.PrivacyStatus != "unlisted" || v.Status.License != "youtube" || !v.Status.Embeddable {
		t.Fatalf("unexpected status defaults: %+v", v.Status)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if v.DueBy(now) {
		t.Fatal("unscheduled video must not be due")
	}
	v.Status.PublishAt = &now
	if !v.DueBy(now) {
		t.Fatal("video scheduled at now must be due")
	}
	if v.DueBy(now.Add(-time.Second)) {
		t.Fatal("video scheduled in the future must not be due")
	}
	v.SetRecordingDate(records.NewDate(now))
	if v.RecordingDetails.RecordingDate != "2024-05-01T00:00:00Z" {
		t.Fatalf("unexpected recording date %q", v.RecordingDetails.RecordingDate)
	}
}

func TestStoreRoundTripAndErrors(t *testing.T) {
	store, err := records.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec := &records.SessionRecord{Code: "ABC123", Title: "Intro to X", Speakers: []records.Speaker{{Name: "Ada"}}}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load("ABC123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "Intro to X" || loaded.SpeakerNames() != "Ada" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	codes, err := store.Codes()
	if err != nil || len(codes) != 1 || codes[0] != "ABC123" {
		t.Fatalf("Codes = %v, %v", codes, err)
	}

	if _, err := store.Load("NOPE01"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := os.WriteFile(store.Path("BAD001"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("BAD001"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := store.Save(&records.SessionRecord{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty code, got %v", err)
	}
}

func TestVideoIDFromLink(t *testing.T) {
	cases := map[string]string{
		"https://vimeo.com/938668780/a661aaf938?share=copy": "938668780",
		"https://vimeo.com/12345":                           "12345",
		"":                                                  "",
		"https://vimeo.com/":                                "",
	}
	for link, want := range cases {
		if got := records.VideoIDFromLink(link); got != want {
			t.Errorf("VideoIDFromLink(%q) = %q, want %q", link, got, want)
		}
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if _, err := records.LoadManifest(path); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	entries := []records.ManifestEntry{
		{Code: "ABC123", Title: "Intro", VideoLink: "https://vimeo.com/1/x", VideoID: "1"},
		{Code: "DEF456", Title: "Deep", VideoLink: "https://vimeo.com/2/y", VideoID: "2"},
	}
	if err := records.SaveManifest(path, entries); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}
	loaded, err := records.LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if got := records.ManifestCodes(loaded); len(got) != 2 || got[0] != "ABC123" || got[1] != "DEF456" {
		t.Fatalf("codes = %v", got)
	}
}
