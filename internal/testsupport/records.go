package testsupport

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"confops/internal/config"
	"confops/internal/records"
)

// MustRecords opens the record store below the config's work directory.
func MustRecords(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.NewStore(cfg.RecordsDir())
	if err != nil {
		t.Fatalf("records.NewStore: %v", err)
	}
	return store
}

// SaveRecords writes each record or fails the test.
func SaveRecords(t testing.TB, store *records.Store, recs ...*records.SessionRecord) {
	t.Helper()

	for _, rec := range recs {
		if err := store.Save(rec); err != nil {
			t.Fatalf("save record %s: %v", rec.Code, err)
		}
	}
}

// LogBuffer collects JSON log lines written by a test logger.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewLogger returns a debug-level JSON logger writing into a LogBuffer.
func NewLogger() (*slog.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
