package testsupport

import (
	"testing"

	"confops/internal/config"
	"confops/internal/queue"
)

// MustOpenStore opens the configured queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
