package testsupport

import (
	"path/filepath"
	"testing"

	"confops/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.VideoDir = filepath.Join(base, "videos")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Event.Name = "Conf"
	cfgVal.Event.Tag = "Conf24"
	cfgVal.Event.SessionLinkBase = "https://conf.example/program"
	cfgVal.Event.TeamSignature = "The Conf Team"
	cfgVal.YouTube.Channels = map[string]config.Channel{
		"pycon":  {PlaylistID: "PL-pycon"},
		"pydata": {PlaylistID: "PL-pydata"},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithQueueBackend selects the queue backend on the test config.
func WithQueueBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = backend
	}
}

// WithMaxDescriptionLength overrides the description limit on the test config.
func WithMaxDescriptionLength(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.MaxDescriptionLength = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
