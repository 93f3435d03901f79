package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"confops/internal/config"
	"confops/internal/mapping"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/runlock"
	"confops/internal/schedule"
	"confops/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"
	for _, opt := range opts {
		opt(cfg)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "confops.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

func seedQueue(t *testing.T, cfg *config.Config, name queue.Name, codes ...string) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	for _, code := range codes {
		if err := queue.WriteJSON(context.Background(), store, name, code, records.NewVideoResource("vid-"+code)); err != nil {
			t.Fatalf("seed %s/%s: %v", name, code, err)
		}
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "pycon, pydata")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestScheduleAssignsPreparedItems(t *testing.T) {
	env := setupCLITestEnv(t)
	seedQueue(t, env.cfg, queue.Prepared, "AAAAAA", "BBBBBB", "CCCCCC")

	out, err := runCLI(t, env.configPath, "schedule", "--start", "2024-05-01T09:00:00Z", "--interval", "4h")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, code := range []string{"AAAAAA", "BBBBBB", "CCCCCC"} {
		requireContains(t, out, code)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	keys, err := store.List(ctx, queue.ScheduledUpdate)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 scheduled items, got %v", keys)
	}
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	want := map[time.Time]bool{start: true, start.Add(4 * time.Hour): true, start.Add(8 * time.Hour): true}
	for _, key := range keys {
		video, err := queue.ReadJSON[records.VideoResource](ctx, store, queue.ScheduledUpdate, key)
		if err != nil {
			t.Fatal(err)
		}
		if video.Status.PublishAt == nil || !want[video.Status.PublishAt.UTC()] {
			t.Fatalf("unexpected publish instant for %s: %v", key, video.Status.PublishAt)
		}
		delete(want, video.Status.PublishAt.UTC())
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	seedQueue(t, env.cfg, queue.Prepared, "AAAAAA")

	cases := [][]string{
		{"schedule", "--start", "2024-05-01", "--end", "2024-05-10", "--steps", "many"},
		{"schedule", "--start", "tomorrow", "--interval", "1h"},
		{"schedule", "--start", "2024-05-01", "--interval", "1h", "--from", "published"},
	}
	for _, args := range cases {
		_, err := runCLI(t, env.configPath, args...)
		if !errors.Is(err, schedule.ErrInvalidInput) {
			t.Fatalf("%v: expected ErrInvalidInput, got %v", args, err)
		}
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	keys, err := store.List(context.Background(), queue.Prepared)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("prepared queue changed: %v", keys)
	}
}

func TestWorkflowRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := runlock.Acquire(env.cfg.LockPath())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, err = runCLI(t, env.configPath, "schedule", "--start", "2024-05-01", "--interval", "1h")
	if !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
}

func TestWorkflowWritesMetricsTextfile(t *testing.T) {
	var textfile string
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		textfile = filepath.Join(testsupport.BaseDir(cfg), "metrics", "confops.prom")
		cfg.Metrics.Textfile = textfile
	})
	seedQueue(t, env.cfg, queue.Prepared, "AAAAAA")

	if _, err := runCLI(t, env.configPath, "schedule", "--start", "2024-05-01", "--interval", "1h"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	data, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	requireContains(t, text, `confops_items_total{outcome="success",stage="schedule"} 1`)
	requireContains(t, text, `confops_queue_items{queue="scheduled-for-update"} 1`)
	requireContains(t, text, `confops_last_run_timestamp_seconds{command="schedule"}`)
}

func TestStatusShowsQueuesAndBacklog(t *testing.T) {
	env := setupCLITestEnv(t)
	seedQueue(t, env.cfg, queue.Prepared, "AAAAAA", "BBBBBB")
	seedQueue(t, env.cfg, queue.UpdatedOnPlatform, "CCCCCC")
	if err := mapping.SaveTables(env.cfg.MappingDir(), mapping.Tables{
		Channels: map[string]string{"CCCCCC": "pydata"},
		VideoIDs: map[string]string{"CCCCCC": "vid-CCCCCC"},
	}); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "scheduled-for-update")
	requireContains(t, strings.ToLower(out), "waiting on platform")
	requireContains(t, out, "pydata")
	if !strings.Contains(out, "prepared") || !strings.Contains(out, " 2 ") {
		t.Fatalf("expected prepared count in output:\n%s", out)
	}
}

func TestStatusWithoutMappings(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No videos waiting on the platform")
}

func TestDoctorReportsMissingCredentials(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without vendor credentials")
	}
	requireContains(t, err.Error(), "checks failed")
	requireContains(t, out, "Work directory:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Vimeo:")
	requireContains(t, out, "[ERROR] Missing access token")
	requireContains(t, out, "Run lock:")
}

func TestReleaseNowRequiresCode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env.configPath, "release-now"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestLogsShowsLatestRun(t *testing.T) {
	env := setupCLITestEnv(t)
	seedQueue(t, env.cfg, queue.Prepared, "AAAAAA")

	if _, err := runCLI(t, env.configPath, "schedule", "--start", "2024-05-01", "--interval", "1h"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	out, err := runCLI(t, env.configPath, "logs", "--lines", "100")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "run started")
	requireContains(t, out, "run finished")
}
