package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"confops/internal/config"
	"confops/internal/logging"
	"confops/internal/metrics"
	"confops/internal/notifications"
	"confops/internal/queue"
	"confops/internal/records"
	"confops/internal/runlock"
	"confops/internal/services"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runEnv carries the shared resources of one workflow invocation.
type runEnv struct {
	cfg      *config.Config
	runID    string
	logger   *slog.Logger
	queues   queue.Store
	records  *records.Store
	metrics  *metrics.Metrics
	notifier notifications.Service
}

// workflowFunc performs one command and reports what it did. Succeeded and
// Failed drive the run notification; Command and Duration are filled in by
// runWorkflow.
type workflowFunc func(ctx context.Context, env *runEnv) (notifications.RunSummary, error)

// runWorkflow holds the run lock for the duration of fn and takes care of the
// run id, log file, metrics textfile and notifications.
func (c *commandContext) runWorkflow(cmd *cobra.Command, name string, fn workflowFunc) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	env, err := c.openEnv(cfg)
	if err != nil {
		return err
	}
	defer env.queues.Close()

	ctx := services.WithRequestID(cmd.Context(), env.runID)
	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, env.logger)
	logger.Info("run started", logging.String("command", name))

	started := time.Now()
	summary, runErr := fn(ctx, env)
	finished := time.Now()

	summary.Command = name
	summary.Duration = finished.Sub(started)
	c.finishRun(ctx, env, name, summary, runErr, started, finished)
	return runErr
}

func (c *commandContext) openEnv(cfg *config.Config) (*runEnv, error) {
	runID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Paths.LogDir != "" {
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "confops-*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("confops-%s.log", runID))},
		})
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	recs, err := records.NewStore(cfg.RecordsDir())
	if err != nil {
		store.Close()
		return nil, err
	}
	return &runEnv{
		cfg:      cfg,
		runID:    runID,
		logger:   logger,
		queues:   store,
		records:  recs,
		metrics:  metrics.New(),
		notifier: notifications.NewService(cfg),
	}, nil
}

func (c *commandContext) finishRun(ctx context.Context, env *runEnv, name string, summary notifications.RunSummary, runErr error, started, finished time.Time) {
	logger := logging.WithContext(ctx, env.logger)

	env.metrics.ObserveRun(name, started, finished)
	if err := env.metrics.ObserveQueues(ctx, env.queues); err != nil {
		logging.WarnWithContext(logger, "queue gauges unavailable", "metrics_queue_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "queue gauges missing from this run's metrics"),
		)
	}

	if runErr != nil {
		env.metrics.Fail(name, services.FailureKind(runErr))
		if !errors.Is(runErr, context.Canceled) {
			logging.ErrorWithContext(logger, "run failed", "run_failed",
				logging.String("command", name),
				logging.Error(runErr),
			)
			if err := env.notifier.NotifyError(context.WithoutCancel(ctx), runErr, name); err != nil {
				logging.WarnWithContext(logger, "error notification failed", "notify_failed", logging.Error(err))
			}
		}
	} else {
		logger.Info("run finished",
			logging.String("command", name),
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed),
			logging.Duration("duration", summary.Duration),
		)
		if summary.Succeeded > 0 || summary.Failed > 0 {
			if err := env.notifier.NotifyRunCompleted(ctx, summary); err != nil {
				logging.WarnWithContext(logger, "run notification failed", "notify_failed", logging.Error(err))
			}
		}
	}

	if path := env.cfg.Metrics.Textfile; path != "" {
		if err := env.metrics.WriteTextfile(path); err != nil {
			logging.WarnWithContext(logger, "metrics textfile write failed", "metrics_write_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "node_exporter keeps the previous values"),
			)
		}
	}
}

// count records n items of stage under outcome and returns n.
func (e *runEnv) count(stage, outcome string, n int) int {
	e.metrics.Add(stage, outcome, n)
	return n
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
