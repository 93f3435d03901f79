// Package download fetches recordings listed in the manifest from the
// recording host with a bounded worker pool.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"confops/internal/config"
	"confops/internal/fileutil"
	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/services"
	"confops/internal/services/vimeo"
	"confops/internal/textutil"
)

const (
	DefaultWorkers = 3

	titleRunes  = 50
	partSuffix  = ".part"
	metadataDir = "vimeo"
)

// Fetcher reads metadata and source files from the recording host.
type Fetcher interface {
	VideoMetadata(ctx context.Context, id string) (*vimeo.Metadata, error)
	Download(ctx context.Context, link string, w io.Writer) (int64, error)
}

// Result summarizes a pool run.
type Result struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Pool downloads manifest entries concurrently.
type Pool struct {
	cfg     *config.Config
	fetcher Fetcher
	logger  *slog.Logger
	workers int
}

// Option customizes the pool.
type Option func(*Pool)

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPool constructs a pool.
func NewPool(cfg *config.Config, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Pool {
	p := &Pool{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "download"),
		workers: cfg.Vimeo.Workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	return p
}

// TargetPath is where the recording of entry is stored.
func TargetPath(cfg *config.Config, entry records.ManifestEntry) string {
	title := textutil.SanitizeFileName(textutil.TruncateRunes(strings.TrimSpace(entry.Title), titleRunes))
	name := entry.Code + ".mp4"
	if title != "" {
		name = fmt.Sprintf("%s-%s.mp4", entry.Code, title)
	}
	return filepath.Join(cfg.DownloadsDir(), entry.Code, name)
}

// Run downloads every entry not yet processed. A failing entry is logged and
// counted; only cancellation aborts the run.
func (p *Pool) Run(ctx context.Context, entries []records.ManifestEntry) (Result, error) {
	if p.fetcher == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "download", "run", "no recording host configured", nil)
	}
	if err := os.MkdirAll(p.cfg.DownloadsDir(), 0o755); err != nil {
		return Result{}, fmt.Errorf("create downloads directory: %w", err)
	}
	var downloaded, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	total := len(entries)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			logger := p.logger.With(
				logging.String(logging.FieldSessionCode, entry.Code),
				logging.String("progress", fmt.Sprintf("%d/%d", i+1, total)),
			)
			done, err := p.fetch(gctx, logger, entry)
			switch {
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logging.WarnWithContext(logger, "download failed", "download_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "recording not available for organize"),
					logging.String(logging.FieldErrorHint, "rerun confops download; finished files are skipped"),
				)
			case done:
				downloaded.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	result := Result{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	p.logger.Info("download pool finished",
		logging.Int("downloaded", result.Downloaded),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("workers", p.workers),
	)
	if err == nil {
		err = ctx.Err()
	}
	return result, err
}

// fetch downloads one entry and reports whether a file was written.
func (p *Pool) fetch(ctx context.Context, logger *slog.Logger, entry records.ManifestEntry) (bool, error) {
	marker := p.cfg.ProcessedMarkerPath()
	processed, err := fileutil.ContainsLine(marker, entry.Code)
	if err != nil {
		return false, fmt.Errorf("read processed marker: %w", err)
	}
	if processed {
		logger.Debug("already processed")
		return false, nil
	}
	target := TargetPath(p.cfg, entry)
	if _, err := os.Stat(target); err == nil {
		logger.Debug("already downloaded", logging.String("path", target))
		return false, nil
	}
	if entry.VideoID == "" {
		return false, services.Wrap(services.ErrValidation, "download", "fetch", "manifest entry has no video id", nil)
	}

	meta, err := p.fetcher.VideoMetadata(ctx, entry.VideoID)
	if err != nil {
		return false, err
	}
	metaPath := filepath.Join(p.cfg.CacheDir(metadataDir), entry.Code+".json")
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return false, fmt.Errorf("create metadata cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(metaPath, meta.Raw, 0o644); err != nil {
		return false, err
	}
	link, ok := meta.PickLink(p.cfg.Vimeo.Quality, p.cfg.Vimeo.Rendition)
	if !ok {
		return false, services.Wrap(services.ErrNotFound, "download", "fetch",
			fmt.Sprintf("no %s/%s download link for video %s", p.cfg.Vimeo.Quality, p.cfg.Vimeo.Rendition, entry.VideoID), nil)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create target directory: %w", err)
	}
	part := target + partSuffix
	f, err := os.Create(part)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", part, err)
	}
	n, err := p.fetcher.Download(ctx, link, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return false, err
	}
	if err := os.Rename(part, target); err != nil {
		_ = os.Remove(part)
		return false, fmt.Errorf("finalize %s: %w", target, err)
	}
	if _, err := fileutil.AppendLineIfAbsent(marker, entry.Code); err != nil {
		return true, fmt.Errorf("mark processed: %w", err)
	}
	logger.Info("recording downloaded",
		logging.String("path", target),
		logging.Int64("bytes", n),
	)
	return true, nil
}
