// Package organize copies downloaded recordings into per-channel upload
// directories and reports sessions that cannot be released.
package organize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"confops/internal/config"
	"confops/internal/fileutil"
	"confops/internal/logging"
	"confops/internal/records"
	"confops/internal/services"
)

// Report lists what happened to every session.
type Report struct {
	Copied      []string
	Present     []string
	Missing     []string
	DoNotRecord []string
	Unassigned  []string
	Failed      []string
}

// Downloaded maps session codes to the recordings found below dir. File names
// start with the code followed by a dash.
func Downloaded(dir string) (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		code, _, _ := strings.Cut(stem, "-")
		if code != "" {
			out[code] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan downloads: %w", err)
	}
	return out, nil
}

// CopyToChannels copies each assigned recording to uploads/<channel>/ with
// size and hash verification. Targets that already match in size are kept.
func CopyToChannels(ctx context.Context, cfg *config.Config, recs *records.Store, channels map[string]string, logger *slog.Logger) (Report, error) {
	logger = logging.NewComponentLogger(logger, "organize")
	var report Report

	downloads, err := Downloaded(cfg.DownloadsDir())
	if err != nil {
		return report, err
	}
	codes, err := recs.Codes()
	if err != nil {
		return report, err
	}

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec, err := recs.Load(code)
		if err != nil {
			report.Failed = append(report.Failed, code)
			logging.WarnWithContext(logger, "record unreadable", "organize_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.Error(err),
			)
			continue
		}
		src, downloaded := downloads[code]
		switch {
		case rec.DoNotRecord:
			report.DoNotRecord = append(report.DoNotRecord, code)
			continue
		case !downloaded:
			report.Missing = append(report.Missing, code)
			continue
		}
		channel := strings.TrimSpace(channels[code])
		if channel == "" {
			report.Unassigned = append(report.Unassigned, code)
			logging.WarnWithContext(logger, "recording has no channel", "mapping_missing_channel",
				logging.String(logging.FieldSessionCode, code),
				logging.String(logging.FieldImpact, "recording is not copied for upload"),
				logging.String(logging.FieldErrorHint, "add the code to pretalx.video_to_track"),
			)
			continue
		}

		dst := filepath.Join(cfg.UploadsDir(), channel, filepath.Base(src))
		copied, err := copyRecording(src, dst)
		if err != nil {
			report.Failed = append(report.Failed, code)
			if isVolumeUnavailable(err) {
				return report, services.Wrap(services.ErrConfiguration, "organize", "copy",
					"uploads directory unavailable: "+cfg.UploadsDir(), err)
			}
			logging.WarnWithContext(logger, "copy failed", "organize_failed",
				logging.String(logging.FieldSessionCode, code),
				logging.String("destination", dst),
				logging.Error(err),
			)
			continue
		}
		if copied {
			report.Copied = append(report.Copied, code)
			logger.Info("recording copied",
				logging.String(logging.FieldSessionCode, code),
				logging.String("channel", channel),
				logging.String("destination", dst),
			)
		} else {
			report.Present = append(report.Present, code)
		}
	}

	for _, list := range [][]string{report.Missing, report.DoNotRecord, report.Unassigned} {
		sort.Strings(list)
	}
	logger.Info("organize finished",
		logging.Int("copied", len(report.Copied)),
		logging.Int("present", len(report.Present)),
		logging.Int("missing", len(report.Missing)),
		logging.Int("do_not_record", len(report.DoNotRecord)),
		logging.Int("unassigned", len(report.Unassigned)),
		logging.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func copyRecording(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.Size() == srcInfo.Size() {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := fileutil.CopyVerified(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

var volumeUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ESTALE,
	syscall.ENOSPC,
}

// isVolumeUnavailable reports errors that affect every remaining copy.
func isVolumeUnavailable(err error) bool {
	for _, target := range volumeUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
