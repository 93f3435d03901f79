package organize_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"confops/internal/organize"
	"confops/internal/records"
	"confops/internal/testsupport"
)

func TestCopyToChannelsReportsEveryCase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recs := testsupport.MustRecords(t, cfg)
	testsupport.SaveRecords(t, recs,
		&records.SessionRecord{Code: "ABC123", Title: "Copied"},
		&records.SessionRecord{Code: "DEF456", Title: "Missing"},
		&records.SessionRecord{Code: "GHI789", Title: "Opt out", DoNotRecord: true},
		&records.SessionRecord{Code: "JKL012", Title: "No channel"},
	)
	src := filepath.Join(cfg.DownloadsDir(), "ABC123", "ABC123-Copied.mp4")
	testsupport.WriteFile(t, src, 4096)
	testsupport.WriteFile(t, filepath.Join(cfg.DownloadsDir(), "GHI789", "GHI789-Opt out.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(cfg.DownloadsDir(), "JKL012", "JKL012-No channel.mp4"), 10)

	channels := map[string]string{"ABC123": "pydata", "DEF456": "pycon", "GHI789": "pycon"}
	report, err := organize.CopyToChannels(context.Background(), cfg, recs, channels, nil)
	if err != nil {
		t.Fatalf("CopyToChannels: %v", err)
	}
	if !slices.Equal(report.Copied, []string{"ABC123"}) ||
		!slices.Equal(report.Missing, []string{"DEF456"}) ||
		!slices.Equal(report.DoNotRecord, []string{"GHI789"}) ||
		!slices.Equal(report.Unassigned, []string{"JKL012"}) {
		t.Fatalf("unexpected report %+v", report)
	}
	dst := filepath.Join(cfg.UploadsDir(), "pydata", "ABC123-Copied.mp4")
	info, err := os.Stat(dst)
	if err != nil || info.Size() != 4096 {
		t.Fatalf("copy missing or wrong size: %v", err)
	}

	report, err = organize.CopyToChannels(context.Background(), cfg, recs, channels, nil)
	if err != nil || len(report.Copied) != 0 || !slices.Equal(report.Present, []string{"ABC123"}) {
		t.Fatalf("rerun: %+v, %v", report, err)
	}
}

func TestDownloadedMissingDirectory(t *testing.T) {
	got, err := organize.Downloaded(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(got) != 0 {
		t.Fatalf("Downloaded = %v, %v", got, err)
	}
}
