package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"confops/internal/fileutil"
	"confops/internal/logging"
	"confops/internal/mapping"
	"confops/internal/records"
	"confops/internal/services"
)

const (
	sheetsCache     = "sheets"
	SkippedFileName = "manifest_skipped.json"
	videoHostMarker = "vimeo.com"
	manifestColumns = 4
)

// ManifestResult summarizes a Manifest run.
type ManifestResult struct {
	Entries      int
	Skipped      int
	SheetsFailed int
}

// Manifest reads every configured worksheet, keeps rows with a valid session
// code and a hosting link, and writes the manifest and the skipped rows.
// A worksheet that cannot be read is logged and left out.
func (s *Service) Manifest(ctx context.Context) (ManifestResult, error) {
	var result ManifestResult
	rooms := make([]string, 0, len(s.cfg.Sheets.Spreadsheets))
	for room := range s.cfg.Sheets.Spreadsheets {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	var entries, skipped []records.ManifestEntry
	for _, room := range rooms {
		for _, day := range s.cfg.Sheets.Worksheets {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			rows, err := s.worksheet(ctx, room, day)
			if err != nil {
				result.SheetsFailed++
				logging.WarnWithContext(s.logger, "worksheet skipped", "sheet_read_failed",
					logging.String("room", room),
					logging.String("day", day),
					logging.Error(err),
					logging.String(logging.FieldImpact, "talks of this worksheet are missing from the manifest"),
					logging.String(logging.FieldErrorHint, "rerun confops manifest once the quota resets"),
				)
				continue
			}
			kept, dropped := parseRows(rows, room, day)
			entries = append(entries, kept...)
			skipped = append(skipped, dropped...)
			s.logger.Debug("worksheet processed",
				logging.String("room", room),
				logging.String("day", day),
				logging.Int("entries", len(kept)),
				logging.Int("skipped", len(dropped)),
			)
		}
	}

	if err := records.SaveManifest(s.cfg.ManifestPath(), entries); err != nil {
		return result, err
	}
	if err := records.SaveManifest(s.cfg.WorkPath(SkippedFileName), skipped); err != nil {
		return result, err
	}
	result.Entries = len(entries)
	result.Skipped = len(skipped)
	s.logger.Info("manifest written",
		logging.Int("entries", result.Entries),
		logging.Int("skipped", result.Skipped),
		logging.Int("sheets_failed", result.SheetsFailed),
	)
	return result, nil
}

func (s *Service) worksheet(ctx context.Context, room, day string) ([][]string, error) {
	cache := filepath.Join(s.cfg.CacheDir(sheetsCache), fmt.Sprintf("%s_%s.json", day, room))
	if data, err := os.ReadFile(cache); err == nil {
		var rows [][]string
		if err := json.Unmarshal(data, &rows); err == nil {
			return rows, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read sheet cache: %w", err)
	}
	if s.sheets == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "manifest", "no spreadsheet backend configured", nil)
	}
	rows, err := s.sheets.ReadSheet(ctx, s.cfg.Sheets.Spreadsheets[room], day)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(rows, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode sheet cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cache), 0o755); err != nil {
		return nil, fmt.Errorf("create sheet cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(cache, data, 0o644); err != nil {
		return nil, err
	}
	return rows, nil
}

// parseRows splits worksheet rows into manifest entries and skipped rows. The
// first row is the header; columns are talk, speakers, code and video link.
func parseRows(rows [][]string, room, day string) (kept, skipped []records.ManifestEntry) {
	if len(rows) <= 1 {
		return nil, nil
	}
	for _, row := range rows[1:] {
		cells := make([]string, manifestColumns)
		copy(cells, row)
		entry := records.ManifestEntry{
			Title:     strings.TrimSpace(cells[0]),
			Speaker:   strings.TrimSpace(cells[1]),
			Code:      strings.TrimSpace(cells[2]),
			Room:      room,
			Day:       day,
			VideoLink: strings.TrimSpace(cells[3]),
		}
		entry.VideoID = records.VideoIDFromLink(entry.VideoLink)
		if len(entry.Code) != mapping.CodeLength || !strings.Contains(entry.VideoLink, videoHostMarker) {
			skipped = append(skipped, entry)
			continue
		}
		kept = append(kept, entry)
	}
	return kept, skipped
}
