package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"confops/internal/records"
	"confops/internal/schedule"
	"confops/internal/services"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseInstant reads an operator-supplied time in the local zone unless the
// value carries its own offset.
func parseInstant(flag, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: --%s %q is not a time (use RFC3339 or YYYY-MM-DD HH:MM)", schedule.ErrInvalidInput, flag, value)
}

// loadAllRecords reads every stored record. Unreadable records are skipped
// and returned by code.
func loadAllRecords(store *records.Store) ([]*records.SessionRecord, []string, error) {
	codes, err := store.Codes()
	if err != nil {
		return nil, nil, err
	}
	recs := make([]*records.SessionRecord, 0, len(codes))
	var broken []string
	for _, code := range codes {
		rec, err := store.Load(code)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				broken = append(broken, code)
				continue
			}
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	return recs, broken, nil
}

// manifestOrRecordCodes returns the manifest codes, or every record code when
// no manifest has been built yet.
func manifestOrRecordCodes(manifestPath string, store *records.Store) ([]string, error) {
	entries, err := records.LoadManifest(manifestPath)
	switch {
	case err == nil:
		return records.ManifestCodes(entries), nil
	case errors.Is(err, services.ErrNotFound):
		return store.Codes()
	default:
		return nil, err
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
