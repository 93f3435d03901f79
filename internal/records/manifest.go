package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"confops/internal/fileutil"
	"confops/internal/services"
)

// ManifestEntry is one recorded talk listed in the recording spreadsheets.
type ManifestEntry struct {
	Title     string `json:"title"`
	Speaker   string `json:"speaker"`
	Code      string `json:"code"`
	Room      string `json:"room"`
	Day       string `json:"day"`
	VideoLink string `json:"video_link"`
	VideoID   string `json:"video_id"`
}

// VideoIDFromLink extracts the first path segment of a hosting link, e.g.
// "938668780" from https://vimeo.com/938668780/a661aaf938?share=copy.
func VideoIDFromLink(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}

// ManifestCodes returns the session codes of entries in order.
func ManifestCodes(entries []ManifestEntry) []string {
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	return codes
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "records", "manifest", "no manifest at "+path+"; run confops manifest first", err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrValidation, "records", "manifest", "malformed manifest", err)
	}
	return entries, nil
}

// SaveManifest writes entries atomically.
func SaveManifest(path string, entries []ManifestEntry) error {
	if entries == nil {
		entries = []ManifestEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}
