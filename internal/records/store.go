package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"confops/internal/fileutil"
	"confops/internal/services"
)

// Store reads and writes SessionRecord documents, one <code>.json per session.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("records directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the records directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for code.
func (s *Store) Path(code string) string {
	return filepath.Join(s.dir, code+".json")
}

// Codes lists the session codes with a record, sorted.
func (s *Store) Codes() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(codes)
	return codes, nil
}

// Exists reports whether a record for code is stored.
func (s *Store) Exists(code string) bool {
	_, err := os.Stat(s.Path(code))
	return err == nil
}

// Load reads the record for code. A missing record matches services.ErrNotFound
// and a malformed one services.ErrValidation.
func (s *Store) Load(code string) (*SessionRecord, error) {
	data, err := os.ReadFile(s.Path(code))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "records", "load", "no record for "+code, err)
		}
		return nil, fmt.Errorf("read record %s: %w", code, err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, services.Wrap(services.ErrValidation, "records", "decode", "malformed record "+code, err)
	}
	if rec.Code == "" {
		rec.Code = code
	}
	return &rec, nil
}

// Save rewrites the whole record atomically.
func (s *Store) Save(rec *SessionRecord) error {
	if rec == nil || strings.TrimSpace(rec.Code) == "" {
		return services.Wrap(services.ErrValidation, "records", "save", "record code is required", nil)
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Code, err)
	}
	return fileutil.WriteFileAtomic(s.Path(rec.Code), data, 0o644)
}
