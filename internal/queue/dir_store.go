package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"confops/internal/fileutil"
)

const docExt = ".json"

// DirStore keeps one directory per queue and one <key>.json file per item.
type DirStore struct {
	root string
}

// NewDirStore prepares the queue directories under root.
func NewDirStore(root string) (*DirStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("queue root is required")
	}
	for _, name := range AllQueues() {
		if err := os.MkdirAll(filepath.Join(root, string(name)), 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir %s: %w", name, err)
		}
	}
	return &DirStore{root: root}, nil
}

// Root returns the directory holding the queue directories.
func (s *DirStore) Root() string { return s.root }

func (s *DirStore) dir(queue Name) string {
	return filepath.Join(s.root, string(queue))
}

func (s *DirStore) path(queue Name, key string) string {
	return filepath.Join(s.dir(queue), key+docExt)
}

func (s *DirStore) List(ctx context.Context, queue Name) ([]string, error) {
	if err := validateQueue(queue); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir(queue))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", queue, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *DirStore) Read(ctx context.Context, queue Name, key string) ([]byte, error) {
	if err := validateQueue(queue); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(queue, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, queue, key)
		}
		return nil, fmt.Errorf("read %s/%s: %w", queue, key, err)
	}
	return data, nil
}

// Write replaces the document atomically. Writing to a queue other than the
// one currently holding the key in its family fails with ErrExists.
func (s *DirStore) Write(ctx context.Context, queue Name, key string, doc []byte) error {
	if err := validateQueue(queue); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	family, _ := FamilyOf(queue)
	for _, other := range families[family] {
		if other == queue {
			continue
		}
		if _, err := os.Stat(s.path(other, key)); err == nil {
			return fmt.Errorf("%w: %s is held by %s", ErrExists, key, other)
		}
	}
	dir := s.dir(queue)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir %s: %w", queue, err)
	}
	return fileutil.WriteFileAtomic(s.path(queue, key), doc, 0o644)
}

func (s *DirStore) Move(ctx context.Context, key string, from, to Name) error {
	if err := validateMove(key, from, to); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == to {
		if _, err := os.Stat(s.path(from, key)); err != nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, from, key)
		}
		return nil
	}
	if err := os.MkdirAll(s.dir(to), 0o755); err != nil {
		return fmt.Errorf("create queue dir %s: %w", to, err)
	}
	src := s.path(from, key)
	dst := s.path(to, key)
	if err := renameNoReplace(src, dst); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %s/%s", ErrNotFound, from, key)
		case errors.Is(err, fs.ErrExist):
			return fmt.Errorf("%w: %s/%s", ErrExists, to, key)
		default:
			return fmt.Errorf("move %s from %s to %s: %w", key, from, to, err)
		}
	}
	return nil
}

func (s *DirStore) Locate(ctx context.Context, key string, queues []Name) (Name, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	for _, q := range queues {
		if err := validateQueue(q); err != nil {
			return "", false, err
		}
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if _, err := os.Stat(s.path(q, key)); err == nil {
			return q, true, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("stat %s/%s: %w", q, key, err)
		}
	}
	return "", false, nil
}

func (s *DirStore) Close() error { return nil }
