package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps every queue in one table. The (family, key) primary key
// enforces one queue per family for each session code.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the queue database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure queue db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, queue Name) ([]string, error) {
	if err := validateQueue(queue); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM queue_items WHERE queue = ? ORDER BY key", string(queue))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", queue, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", queue, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Read(ctx context.Context, queue Name, key string) ([]byte, error) {
	if err := validateQueue(queue); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM queue_items WHERE queue = ? AND key = ?", string(queue), key,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, queue, key)
		}
		return nil, fmt.Errorf("read %s/%s: %w", queue, key, err)
	}
	return doc, nil
}

// Write upserts the document. Writing to a queue other than the one currently
// holding the key in its family fails with ErrExists; use Move to advance.
func (s *SQLiteStore) Write(ctx context.Context, queue Name, key string, doc []byte) error {
	if err := validateQueue(queue); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	family, _ := FamilyOf(queue)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (key, family, queue, doc, updated_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(family, key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
         WHERE queue_items.queue = excluded.queue`,
		key, string(family), string(queue), doc, now(),
	)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", queue, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s is held by another %s queue", ErrExists, key, family)
	}
	return nil
}

func (s *SQLiteStore) Move(ctx context.Context, key string, from, to Name) error {
	if err := validateMove(key, from, to); err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE queue_items SET queue = ?, updated_at = ? WHERE key = ? AND queue = ?",
		string(to), now(), key, string(from),
	)
	if err != nil {
		return fmt.Errorf("move %s from %s to %s: %w", key, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("move %s rows affected: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, from, key)
	}
	return nil
}

func (s *SQLiteStore) Locate(ctx context.Context, key string, queues []Name) (Name, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if len(queues) == 0 {
		return "", false, nil
	}
	args := make([]any, 0, len(queues)+1)
	args = append(args, key)
	for _, q := range queues {
		if err := validateQueue(q); err != nil {
			return "", false, err
		}
		args = append(args, string(q))
	}
	query := "SELECT queue FROM queue_items WHERE key = ? AND queue IN (" + makePlaceholders(len(queues)) + ") LIMIT 1"
	var found string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("locate %s: %w", key, err)
	}
	return Name(found), true, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
