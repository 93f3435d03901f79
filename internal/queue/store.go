package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"confops/internal/config"
)

// Store persists workflow documents by queue and session code.
type Store interface {
	// List returns the keys in a queue, sorted.
	List(ctx context.Context, queue Name) ([]string, error)
	Read(ctx context.Context, queue Name, key string) ([]byte, error)
	// Write replaces the document atomically.
	Write(ctx context.Context, queue Name, key string, doc []byte) error
	// Move relocates key from one queue to another of the same family. A
	// missing source yields ErrNotFound, an occupied destination ErrExists.
	Move(ctx context.Context, key string, from, to Name) error
	// Locate reports which of the given queues holds key.
	Locate(ctx context.Context, key string, queues []Name) (Name, bool, error)
	Close() error
}

// Open builds the backend selected by queue.backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Queue.Backend {
	case "", "dir":
		return NewDirStore(cfg.QueueRoot())
	case "sqlite":
		return OpenSQLite(cfg.QueueDBPath())
	default:
		return nil, fmt.Errorf("%w: backend %q", ErrUnknownQueue, cfg.Queue.Backend)
	}
}

// ReadJSON decodes the document stored under key.
func ReadJSON[T any](ctx context.Context, s Store, queue Name, key string) (T, error) {
	var out T
	data, err := s.Read(ctx, queue, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", queue, key, err)
	}
	return out, nil
}

// WriteJSON encodes doc with indentation and writes it under key.
func WriteJSON(ctx context.Context, s Store, queue Name, key string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", queue, key, err)
	}
	return s.Write(ctx, queue, key, data)
}

// Counts returns the number of items per queue.
func Counts(ctx context.Context, s Store, queues ...Name) (map[Name]int, error) {
	if len(queues) == 0 {
		queues = AllQueues()
	}
	out := make(map[Name]int, len(queues))
	for _, q := range queues {
		keys, err := s.List(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = len(keys)
	}
	return out, nil
}
