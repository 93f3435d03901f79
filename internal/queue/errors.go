package queue

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound reports a key absent from the queue it was expected in.
	ErrNotFound = errors.New("queue item not found")
	// ErrExists reports a move whose destination already holds the key.
	ErrExists = errors.New("queue item already exists")
	// ErrUnknownQueue reports a queue name outside the known families.
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrInvalidKey reports a key that cannot name a document.
	ErrInvalidKey = errors.New("invalid queue key")
)

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || key != strings.TrimSpace(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." || filepath.Base(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func validateQueue(name Name) error {
	if _, ok := familyOf[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	return nil
}

func validateMove(key string, from, to Name) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateQueue(from); err != nil {
		return err
	}
	if err := validateQueue(to); err != nil {
		return err
	}
	ff, _ := FamilyOf(from)
	tf, _ := FamilyOf(to)
	if ff != tf {
		return fmt.Errorf("move %s from %s to %s crosses queue families", key, from, to)
	}
	return nil
}
