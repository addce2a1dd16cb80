package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrExists reports a Put against a key that is already stored.
	ErrExists = errors.New("object already exists")
	// ErrNotFound reports a key with no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey reports a key that could address something outside the store.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored blob.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store is a create-exclusive blob store.
type Store interface {
	// Put stores data under key, failing with ErrExists if key is taken.
	Put(ctx context.Context, key string, data []byte) error
	// Open streams the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Backend names the store implementation.
	Backend() string
}

// ValidateKey accepts flat keys made of safe filename characters.
func ValidateKey(key string) error {
	if key == "" || len(key) > 255 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
