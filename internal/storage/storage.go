package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by adapters used after Close.
var ErrClosed = errors.New("storage closed")

// Entry is a single key/value pair. Found reports whether Get located the
// key; it is ignored by Set.
type Entry struct {
	Key   string
	Value string
	Found bool
}

// Adapter is the uniform asynchronous-safe backend contract.
type Adapter interface {
	// Get returns one entry per requested key, in request order. Missing
	// keys yield an entry with Found == false.
	Get(ctx context.Context, keys ...string) ([]Entry, error)
	// Set persists entries, overwriting existing values.
	Set(ctx context.Context, entries ...Entry) error
	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
}

// GetOne reads a single key.
func GetOne(ctx context.Context, a Adapter, key string) (string, bool, error) {
	entries, err := a.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, entries[0].Found, nil
}

// Close closes a if it holds resources.
func Close(a Adapter) error {
	if c, ok := a.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
