package storage

import (
	"context"
	"fmt"
)

// ItemStore is a synchronous single-key backend, the shape of browser-style
// local storage. FromItems lifts it to an Adapter.
type ItemStore interface {
	GetItem(key string) (value string, found bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

type itemAdapter struct {
	items ItemStore
}

// FromItems adapts an ItemStore to the batch Adapter contract by looping over
// each batch.
func FromItems(items ItemStore) Adapter {
	return &itemAdapter{items: items}
}

func (a *itemAdapter) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	entries := make([]Entry, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, found, err := a.items.GetItem(key)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", key, err)
		}
		entries[i] = Entry{Key: key, Value: value, Found: found}
	}
	return entries, nil
}

func (a *itemAdapter) Set(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.items.SetItem(e.Key, e.Value); err != nil {
			return fmt.Errorf("set %q: %w", e.Key, err)
		}
	}
	return nil
}

func (a *itemAdapter) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.items.RemoveItem(key); err != nil {
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return nil
}

func (a *itemAdapter) Close() error {
	if c, ok := a.items.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
