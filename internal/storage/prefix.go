package storage

import (
	"context"
	"strings"
)

type prefixed struct {
	inner  Adapter
	prefix string
}

// WithPrefix namespaces every key passed to a with "<name>/". An empty name
// yields the bare "/" prefix.
func WithPrefix(a Adapter, name string) Adapter {
	return &prefixed{inner: a, prefix: name + "/"}
}

// Prefix returns the namespace WithPrefix applies for name.
func Prefix(name string) string { return name + "/" }

func (p *prefixed) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = p.prefix + key
	}
	entries, err := p.inner.Get(ctx, full...)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Key = strings.TrimPrefix(entries[i].Key, p.prefix)
	}
	return entries, nil
}

func (p *prefixed) Set(ctx context.Context, entries ...Entry) error {
	full := make([]Entry, len(entries))
	for i, e := range entries {
		full[i] = Entry{Key: p.prefix + e.Key, Value: e.Value}
	}
	return p.inner.Set(ctx, full...)
}

func (p *prefixed) Remove(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = p.prefix + key
	}
	return p.inner.Remove(ctx, full...)
}

func (p *prefixed) Close() error { return Close(p.inner) }
