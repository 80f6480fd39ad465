package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stash/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStorage wraps Memory and counts batch calls.
type countingStorage struct {
	*storage.Memory
	mu       sync.Mutex
	gets     [][]string
	sets     int
	removes  int
	getDelay time.Duration
	failGets bool
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Memory: storage.NewMemory()}
}

func (s *countingStorage) Get(ctx context.Context, keys ...string) ([]storage.Entry, error) {
	s.mu.Lock()
	s.gets = append(s.gets, keys)
	delay, fail := s.getDelay, s.failGets
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("storage offline")
	}
	return s.Memory.Get(ctx, keys...)
}

func (s *countingStorage) Set(ctx context.Context, entries ...storage.Entry) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Memory.Set(ctx, entries...)
}

func (s *countingStorage) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.removes++
	s.mu.Unlock()
	return s.Memory.Remove(ctx, keys...)
}

// entityReads returns the Get calls that read entities.
func (s *countingStorage) entityReads() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reads [][]string
	for _, keys := range s.gets {
		if len(keys) > 0 && strings.Contains(keys[0], "#") {
			reads = append(reads, keys)
		}
	}
	return reads
}

func (s *countingStorage) setCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func openTest(t *testing.T, opts ...Option) *Database {
	t.Helper()

	db, err := Open(append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// run executes body as a procedure. body runs on the database loop, so it
// must not call require.
func run(t *testing.T, db *Database, body func(c *Context, y *Yielder) (any, error)) any {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := db.Exec(ctx, Routine(func(c *Context, y *Yielder, _ any) (any, error) {
		return body(c, y)
	}), nil)
	require.NoError(t, err)
	return v
}

// seed creates one entity per props map in schema.
func seed(t *testing.T, db *Database, schema string, props ...map[string]any) []*Entity {
	t.Helper()

	v := run(t, db, func(c *Context, y *Yielder) (any, error) {
		s := c.Schema(schema)
		out := make([]*Entity, 0, len(props))
		for _, p := range props {
			e, err := y.Yield(s.Create(p))
			if err != nil {
				return nil, err
			}
			out = append(out, AsEntity(e))
		}
		return out, nil
	})
	return v.([]*Entity)
}
