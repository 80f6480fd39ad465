package engine

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/stash/internal/effect"
	"github.com/roach88/stash/internal/metrics"
	"github.com/roach88/stash/internal/storage"
)

// selector filters a scan. The zero value matches every entity.
type selector struct {
	want map[string]struct{} // nil unless selecting by key
	pred func(*Entity) bool
}

func selectKeys(keys []string) selector {
	want := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		want[key] = struct{}{}
	}
	return selector{want: want}
}

func (sel selector) match(e *Entity) bool {
	switch {
	case sel.want != nil:
		_, ok := sel.want[e.key]
		return ok
	case sel.pred != nil:
		return sel.pred(e)
	default:
		return true
	}
}

// candidate reports whether an unloaded key could match.
func (sel selector) candidate(key string) bool {
	if sel.want == nil {
		return true
	}
	_, ok := sel.want[key]
	return ok
}

type scanPhase int

const (
	scanCached scanPhase = iota
	scanLoading
	scanLoaded
	scanDone
)

// scan yields every matching entity of a schema. Cached entities come
// first, in cache order; then the remaining known keys are loaded in one
// deduplicated read and their matches follow in key order.
type scan struct {
	schema  *Schema
	sel     selector
	phase   scanPhase
	cached  []*Entity
	pending []string
	i       int
}

func newScan(s *Schema, sel selector) *scan {
	return &scan{schema: s, sel: sel, cached: slices.Clone(s.entities)}
}

func (q *scan) Next(_ any, err error) (effect.Step, error) {
	switch q.phase {
	case scanCached:
		for q.i < len(q.cached) {
			e := q.cached[q.i]
			q.i++
			if q.sel.match(e) {
				return effect.Yield(e), nil
			}
		}

		q.pending = q.unprocessed()
		if len(q.pending) == 0 {
			q.phase = scanDone
			return effect.Return(nil), nil
		}
		q.phase = scanLoading
		return effect.Yield(q.schema.load(q.pending)), nil

	case scanLoading:
		if err != nil {
			q.phase = scanDone
			return effect.Step{}, err
		}
		q.phase = scanLoaded
		q.i = 0
		fallthrough

	case scanLoaded:
		for q.i < len(q.pending) {
			e := q.schema.byKey[q.pending[q.i]]
			q.i++
			if e != nil && q.sel.match(e) {
				return effect.Yield(e), nil
			}
		}
		q.phase = scanDone
	}
	return effect.Return(nil), nil
}

// unprocessed returns the known keys not covered by the cached pass.
func (q *scan) unprocessed() []string {
	seen := make(map[string]struct{}, len(q.cached))
	for _, e := range q.cached {
		seen[e.key] = struct{}{}
	}

	var keys []string
	for _, key := range q.schema.keys {
		if _, ok := seen[key]; ok {
			continue
		}
		if q.sel.candidate(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// load returns a future settling once every key is loaded. Keys with a read
// in flight join it; the rest are fetched in a single storage read.
func (s *Schema) load(keys []string) *effect.Future {
	var waits []*effect.Future
	var missing []string

	for _, key := range keys {
		if _, ok := s.byKey[key]; ok {
			continue
		}
		if f, ok := s.loading[key]; ok {
			metrics.SharedLoadsTotal.Inc()
			if !slices.Contains(waits, f) {
				waits = append(waits, f)
			}
			continue
		}
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		waits = append(waits, s.read(missing))
	}
	return effect.Join(waits...)
}

// read fetches keys on a storage goroutine and materializes them on the
// loop.
func (s *Schema) read(keys []string) *effect.Future {
	f, settle := effect.NewFuture()
	for _, key := range keys {
		s.loading[key] = f
	}

	storageKeys := make([]string, len(keys))
	for i, key := range keys {
		storageKeys[i] = entityStorageKey(s.name, key)
	}
	metrics.StorageReadsTotal.Inc()

	db := s.db
	go func() {
		entries, err := db.storage.Get(db.ctx, storageKeys...)
		posted := db.loop.Post(func() {
			if err != nil {
				s.forget(keys, f)
				settle(nil, fmt.Errorf("load %s entities: %w", s.name, err))
				return
			}
			settle(nil, s.materialize(keys, entries, f))
		})
		if !posted {
			settle(nil, effect.ErrLoopClosed)
		}
	}()
	return f
}

func (s *Schema) forget(keys []string, f *effect.Future) {
	for _, key := range keys {
		if s.loading[key] == f {
			delete(s.loading, key)
		}
	}
}

// materialize caches the entities read for keys. Keys removed or cached
// while the read was in flight are skipped.
func (s *Schema) materialize(keys []string, entries []storage.Entry, f *effect.Future) error {
	s.forget(keys, f)

	var firstErr error
	added := 0
	for i, key := range keys {
		if _, ok := s.known[key]; !ok {
			continue
		}
		if _, ok := s.byKey[key]; ok {
			continue
		}

		props := map[string]any{}
		switch {
		case i >= len(entries) || !entries[i].Found:
			s.db.log.Warn("entity missing from storage", "schema", s.name, "key", key)
		default:
			if err := json.Unmarshal([]byte(entries[i].Value), &props); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("decode %s entity %q: %w", s.name, key, err)
				}
				continue
			}
		}

		s.add(newEntity(s.name, key, props))
		added++
	}

	if added > 0 {
		metrics.LoadedEntitiesTotal.Add(float64(added))
		s.db.writeKeys(s)
		s.db.log.Debug("entities loaded", "schema", s.name, "count", added)
	}
	return firstErr
}
