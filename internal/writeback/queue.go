// Package writeback buffers storage writes and persists them in coalesced
// batches, either immediately or after a debounce window.
//
// A Queue is owned by a single goroutine (the database loop). Every method
// must be called from it; the debounce timer re-enters through Config.Post.
package writeback

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/stash/internal/metrics"
	"github.com/roach88/stash/internal/storage"
)

// Op is the kind of a pending write.
type Op int

const (
	// OpSet stores a value under a key.
	OpSet Op = iota + 1
	// OpRemove deletes a key.
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return metrics.OpSet
	case OpRemove:
		return metrics.OpRemove
	default:
		return "unknown"
	}
}

// Value is either a literal string or a computation resolved at flush time.
type Value struct {
	literal  string
	deferred func() (string, error)
}

// Literal wraps a value known at enqueue time.
func Literal(v string) Value { return Value{literal: v} }

// Deferred wraps fn, which is evaluated only when the write is flushed. A
// later state of the computed data therefore wins over the state at enqueue.
func Deferred(fn func() (string, error)) Value { return Value{deferred: fn} }

// Resolve returns the value, evaluating a deferred computation.
func (v Value) Resolve() (string, error) {
	if v.deferred != nil {
		return v.deferred()
	}
	return v.literal, nil
}

// IsDeferred reports whether v is computed at flush time.
func (v Value) IsDeferred() bool { return v.deferred != nil }

// Action is one pending write.
type Action struct {
	Op    Op
	Key   string
	Value Value
}

// Set returns an action storing v under key.
func Set(key string, v Value) Action { return Action{Op: OpSet, Key: key, Value: v} }

// Remove returns an action deleting key.
func Remove(key string) Action { return Action{Op: OpRemove, Key: key} }

// Config configures a Queue.
type Config struct {
	// Storage receives the flushed batches.
	Storage storage.Adapter
	// Debounce delays automatic flushes until no write arrived for this long.
	// Zero flushes as soon as a flush is scheduled.
	Debounce time.Duration
	// Post runs fn on the owning goroutine. Required when Debounce > 0.
	Post func(fn func()) bool
	// Busy reports whether the owner is inside a continuation, in which case
	// Enqueue leaves scheduling to the owner. Nil means never busy.
	Busy func() bool
	// Context bounds automatic flushes. Defaults to context.Background().
	Context context.Context
	Logger  *slog.Logger
}

// Queue coalesces pending writes by key, last write wins.
type Queue struct {
	cfg     Config
	pending []Action
	timer   *time.Timer
	gen     uint64 // identifies the armed timer; stale firings are ignored
}

// New returns an empty Queue.
func New(cfg Config) *Queue {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Busy == nil {
		cfg.Busy = func() bool { return false }
	}
	return &Queue{cfg: cfg}
}

// Enqueue appends actions. Outside a continuation it also schedules a flush,
// which covers writes issued outside any procedure.
func (q *Queue) Enqueue(actions ...Action) {
	q.pending = append(q.pending, actions...)
	if !q.cfg.Busy() {
		q.Schedule(false)
	}
}

// Len returns the number of queued, not yet coalesced, actions.
func (q *Queue) Len() int { return len(q.pending) }

// Pending returns a copy of the queued actions in arrival order.
func (q *Queue) Pending() []Action { return append([]Action(nil), q.pending...) }

// Schedule flushes now when force is set or no debounce is configured;
// otherwise it re-arms the debounce timer, cancelling any armed one.
func (q *Queue) Schedule(force bool) {
	if force || q.cfg.Debounce <= 0 || q.cfg.Post == nil {
		q.disarm()
		if err := q.flush(q.cfg.Context); err != nil {
			q.cfg.Logger.Error("write-back flush failed", "error", err)
		}
		return
	}
	if len(q.pending) == 0 {
		return
	}
	q.arm()
}

// Flush persists every pending action now and cancels an armed timer.
func (q *Queue) Flush(ctx context.Context) error {
	q.disarm()
	return q.flush(ctx)
}

// Stop cancels an armed timer without flushing.
func (q *Queue) Stop() { q.disarm() }

func (q *Queue) arm() {
	q.disarm()
	gen := q.gen
	q.timer = time.AfterFunc(q.cfg.Debounce, func() {
		q.cfg.Post(func() {
			if q.gen != gen {
				return
			}
			q.timer = nil
			if err := q.flush(q.cfg.Context); err != nil {
				q.cfg.Logger.Error("debounced write-back flush failed", "error", err)
			}
		})
	})
}

func (q *Queue) disarm() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// flush coalesces the queue and issues one set batch and one remove batch.
// If a batch fails, its actions are put back in front of the queue so the
// next flush retries them.
func (q *Queue) flush(ctx context.Context) error {
	if len(q.pending) == 0 {
		return nil
	}
	actions := q.pending
	q.pending = nil

	order := make([]string, 0, len(actions))
	last := make(map[string]Action, len(actions))
	for _, a := range actions {
		if _, seen := last[a.Key]; seen {
			metrics.CoalescedWritesTotal.Inc()
		} else {
			order = append(order, a.Key)
		}
		last[a.Key] = a
	}

	var sets []storage.Entry
	var removes []string
	for _, key := range order {
		a := last[key]
		switch a.Op {
		case OpSet:
			value, err := a.Value.Resolve()
			if err != nil {
				q.cfg.Logger.Error("dropping write with unresolvable value", "key", key, "error", err)
				continue
			}
			sets = append(sets, storage.Entry{Key: key, Value: value})
		case OpRemove:
			removes = append(removes, key)
		}
	}

	if len(sets) > 0 {
		if err := q.cfg.Storage.Set(ctx, sets...); err != nil {
			q.requeue(sets, removes)
			metrics.FlushFailureTotal.Inc()
			return err
		}
		metrics.WrittenKeysTotal.WithLabelValues(metrics.OpSet).Add(float64(len(sets)))
	}
	if len(removes) > 0 {
		if err := q.cfg.Storage.Remove(ctx, removes...); err != nil {
			q.requeue(nil, removes)
			metrics.FlushFailureTotal.Inc()
			return err
		}
		metrics.WrittenKeysTotal.WithLabelValues(metrics.OpRemove).Add(float64(len(removes)))
	}

	metrics.FlushTotal.Inc()
	q.cfg.Logger.Debug("write-back flushed", "sets", len(sets), "removes", len(removes), "coalesced", len(actions)-len(order))
	return nil
}

func (q *Queue) requeue(sets []storage.Entry, removes []string) {
	retry := make([]Action, 0, len(sets)+len(removes)+len(q.pending))
	for _, e := range sets {
		retry = append(retry, Set(e.Key, Literal(e.Value)))
	}
	for _, key := range removes {
		retry = append(retry, Remove(key))
	}
	q.pending = append(retry, q.pending...)
}
