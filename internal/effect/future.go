package effect

import (
	"context"
	"sync"
)

// Future is a value that settles once, possibly on another goroutine.
// Yielding a Future suspends the yielding sequence until it settles.
type Future struct {
	mu      sync.Mutex
	settled bool
	value   any
	err     error
	waiters []Done
	done    chan struct{}
}

// NewFuture returns a pending future and the function settling it. Only the
// first call to settle has an effect.
func NewFuture() (*Future, Done) {
	f := &Future{done: make(chan struct{})}
	return f, f.settle
}

// Resolved returns a future already settled with value.
func Resolved(value any) *Future {
	f, settle := NewFuture()
	settle(value, nil)
	return f
}

// Failed returns a future already settled with err.
func Failed(err error) *Future {
	f, settle := NewFuture()
	settle(nil, err)
	return f
}

// Spawn runs fn on a new goroutine and returns its future.
func Spawn(ctx context.Context, fn func(ctx context.Context) (any, error)) *Future {
	f, settle := NewFuture()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				settle(nil, &PanicError{Value: p})
			}
		}()
		settle(fn(ctx))
	}()
	return f
}

func (f *Future) settle(value any, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value, f.err = value, err
	waiters := f.waiters
	f.waiters = nil
	close(f.done)
	f.mu.Unlock()

	for _, w := range waiters {
		w(value, err)
	}
}

// Await registers fn to receive the outcome. fn runs on the settling
// goroutine, or immediately if the future already settled.
func (f *Future) Await(fn Done) {
	f.mu.Lock()
	if !f.settled {
		f.waiters = append(f.waiters, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	fn(value, err)
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settled reports whether the outcome is available.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Join returns a future settling with the ordered values of fs, or with
// the first error.
func Join(fs ...*Future) *Future {
	out, settle := NewFuture()
	if len(fs) == 0 {
		settle([]any{}, nil)
		return out
	}

	var mu sync.Mutex
	values := make([]any, len(fs))
	remaining := len(fs)

	for i, f := range fs {
		f.Await(func(v any, err error) {
			if err != nil {
				settle(nil, err)
				return
			}
			mu.Lock()
			values[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				settle(values, nil)
			}
		})
	}
	return out
}
