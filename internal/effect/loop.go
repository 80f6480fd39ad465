package effect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler runs continuations on the interpreter's goroutine.
type Scheduler interface {
	// Post queues fn. It returns false if fn will never run.
	Post(fn func()) bool
}

// Loop is the single-writer task loop. Post is safe from any goroutine;
// Run must be called from exactly one goroutine, which becomes the only
// goroutine touching interpreter state.
//
// The queue is unbounded so continuations posted from inside a task never
// block. A buffered signal channel of size 1 coalesces wake-ups and lets Run
// wait on its context.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
	log    *slog.Logger
}

// NewLoop returns an empty loop.
func NewLoop(log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
		log:    log,
	}
}

// Post adds fn to the back of the queue. Returns false once the loop is
// closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, fn)

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front task without blocking.
func (l *Loop) tryDequeue() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil // release the closure for GC
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return fn, true
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks. Run drains what is already queued and
// returns.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Run processes tasks in FIFO order until the loop is closed and drained or
// ctx is cancelled. A panicking task is logged and processing continues.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if fn, ok := l.tryDequeue(); ok {
			l.runTask(fn)
			continue
		}

		l.mu.Lock()
		done := l.closed && len(l.tasks) == 0
		l.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.log.Error("loop task panicked", "panic", fmt.Sprint(p))
		}
	}()
	fn()
}
