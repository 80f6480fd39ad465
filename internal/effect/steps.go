package effect

import "iter"

// Step is the outcome of one advance: a yielded effect, or the final value
// when Done is set.
type Step struct {
	Value any
	Done  bool
}

// Steps is a resumable step sequence. Next resumes the sequence with the
// resolved value of the previously yielded effect, or with the error that
// effect failed with. The first call receives (nil, nil).
//
// Each call must complete synchronously; only the yielded effect may be
// asynchronous.
type Steps interface {
	Next(in any, err error) (Step, error)
}

// Stopper is implemented by step sequences holding resources. The
// interpreter calls Stop when it abandons or finishes the sequence.
type Stopper interface {
	Stop()
}

// StepsFunc adapts a function to Steps.
type StepsFunc func(in any, err error) (Step, error)

func (f StepsFunc) Next(in any, err error) (Step, error) { return f(in, err) }

// Yield returns a Step yielding effect.
func Yield(effect any) Step { return Step{Value: effect} }

// Return returns a final Step.
func Return(value any) Step { return Step{Value: value, Done: true} }

// Yielder suspends a Routine body.
type Yielder struct {
	yield func(any) bool
	in    any
	err   error
}

// Yield suspends the body until effect is resolved and returns its value
// or error. It returns ErrStopped after the interpreter abandoned the body.
func (y *Yielder) Yield(effect any) (any, error) {
	if !y.yield(effect) {
		return nil, ErrStopped
	}
	return y.in, y.err
}

type routine struct {
	y      *Yielder
	next   func() (any, bool)
	stop   func()
	result any
	err    error
}

// Routine turns straight-line code into a step sequence. The body runs as a
// coroutine that strictly alternates with the interpreter, so it observes
// the same single-writer guarantees as any continuation.
//
// A body yields every effect through y and returns its final value:
//
//	effect.Routine(func(y *effect.Yielder) (any, error) {
//		todo, err := y.Yield(todos.Create(props))
//		if err != nil {
//			return nil, err
//		}
//		return todo, nil
//	})
func Routine(body func(y *Yielder) (any, error)) Steps {
	r := &routine{y: &Yielder{}}
	r.next, r.stop = iter.Pull(func(yield func(any) bool) {
		r.y.yield = yield
		r.result, r.err = body(r.y)
	})
	return r
}

func (r *routine) Next(in any, err error) (Step, error) {
	r.y.in, r.y.err = in, err
	v, ok := r.next()
	if !ok {
		return Step{Value: r.result, Done: true}, r.err
	}
	return Step{Value: v}, nil
}

func (r *routine) Stop() { r.stop() }
