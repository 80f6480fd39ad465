package effect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Interpreter drives procedures against an environment of type C.
//
// An Interpreter is not safe for concurrent use: every method must run on
// the goroutine executing its Scheduler's tasks.
type Interpreter[C any] struct {
	env   C
	sched Scheduler
	depth int
	idle  func()
	log   *slog.Logger
}

// NewInterpreter returns an interpreter passing env to every procedure and
// posting asynchronous continuations to sched.
func NewInterpreter[C any](env C, sched Scheduler, log *slog.Logger) *Interpreter[C] {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter[C]{env: env, sched: sched, log: log}
}

// OnIdle sets the hook run whenever the outermost continuation unwinds.
func (in *Interpreter[C]) OnIdle(fn func()) { in.idle = fn }

// Busy reports whether a continuation is executing.
func (in *Interpreter[C]) Busy() bool { return in.depth > 0 }

func (in *Interpreter[C]) enter() { in.depth++ }

func (in *Interpreter[C]) leave() {
	in.depth--
	if in.depth == 0 && in.idle != nil {
		in.idle()
	}
}

// Run interprets cmd and reports exactly one outcome through done. done is
// called synchronously if the command never suspends.
func (in *Interpreter[C]) Run(ctx context.Context, cmd *Command[C], done Done) {
	if done == nil {
		done = func(any, error) {}
	}
	in.enter()
	defer in.leave()

	if cmd.fork {
		in.exec(ctx, cmd, in.detached())
		done(nil, nil)
		return
	}
	in.exec(ctx, cmd, done)
}

// Drive runs proc with payload as a plain command.
func (in *Interpreter[C]) Drive(ctx context.Context, proc Proc[C], payload any, done Done) {
	in.Run(ctx, NewCommand(proc, payload), done)
}

// exec starts cmd and delivers its mapped outcome once.
func (in *Interpreter[C]) exec(ctx context.Context, cmd *Command[C], done Done) {
	if cmd.mapFn != nil {
		inner := done
		done = func(v any, err error) {
			if err != nil {
				inner(nil, err)
				return
			}
			inner(cmd.mapFn(v), nil)
		}
	}

	if cmd.bridge != nil {
		in.bridge(cmd, done)
		return
	}
	if err := ctx.Err(); err != nil {
		done(nil, err)
		return
	}

	out, err := in.invoke(cmd.proc, cmd.payload)
	if err != nil {
		done(nil, err)
		return
	}

	switch v := out.(type) {
	case Steps:
		r := &run[C]{in: in, ctx: ctx, cmd: cmd, steps: v, done: done}
		r.resume(nil, nil)
	case *Future:
		done(nil, fmt.Errorf("%w: procedure returned a future instead of a step sequence", ErrUnsupported))
	default:
		done(v, nil)
	}
}

// invoke calls proc, calling a returned procedure once more.
func (in *Interpreter[C]) invoke(proc Proc[C], payload any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, &PanicError{Value: p}
		}
	}()

	out, err = proc(in.env, payload)
	if err != nil {
		return nil, err
	}
	switch next := out.(type) {
	case Proc[C]:
		return next(in.env, payload)
	case func(C, any) (any, error):
		return next(in.env, payload)
	}
	return out, nil
}

// bridge hands a once-only callback to the foreign code. The continuation
// always runs on the loop.
func (in *Interpreter[C]) bridge(cmd *Command[C], done Done) {
	var once sync.Once
	cmd.bridge(func(v any, err error) {
		once.Do(func() {
			posted := in.sched.Post(func() {
				in.enter()
				defer in.leave()
				done(v, err)
			})
			if !posted {
				in.log.Warn("dropping bridge result: loop closed")
			}
		})
	})
}

// detached returns the completion used for forked commands.
func (in *Interpreter[C]) detached() Done {
	return func(_ any, err error) {
		if err != nil {
			in.log.Warn("forked command failed", "error", err)
		}
	}
}

// join runs cmds concurrently. The outcome is the ordered results, or the
// first error.
func (in *Interpreter[C]) join(ctx context.Context, cmds []*Command[C], mapFn func([]any) any, done Done) {
	results := make([]any, len(cmds))
	remaining := len(cmds)
	failed := false

	finish := func() {
		if mapFn != nil {
			done(mapFn(results), nil)
			return
		}
		done(results, nil)
	}
	if remaining == 0 {
		finish()
		return
	}

	for i, cmd := range cmds {
		if failed {
			return
		}
		report := func(v any, err error) {
			if failed {
				return
			}
			if err != nil {
				failed = true
				done(nil, err)
				return
			}
			results[i] = v
			remaining--
			if remaining == 0 {
				finish()
			}
		}

		if cmd.fork {
			in.exec(ctx, cmd, in.detached())
			report(nil, nil)
			continue
		}
		in.exec(ctx, cmd, report)
	}
}

// run is one driven step sequence.
type run[C any] struct {
	in       *Interpreter[C]
	ctx      context.Context
	cmd      *Command[C]
	steps    Steps
	done     Done
	values   []any
	finished bool
}

// outcome is a resolved effect.
type outcome struct {
	value any
	err   error
}

// resume advances the sequence with (v, err) and keeps advancing while
// yielded effects resolve synchronously.
func (r *run[C]) resume(v any, err error) {
	r.in.enter()
	defer r.in.leave()

	for !r.finished {
		if cerr := r.ctx.Err(); cerr != nil {
			r.finish(nil, cerr)
			return
		}

		step, serr := r.next(v, err)
		if serr != nil {
			r.finish(nil, serr)
			return
		}
		if step.Done {
			if r.cmd.collect {
				r.finish(r.collected(), nil)
			} else {
				r.finish(step.Value, nil)
			}
			return
		}

		res, ok := r.dispatch(step.Value)
		if !ok {
			return
		}
		v, err = res.value, res.err
	}
}

func (r *run[C]) next(v any, err error) (step Step, serr error) {
	defer func() {
		if p := recover(); p != nil {
			step, serr = Step{}, &PanicError{Value: p}
		}
	}()
	return r.steps.Next(v, err)
}

// dispatch classifies a yielded effect. It reports ok when the effect
// resolved synchronously; otherwise resume is called later.
func (r *run[C]) dispatch(eff any) (outcome, bool) {
	switch e := eff.(type) {
	case *Future:
		e.Await(func(v any, err error) {
			if !r.in.sched.Post(func() { r.resume(v, err) }) {
				r.in.log.Warn("dropping future result: loop closed")
			}
		})
		return outcome{}, false

	case *Command[C]:
		if e.fork {
			r.in.exec(r.ctx, e, r.in.detached())
			return outcome{}, true
		}
		return r.inline(func(done Done) { r.in.exec(r.ctx, e, done) })

	case []*Command[C]:
		return r.inline(func(done Done) { r.in.join(r.ctx, e, nil, done) })

	case Parallel[C]:
		return r.inline(func(done Done) { r.in.join(r.ctx, e.Commands, e.Map, done) })

	default:
		if r.cmd.collect {
			r.values = append(r.values, eff)
			if r.cmd.max > 0 && len(r.values) >= r.cmd.max {
				r.finish(r.collected(), nil)
				return outcome{}, false
			}
		}
		return outcome{value: eff}, true
	}
}

// inline starts a nested interpretation. If it completes before start
// returns, the outcome is handed back to the trampoline instead of
// recursing into resume.
func (r *run[C]) inline(start func(Done)) (outcome, bool) {
	starting := true
	completed := false
	var res outcome

	start(func(v any, err error) {
		if starting {
			completed = true
			res = outcome{value: v, err: err}
			return
		}
		r.resume(v, err)
	})
	starting = false

	return res, completed
}

func (r *run[C]) collected() []any {
	if r.values == nil {
		return []any{}
	}
	return r.values
}

func (r *run[C]) finish(v any, err error) {
	if r.finished {
		return
	}
	r.finished = true
	if s, ok := r.steps.(Stopper); ok {
		s.Stop()
	}
	r.done(v, err)
}
