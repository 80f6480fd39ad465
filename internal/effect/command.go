package effect

// Done receives the single outcome of a run.
type Done func(value any, err error)

// Proc is a user procedure. It receives the interpreter environment and a
// payload and returns one of:
//   - a Steps value, which the interpreter drives;
//   - a nested Proc (or an equivalent func), invoked once more with the
//     same arguments;
//   - any other value, which is the immediate result.
//
// Returning a *Future is not allowed and fails with ErrUnsupported.
type Proc[C any] func(env C, payload any) (any, error)

// Command is an inert description of a suspending operation. Commands are
// immutable; the With* methods return modified copies.
type Command[C any] struct {
	proc    Proc[C]
	bridge  func(done Done)
	payload any
	fork    bool
	mapFn   func(any) any
	collect bool
	max     int
}

// NewCommand returns a command running proc with payload.
func NewCommand[C any](proc Proc[C], payload any) *Command[C] {
	return &Command[C]{proc: proc, payload: payload}
}

// Bridge returns a command that hands done to fn instead of driving a step
// sequence. It adapts callback-style asynchronous code. done may be called
// from any goroutine; only the first call counts.
func Bridge[C any](fn func(done Done)) *Command[C] {
	return &Command[C]{bridge: fn}
}

// Func returns a command for a plain synchronous function.
func Func[C any](fn func(env C) (any, error)) *Command[C] {
	return NewCommand(func(env C, _ any) (any, error) { return fn(env) }, nil)
}

func (c *Command[C]) clone() *Command[C] {
	cp := *c
	return &cp
}

// WithFork returns a copy that runs detached: its result is discarded and it
// never blocks the yielding sequence or a join.
func (c *Command[C]) WithFork() *Command[C] {
	cp := c.clone()
	cp.fork = true
	return cp
}

// WithMap returns a copy whose result is transformed by fn before it is
// delivered.
func (c *Command[C]) WithMap(fn func(any) any) *Command[C] {
	cp := c.clone()
	cp.mapFn = fn
	return cp
}

// Collecting returns a copy that accumulates every plain value its sequence
// yields and reports the accumulated []any instead of the return value.
// A positive max completes the run as soon as max values were collected.
func (c *Command[C]) Collecting(max int) *Command[C] {
	cp := c.clone()
	cp.collect = true
	cp.max = max
	return cp
}

// Parallel is a join of commands with an optional mapping of the ordered
// result slice.
type Parallel[C any] struct {
	Commands []*Command[C]
	Map      func([]any) any
}

// All joins cmds and delivers their results in order.
func All[C any](cmds ...*Command[C]) Parallel[C] {
	return Parallel[C]{Commands: cmds}
}
