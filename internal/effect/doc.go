// Package effect implements the effect interpreter: it drives resumable
// procedures and resolves the effects they yield.
//
// ARCHITECTURE:
//
// A procedure (Proc) produces a step sequence (Steps). The Interpreter
// advances the sequence, and every yielded value is classified:
//   - *Future: the sequence is suspended until the future settles.
//   - *Command: interpreted recursively; its result (after its Map) resumes
//     the sequence. Bridge commands hand a done callback to foreign async code.
//   - []*Command or Parallel: executed concurrently and joined; the results
//     keep their original index order. Forked members report immediately.
//   - anything else: collected (in collect mode) and passed straight back.
//
// Single-Writer Loop:
// All continuations run on one goroutine, the Loop. Futures and bridge
// callbacks settle on arbitrary goroutines but always post their
// continuation to the Loop, so state touched by procedures needs no locks.
// Effects that resolve synchronously are handled by a trampoline inside the
// current continuation and never yield to the Loop.
//
// Deferred Idle Hook:
// The Interpreter counts nested advances. The idle hook (the write-back
// flush) runs only when the count returns to zero, i.e. after the whole
// synchronous chain of the current continuation has unwound.
package effect
