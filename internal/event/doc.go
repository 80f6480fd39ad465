// Package event implements a publish/subscribe registry that stays consistent
// while listeners subscribe or unsubscribe from inside a notification.
//
// Rules during an in-progress Notify:
//   - A listener added by another listener is buffered and first receives
//     the next Notify, never the current one.
//   - A listener removed by another listener is not invoked again, including
//     later in the current Notify. It is spliced out of the list once the
//     outermost Notify returns.
//   - Removing a listener that is still buffered drops it from the buffer.
//
// Listeners run synchronously on the notifying goroutine. The registry itself
// is safe for concurrent use, but listeners are not serialized against each
// other across goroutines.
package event
