// Package signal broadcasts "identifier X changed" between processes.
//
// A change signal carries no payload: it tells observers to re-check an
// identifier. Delivery is at-most-coalesced. Several posts in quick
// succession may arrive as one notification, and a notification may arrive
// more than once, so handlers must be idempotent.
//
// # Main Types
//
//   - [Center]: post and observe signals by name
//   - [Bus]: in-process center; handlers run synchronously on the posting goroutine
//   - [FileCenter]: cross-process center backed by a shared notification
//     directory and fsnotify; handlers run on the watcher goroutine, or on a
//     timer goroutine when deliveries are debounced
//
// Handlers run on whatever goroutine delivers the signal. Callers that need a
// specific execution context must redispatch (see package dispatch).
//
// # Scope
//
// Signal names are global to a notification directory. Two applications that
// share a directory and use the same name wake each other's observers, even
// when they store their messages in different groups. An observer that is
// woken by a foreign signal re-reads its own slot and finds nothing new, so
// this costs a read and never a wrong delivery. Give each group its own
// directory to avoid the extra reads.
//
// # Registration
//
// Every [Center.Observe] returns a [Subscription] that must be cancelled
// before the observer goes away. Observing the same name twice yields two
// independent subscriptions; owners that want one callback per name cancel
// the previous subscription first.
package signal

// Handler receives the name of a signal that was posted.
type Handler func(name string)

// Subscription is a live registration returned by Center.Observe.
type Subscription interface {
	// Cancel removes the registration. It is safe to call more than once.
	Cancel()
}

// Center posts and observes change signals keyed by name.
type Center interface {
	// Post broadcasts that name changed. Fire-and-forget.
	Post(name string)
	// Observe registers h for name.
	Observe(name string, h Handler) Subscription
}
