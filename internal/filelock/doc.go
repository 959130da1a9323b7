// Package filelock arbitrates concurrent file mutations across sessions.
//
// When multiple agent sessions run in parallel, they may try to mutate
// the same file at the same time. The filelock package serializes those
// mutations through a per-path lock while letting compositionally
// independent work proceed without waiting.
//
// # Architecture
//
// The [Coordinator] maintains a map of file path to ownership record
// (holding session plus a FIFO wait queue). It is the only mutable
// structure shared between sessions; every acquire, release, and merge
// decision is made under a single mutex, so decisions are linearizable.
// Lock activity is published to the event bus for observability.
//
// # Outcomes
//
// An acquisition attempt resolves to exactly one [Outcome]:
//   - acquired: the session holds the lock (a re-acquire by the current
//     holder always resolves this way, immediately)
//   - merged: the coordinator judged the pending operation independent
//     of the in-flight one, executed it itself, and returned the result
//   - queued: the request joined the FIFO queue at the reported position
//   - timeout: the bounded wait expired before a grant
//
// Merging covers inserts only: an append after a bounded edit, or an
// insert whose line falls outside the holder's declared range. Whole-file
// operations on either side always queue.
//
// # Basic Usage
//
//	coord := filelock.NewCoordinator(cfg, bus, logger)
//
//	// Arbitrate without blocking; a contended path queues the request.
//	outcome := coord.Acquire(op, "session-1")
//
//	// Or block until granted, timed out, or cancelled.
//	outcome, err := coord.AcquireWait(ctx, op, "session-1")
//
//	// Check ownership before attempting acquisition.
//	holder, ok := coord.Holder("pkg/foo.go")
//
//	// Release when done; the next queued session takes over.
//	coord.Release("pkg/foo.go", "session-1")
//
//	// Release everything on cancellation.
//	coord.ReleaseAll("session-1")
//
// # Thread Safety
//
// All [Coordinator] methods are safe for concurrent use via an internal
// sync.RWMutex. Events are published outside the mutex, so subscribers
// may call read methods like [Coordinator.Holder] without deadlocking.
package filelock
