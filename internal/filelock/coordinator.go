package filelock

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TannerBurns/termai/internal/config"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
)

// lock is the ownership record for one file path.
type lock struct {
	holder     string    // Session currently holding the lock
	op         Operation // Operation the holder declared on acquisition
	acquiredAt time.Time // When the current holder took the lock
	queue      []*waiter // FIFO wait queue
}

// waiter is a queued acquisition request. The grant channel is closed
// exactly once, either when the lock is handed to this session (granted
// set) or when the waiter is purged from the queue (granted unset).
type waiter struct {
	sessionID string
	op        Operation
	grant     chan struct{}
	granted   bool
}

// Coordinator arbitrates file mutations across concurrent sessions. It
// holds the only mutable state shared between sessions: a map of file
// path to ownership record. Every acquire, release, and merge decision
// happens under one mutex, so decisions are linearizable.
type Coordinator struct {
	mu    sync.RWMutex
	locks map[string]*lock

	bus         *event.Bus
	logger      *logging.Logger
	merge       bool
	waitTimeout time.Duration
}

// NewCoordinator creates a Coordinator configured from cfg. The bus may
// be nil, in which case no events are published.
func NewCoordinator(cfg *config.Config, bus *event.Bus, logger *logging.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Coordinator{
		locks:       make(map[string]*lock),
		bus:         bus,
		logger:      logger.With("component", "filelock"),
		merge:       cfg.Locks.MergeEnabled,
		waitTimeout: cfg.Locks.WaitTimeout(),
	}
}

// Acquire arbitrates op for the given session without blocking. A free
// path or a re-acquire by the current holder returns OutcomeAcquired. A
// path held by another session returns OutcomeMerged if the coordinator
// executed the operation itself, otherwise OutcomeQueued with the FIFO
// position. A queued session stays registered: a later Release hands it
// the lock, and Acquire reports the refreshed position on re-attempts.
func (c *Coordinator) Acquire(op Operation, sessionID string) Outcome {
	c.mu.Lock()
	outcome, _, events := c.acquireLocked(op, sessionID)
	c.mu.Unlock()

	c.publish(events)
	return outcome
}

// AcquireWait arbitrates op like Acquire but blocks a queued request
// until the lock is granted, the configured wait timeout expires, or ctx
// is cancelled. Timeout is reported as an outcome, not an error; errors
// are reserved for context cancellation.
func (c *Coordinator) AcquireWait(ctx context.Context, op Operation, sessionID string) (Outcome, error) {
	c.mu.Lock()
	outcome, w, events := c.acquireLocked(op, sessionID)
	c.mu.Unlock()
	c.publish(events)

	if outcome.Kind != OutcomeQueued {
		return outcome, nil
	}

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case <-w.grant:
		c.mu.RLock()
		granted := w.granted
		c.mu.RUnlock()
		if granted {
			return Outcome{Kind: OutcomeAcquired}, nil
		}
		// Purged from the queue, most likely by ReleaseAll during
		// cancellation of this session.
		return Outcome{
			Kind:    OutcomeTimeout,
			Holder:  outcome.Holder,
			Message: fmt.Sprintf("wait for lock on %s abandoned", op.Path),
		}, nil

	case <-timer.C:
		c.mu.Lock()
		if w.granted {
			// Grant raced the timer; the session holds the lock.
			c.mu.Unlock()
			return Outcome{Kind: OutcomeAcquired}, nil
		}
		holder := c.removeWaiterLocked(op.Path, w)
		var heldFor time.Duration
		if l, ok := c.locks[op.Path]; ok {
			heldFor = time.Since(l.acquiredAt).Round(time.Second)
		}
		c.mu.Unlock()

		c.logger.Info("lock wait timed out",
			"path", op.Path, "session", sessionID, "holder", holder, "held_for", heldFor)
		return Outcome{
			Kind:    OutcomeTimeout,
			Holder:  holder,
			Message: fmt.Sprintf("timed out after %s waiting for lock on %s held by %s for %s", c.waitTimeout, op.Path, holder, heldFor),
		}, nil

	case <-ctx.Done():
		c.mu.Lock()
		var released []event.Event
		if w.granted {
			// Granted just as the caller cancelled; pass the lock on
			// rather than orphaning it.
			released = c.releaseLocked(op.Path, sessionID)
		} else {
			c.removeWaiterLocked(op.Path, w)
		}
		c.mu.Unlock()

		c.publish(released)
		return Outcome{}, ctx.Err()
	}
}

// acquireLocked makes the arbitration decision while the write lock is
// held. It returns the outcome, the registered waiter for queued
// requests, and events to publish after unlocking.
func (c *Coordinator) acquireLocked(op Operation, sessionID string) (Outcome, *waiter, []event.Event) {
	l, ok := c.locks[op.Path]
	if !ok {
		c.locks[op.Path] = &lock{
			holder:     sessionID,
			op:         op,
			acquiredAt: time.Now(),
		}
		return Outcome{Kind: OutcomeAcquired}, nil,
			[]event.Event{event.NewLockAcquiredEvent(sessionID, op.Path, false)}
	}

	// Re-acquire by the current holder always succeeds; the declared
	// operation is refreshed so merge decisions see the latest range.
	if l.holder == sessionID {
		l.op = op
		return Outcome{Kind: OutcomeAcquired}, nil, nil
	}

	if c.mergeable(l.op, op) {
		result, err := applyInsert(op)
		if err == nil {
			c.logger.Info("merged independent operation",
				"path", op.Path, "session", sessionID, "holder", l.holder,
				"inserted_at", result.InsertedAt, "lines", result.LineCount)
			return Outcome{Kind: OutcomeMerged, Merge: &result}, nil,
				[]event.Event{event.NewLockAcquiredEvent(sessionID, op.Path, true)}
		}
		// A failed merge falls back to queueing so the operation is
		// never lost.
		c.logger.Warn("merge failed, queueing instead",
			"path", op.Path, "session", sessionID, "error", err)
	}

	// A session already in the queue keeps its position; only the
	// declared operation is refreshed.
	for i, qw := range l.queue {
		if qw.sessionID == sessionID {
			qw.op = op
			return Outcome{Kind: OutcomeQueued, Position: i + 1, Holder: l.holder}, qw, nil
		}
	}

	w := &waiter{
		sessionID: sessionID,
		op:        op,
		grant:     make(chan struct{}),
	}
	l.queue = append(l.queue, w)
	position := len(l.queue)

	return Outcome{Kind: OutcomeQueued, Position: position, Holder: l.holder}, w,
		[]event.Event{event.NewLockQueuedEvent(sessionID, op.Path, l.holder, position)}
}

// Release frees the lock on path if the session holds it and hands it to
// the next queued waiter, if any. Releasing a path the session does not
// hold is a no-op.
func (c *Coordinator) Release(path, sessionID string) {
	c.mu.Lock()
	events := c.releaseLocked(path, sessionID)
	c.mu.Unlock()

	c.publish(events)
}

// releaseLocked frees a held lock while the write lock is held and
// returns events to publish after unlocking. The front of the FIFO queue
// becomes the new holder and its grant channel is closed.
func (c *Coordinator) releaseLocked(path, sessionID string) []event.Event {
	l, ok := c.locks[path]
	if !ok || l.holder != sessionID {
		return nil
	}

	events := []event.Event{event.NewLockReleasedEvent(sessionID, path)}

	if len(l.queue) == 0 {
		delete(c.locks, path)
		return events
	}

	next := l.queue[0]
	l.queue = l.queue[1:]
	l.holder = next.sessionID
	l.op = next.op
	l.acquiredAt = time.Now()
	next.granted = true
	close(next.grant)

	return append(events, event.NewLockAcquiredEvent(next.sessionID, path, false))
}

// ReleaseAll frees every lock held by the session and purges its queued
// waiters. Called on cancellation so a dead session cannot orphan locks
// or linger in wait queues.
func (c *Coordinator) ReleaseAll(sessionID string) {
	c.mu.Lock()

	var held []string
	for path, l := range c.locks {
		if l.holder == sessionID {
			held = append(held, path)
		}
	}
	// Sort for deterministic release order.
	sort.Strings(held)

	var events []event.Event
	for _, path := range held {
		events = append(events, c.releaseLocked(path, sessionID)...)
	}

	for _, l := range c.locks {
		for i := 0; i < len(l.queue); {
			if l.queue[i].sessionID != sessionID {
				i++
				continue
			}
			w := l.queue[i]
			l.queue = slices.Delete(l.queue, i, i+1)
			close(w.grant)
		}
	}

	c.mu.Unlock()
	c.publish(events)
}

// removeWaiterLocked drops w from its path's queue and returns the
// current holder for diagnostics. Removal has no side effects on the
// holder or on other waiters. A waiter that was already granted or
// purged is left alone.
func (c *Coordinator) removeWaiterLocked(path string, w *waiter) string {
	l, ok := c.locks[path]
	if !ok {
		return ""
	}
	for i, qw := range l.queue {
		if qw == w {
			l.queue = slices.Delete(l.queue, i, i+1)
			break
		}
	}
	return l.holder
}

// Holder returns the session holding the lock on path and true, or
// ("", false) when the path is unlocked.
func (c *Coordinator) Holder(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.locks[path]
	if !ok {
		return "", false
	}
	return l.holder, true
}

// HeldPaths returns all paths locked by the session, sorted for
// deterministic output.
func (c *Coordinator) HeldPaths(sessionID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var paths []string
	for path, l := range c.locks {
		if l.holder == sessionID {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// QueueLength returns the number of sessions waiting on path.
func (c *Coordinator) QueueLength(path string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.locks[path]
	if !ok {
		return 0
	}
	return len(l.queue)
}

// mergeable reports whether pending can execute immediately despite held
// being in flight. Only inserts are executed on another session's
// behalf: an append lands after any bounded edit, and a bounded insert
// merges when its line falls outside the held range. Whole-file
// operations on either side block merging, as do two appends, whose
// relative order matters.
func (c *Coordinator) mergeable(held, pending Operation) bool {
	if !c.merge || pending.Type != OpInsert {
		return false
	}

	heldStart, heldEnd, bounded := held.span()
	if !bounded {
		return false
	}
	if pending.isAppend() {
		return true
	}

	line := pending.StartLine
	return line < heldStart || line > heldEnd
}

// applyInsert executes an insert operation directly, writing the target
// file. Used for merged operations.
func applyInsert(op Operation) (MergeResult, error) {
	data, err := os.ReadFile(op.Path)
	if err != nil {
		return MergeResult{}, fmt.Errorf("read %s: %w", op.Path, err)
	}

	lines := strings.Split(string(data), "\n")

	// A trailing newline leaves an empty final element; inserts land
	// before it so the file keeps its terminating newline.
	n := len(lines)
	if n > 0 && lines[n-1] == "" {
		n--
	}

	idx := n // append position
	if !op.isAppend() {
		idx = op.StartLine - 1
		if idx > n {
			idx = n
		}
	}

	lines = slices.Insert(lines, idx, op.Lines...)
	out := strings.Join(lines, "\n")

	if err := os.WriteFile(op.Path, []byte(out), 0o644); err != nil {
		return MergeResult{}, fmt.Errorf("write %s: %w", op.Path, err)
	}

	return MergeResult{
		Path:       op.Path,
		InsertedAt: idx + 1,
		LineCount:  len(op.Lines),
	}, nil
}

// publish sends events to the bus, if one is configured. Must be called
// outside the coordinator's mutex: subscribers may call back into read
// methods like Holder.
func (c *Coordinator) publish(events []event.Event) {
	if c.bus == nil {
		return
	}
	for _, e := range events {
		c.bus.Publish(e)
	}
}
