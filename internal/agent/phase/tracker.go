package phase

import (
	"sync"
	"time"

	"github.com/TannerBurns/termai/internal/logging"
)

// ChangeCallback is a function called after a phase transition is applied.
type ChangeCallback func(from, to Phase)

// Transition captures metadata about a single applied phase transition.
// This provides an audit trail of the run's progression.
type Transition struct {
	// From is the source phase of the transition.
	From Phase `json:"from"`

	// To is the destination phase of the transition.
	To Phase `json:"to"`

	// Timestamp records when the transition was applied.
	Timestamp time.Time `json:"timestamp"`

	// Expected is false when the transition was outside the
	// ValidTransitions table and applied anyway.
	Expected bool `json:"expected"`

	// Reason provides optional context for why the transition occurred.
	Reason string `json:"reason,omitempty"`
}

// Tracker maintains the current phase of one run, records every applied
// transition, and notifies registered callbacks. It is safe for
// concurrent use. Callbacks run outside the tracker's lock, in
// registration order, on the goroutine that called Set.
type Tracker struct {
	mu        sync.RWMutex
	current   Phase
	enteredAt time.Time
	history   []Transition
	stints    map[Kind]time.Duration
	callbacks []ChangeCallback
	logger    *logging.Logger
}

// NewTracker creates a Tracker starting in the idle phase.
// A nil logger falls back to a no-op logger.
func NewTracker(logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{
		current:   Idle(),
		enteredAt: time.Now(),
		stints:    make(map[Kind]time.Duration),
		logger:    logger,
	}
}

// Current returns the current phase.
func (t *Tracker) Current() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// IsActive reports whether the current phase counts as an in-progress run.
func (t *Tracker) IsActive() bool {
	return t.Current().IsActive()
}

// Set applies a transition to the given phase. Transitions outside the
// ValidTransitions table are logged at WARN and applied anyway.
// Re-entering the executing phase with a new step counter is a normal
// transition, not a no-op.
func (t *Tracker) Set(next Phase) {
	t.SetWithReason(next, "")
}

// SetWithReason applies a transition with an optional explanation that
// is recorded in the transition history (useful for terminal phases:
// "iteration budget exhausted", "user cancelled", etc.).
func (t *Tracker) SetWithReason(next Phase, reason string) {
	t.mu.Lock()

	from := t.current
	expected := CanTransition(from.Kind, next.Kind)
	now := time.Now()

	t.stints[from.Kind] += now.Sub(t.enteredAt)
	t.current = next
	t.enteredAt = now
	t.history = append(t.history, Transition{
		From:      from,
		To:        next,
		Timestamp: now,
		Expected:  expected,
		Reason:    reason,
	})
	callbacks := make([]ChangeCallback, len(t.callbacks))
	copy(callbacks, t.callbacks)

	t.mu.Unlock()

	if !expected {
		t.logger.Warn("invalid phase transition applied",
			"from", from.String(),
			"to", next.String(),
			"reason", reason,
		)
	} else {
		t.logger.Debug("phase transition",
			"from", from.String(),
			"to", next.String(),
		)
	}

	// Notify outside the lock so a callback can read tracker state
	// without deadlocking.
	for _, cb := range callbacks {
		cb(from, next)
	}
}

// OnChange registers a callback invoked after every applied transition.
// Multiple callbacks are called in registration order.
func (t *Tracker) OnChange(cb ChangeCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

// History returns a copy of the ordered list of applied transitions.
func (t *Tracker) History() []Transition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

// Duration returns the total time spent in the given phase kind,
// including the current stint if the run is in that phase now.
// Returns zero for kinds never entered.
func (t *Tracker) Duration(kind Kind) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d := t.stints[kind]
	if t.current.Kind == kind {
		d += time.Since(t.enteredAt)
	}
	return d
}
