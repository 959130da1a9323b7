// Package checklist tracks per-item progress for one agent run's plan.
// A checklist is created once after planning, mutated in place as tool
// and command results arrive, and discarded at run end. It is a pure
// state container: it emits no events and makes no decisions.
package checklist

import (
	"sync"
)

// Status represents the current state of a checklist item.
type Status string

const (
	// StatusPending indicates the item has not been started.
	StatusPending Status = "pending"

	// StatusInProgress indicates the item's step is being executed.
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the item's step finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the item's step failed. Failed items still
	// count as unresolved: the run may retry or route around them.
	StatusFailed Status = "failed"

	// StatusSkipped indicates the item was deliberately not executed.
	StatusSkipped Status = "skipped"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsResolved returns true if the status counts toward checklist
// completion. Only Completed and Skipped items are resolved.
func (s Status) IsResolved() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// Item is a single entry in a run's checklist. IDs are 1-based and
// stable for the life of the run.
type Item struct {
	ID               int    `json:"id"`
	Description      string `json:"description"`
	Status           Status `json:"status"`
	VerificationNote string `json:"verification_note,omitempty"`
}

// Snapshot is the serializable value form of a checklist, used for
// persistence and for handing read-only copies to observers.
type Snapshot struct {
	Goal  string `json:"goal"`
	Items []Item `json:"items"`
}

// Checklist owns an ordered sequence of items plus the run's goal.
// All methods are safe for concurrent use via an internal mutex.
type Checklist struct {
	mu    sync.Mutex
	goal  string
	items []*Item
}

// New creates a Checklist for the given goal with one pending item per
// step, assigning 1-based IDs in order.
func New(goal string, steps []string) *Checklist {
	items := make([]*Item, 0, len(steps))
	for i, step := range steps {
		items = append(items, &Item{
			ID:          i + 1,
			Description: step,
			Status:      StatusPending,
		})
	}
	return &Checklist{goal: goal, items: items}
}

// FromSnapshot restores a Checklist from its serialized form.
// Items keep the IDs and statuses they were saved with.
func FromSnapshot(s Snapshot) *Checklist {
	items := make([]*Item, 0, len(s.Items))
	for i := range s.Items {
		item := s.Items[i]
		if item.Status == "" {
			item.Status = StatusPending
		}
		items = append(items, &item)
	}
	return &Checklist{goal: s.Goal, items: items}
}

// Goal returns the run's goal string.
func (c *Checklist) Goal() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goal
}

// Len returns the number of items.
func (c *Checklist) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Item returns a copy of the item with the given ID.
func (c *Checklist) Item(id int) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item := c.find(id); item != nil {
		return *item, true
	}
	return Item{}, false
}

// Items returns copies of all items in order.
func (c *Checklist) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, *item)
	}
	return out
}

// MarkInProgress transitions the item to in_progress. Unknown IDs are
// a no-op, not an error; the return value reports whether the item was
// found and updated.
func (c *Checklist) MarkInProgress(id int) bool {
	return c.set(id, StatusInProgress, "")
}

// MarkCompleted transitions the item to completed, recording an
// optional verification note. Unknown IDs are a no-op.
func (c *Checklist) MarkCompleted(id int, note string) bool {
	return c.set(id, StatusCompleted, note)
}

// MarkFailed transitions the item to failed, recording an optional
// note describing the failure. Unknown IDs are a no-op.
func (c *Checklist) MarkFailed(id int, note string) bool {
	return c.set(id, StatusFailed, note)
}

// MarkSkipped transitions the item to skipped. Unknown IDs are a no-op.
func (c *Checklist) MarkSkipped(id int, note string) bool {
	return c.set(id, StatusSkipped, note)
}

func (c *Checklist) set(id int, status Status, note string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.find(id)
	if item == nil {
		return false
	}
	item.Status = status
	if note != "" {
		item.VerificationNote = note
	}
	return true
}

// find returns the item with the given ID, or nil. Caller holds c.mu.
func (c *Checklist) find(id int) *Item {
	for _, item := range c.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// CompletedCount returns the number of resolved (completed or skipped)
// items.
func (c *Checklist) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, item := range c.items {
		if item.Status.IsResolved() {
			count++
		}
	}
	return count
}

// ProgressPercent returns resolved items as a percentage of the total.
// An empty checklist reports 100: there is nothing left to do.
func (c *Checklist) ProgressPercent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return 100
	}
	resolved := 0
	for _, item := range c.items {
		if item.Status.IsResolved() {
			resolved++
		}
	}
	return float64(resolved) / float64(len(c.items)) * 100
}

// IsComplete returns true iff every item is completed or skipped.
// Holds vacuously for an empty checklist.
func (c *Checklist) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if !item.Status.IsResolved() {
			return false
		}
	}
	return true
}

// Remaining returns copies of all unresolved items (pending,
// in_progress, or failed), in order.
func (c *Checklist) Remaining() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, 0)
	for _, item := range c.items {
		if !item.Status.IsResolved() {
			out = append(out, *item)
		}
	}
	return out
}

// ForceCompleteRemaining marks every unresolved item completed with the
// given note and returns the IDs that changed, in order. Used to close
// out the checklist when the run finishes.
func (c *Checklist) ForceCompleteRemaining(note string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := make([]int, 0)
	for _, item := range c.items {
		if item.Status.IsResolved() {
			continue
		}
		item.Status = StatusCompleted
		if note != "" {
			item.VerificationNote = note
		}
		changed = append(changed, item.ID)
	}
	return changed
}

// Snapshot returns the serializable value form of the checklist.
func (c *Checklist) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, *item)
	}
	return Snapshot{Goal: c.goal, Items: items}
}
