// Package stuck detects command loops: an agent re-running near-identical
// shell commands without making progress. Detection is a pure string
// heuristic over recent command history; the orchestrator asks the model
// to confirm before acting on it.
package stuck

import (
	"sync"
	"unicode/utf8"
)

// DefaultThreshold is the prefix-similarity ratio above which two
// commands count as repeats. The heuristic is deliberately coarse
// (string prefix, not semantics) and the threshold is tuned for it.
const DefaultThreshold = 0.7

// Detector keeps a sliding window of the most recent shell commands and
// flags the run as possibly stuck when every command in a full window is
// prefix-similar to the oldest one. It is safe for concurrent use.
//
// A window of 0 disables detection entirely.
type Detector struct {
	mu        sync.Mutex
	window    int
	threshold float64
	commands  []string
}

// NewDetector creates a Detector comparing the last window commands
// against the given similarity threshold.
func NewDetector(window int, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{window: window, threshold: threshold}
}

// Record appends a command to the history, evicting the oldest entry
// once the window is full.
func (d *Detector) Record(command string) {
	if d.window <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands = append(d.commands, command)
	if len(d.commands) > d.window {
		d.commands = d.commands[len(d.commands)-d.window:]
	}
}

// Ready reports whether enough commands have been recorded to judge.
func (d *Detector) Ready() bool {
	if d.window <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.commands) >= d.window
}

// PossiblyStuck reports whether every command in a full window exceeds
// the similarity threshold against the oldest command. Returns false
// until the window is full.
func (d *Detector) PossiblyStuck() bool {
	if d.window <= 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.commands) < d.window {
		return false
	}
	oldest := d.commands[0]
	for _, cmd := range d.commands[1:] {
		if PrefixSimilarity(oldest, cmd) <= d.threshold {
			return false
		}
	}
	return true
}

// MinSimilarity returns the lowest similarity between the oldest command
// and the rest of the window. Returns 0 when fewer than two commands
// have been recorded. Useful for observability when the detector fires.
func (d *Detector) MinSimilarity() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.commands) < 2 {
		return 0
	}
	oldest := d.commands[0]
	min := 1.0
	for _, cmd := range d.commands[1:] {
		if sim := PrefixSimilarity(oldest, cmd); sim < min {
			min = sim
		}
	}
	return min
}

// Commands returns a copy of the current window, oldest first. The
// orchestrator includes these in the "are we actually stuck" prompt.
func (d *Detector) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// Clear empties the window. Called after a "new approach" strategy
// adjustment so the fresh approach is judged on its own history.
func (d *Detector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = d.commands[:0]
}

// PrefixSimilarity returns the length of the longest common prefix of a
// and b divided by the length of the longer string, in runes. Identical
// strings score 1; strings with no common prefix score 0.
func PrefixSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}

	ra := []rune(a)
	rb := []rune(b)

	common := 0
	for common < len(ra) && common < len(rb) && ra[common] == rb[common] {
		common++
	}

	longer := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > longer {
		longer = l
	}
	if longer == 0 {
		return 1
	}
	return float64(common) / float64(longer)
}
