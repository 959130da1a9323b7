// Package contextlog is the working memory of one agent run: an ordered,
// append-only sequence of short text records fed into every subsequent
// model prompt. Records are appended in strict execution order and are
// never reordered. The only removal path is compaction, which replaces a
// span of older entries with a single summary record (see the window
// manager for when that happens).
package contextlog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry is a single context log record.
type Entry struct {
	// Text is the record content, including its kind prefix
	// ("RAN:", "OUTPUT:", "EXIT_CODE:", "TOOL:", "RESULT:", ...).
	Text string `json:"text"`

	// Timestamp records when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Summary is true for entries produced by compaction.
	Summary bool `json:"summary,omitempty"`
}

// Log is an append-only record log. All methods are safe for concurrent
// use, though within one run entries always arrive from a single loop.
type Log struct {
	mu          sync.Mutex
	entries     []Entry
	compactions int
	compactedAt time.Time
}

// New creates an empty Log.
func New() *Log {
	return &Log{}
}

// FromEntries restores a Log from persisted entries, preserving order.
func FromEntries(entries []Entry) *Log {
	l := &Log{entries: make([]Entry, len(entries))}
	copy(l.entries, entries)
	return l
}

// Append adds a raw record to the end of the log.
func (l *Log) Append(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Text: text, Timestamp: time.Now()})
}

// Ran records an executed shell command.
func (l *Log) Ran(command string) {
	l.Append("RAN: " + command)
}

// Output records command output. The caller is responsible for capping
// oversized output before recording it.
func (l *Log) Output(output string) {
	l.Append("OUTPUT: " + output)
}

// ExitCode records a command's exit code.
func (l *Log) ExitCode(code int) {
	l.Append(fmt.Sprintf("EXIT_CODE: %d", code))
}

// Tool records a dispatched tool call.
func (l *Log) Tool(name, detail string) {
	if detail == "" {
		l.Append("TOOL: " + name)
		return
	}
	l.Append("TOOL: " + name + " " + detail)
}

// Result records a tool call's outcome.
func (l *Log) Result(text string) {
	l.Append("RESULT: " + text)
}

// Feedback records user feedback drained from the pending queue.
func (l *Log) Feedback(text string) {
	l.Append("USER FEEDBACK: " + text)
}

// Adjustment records a strategy change suggested by reflection or
// stuck recovery.
func (l *Log) Adjustment(text string) {
	l.Append("STRATEGY ADJUSTMENT: " + text)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Chars returns the total character count across all entry texts,
// used by the window manager for token estimation.
func (l *Log) Chars() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, e := range l.entries {
		total += len(e.Text)
	}
	return total
}

// Entries returns a copy of all entries in order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns copies of the last n entries in order. If the log has
// fewer than n entries, all of them are returned.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Text joins all entry texts with newlines, in order. This is the form
// fed into prompts.
func (l *Log) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	for i, e := range l.entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// Compact replaces every entry except the last keepRecent with a single
// summary record placed at the front, preserving the order of the kept
// tail. Returns the number of entries removed. If the log has keepRecent
// or fewer entries there is nothing to compact and Compact is a no-op.
func (l *Log) Compact(summary string, keepRecent int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(l.entries) <= keepRecent {
		return 0
	}

	removed := len(l.entries) - keepRecent
	kept := make([]Entry, 0, keepRecent+1)
	kept = append(kept, Entry{
		Text:      "SUMMARY: " + summary,
		Timestamp: time.Now(),
		Summary:   true,
	})
	kept = append(kept, l.entries[removed:]...)
	l.entries = kept

	l.compactions++
	l.compactedAt = time.Now()
	return removed
}

// Compactions returns how many times the log has been compacted.
func (l *Log) Compactions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compactions
}

// LastCompaction returns when the log was last compacted, or the zero
// time if it never was.
func (l *Log) LastCompaction() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compactedAt
}
