package filelock

import "fmt"

// OpType identifies the kind of file mutation a session wants to perform.
type OpType string

const (
	// OpCreate creates a new file with the given lines.
	OpCreate OpType = "create"

	// OpOverwrite replaces a file's entire contents.
	OpOverwrite OpType = "overwrite"

	// OpInsert inserts lines at StartLine, or appends when StartLine <= 0.
	OpInsert OpType = "insert"

	// OpEdit replaces the lines in [StartLine, EndLine].
	OpEdit OpType = "edit"

	// OpDelete removes the lines in [StartLine, EndLine].
	OpDelete OpType = "delete"

	// OpDeleteFile removes the file entirely.
	OpDeleteFile OpType = "delete_file"
)

// Operation describes a file mutation submitted for lock arbitration.
// Line numbers are 1-based. An insert with StartLine <= 0 appends to the
// end of the file.
type Operation struct {
	Path      string   // File path the operation targets
	Type      OpType   // Kind of mutation
	StartLine int      // First affected line (1-based)
	EndLine   int      // Last affected line for edit/delete
	Lines     []string // Payload lines for create/overwrite/insert/edit
}

// span returns the 1-based line range the operation touches and whether
// that range is bounded. Whole-file operations and appends are unbounded.
func (op Operation) span() (start, end int, bounded bool) {
	switch op.Type {
	case OpInsert:
		if op.StartLine < 1 {
			return 0, 0, false // append
		}
		return op.StartLine, op.StartLine, true
	case OpEdit, OpDelete:
		if op.StartLine < 1 {
			return 0, 0, false
		}
		end = op.EndLine
		if end < op.StartLine {
			end = op.StartLine
		}
		return op.StartLine, end, true
	default:
		return 0, 0, false
	}
}

// isAppend reports whether the operation appends to the end of the file.
func (op Operation) isAppend() bool {
	return op.Type == OpInsert && op.StartLine < 1
}

// OutcomeKind classifies the result of a lock acquisition attempt.
type OutcomeKind string

const (
	// OutcomeAcquired means the session now holds the lock exclusively.
	OutcomeAcquired OutcomeKind = "acquired"

	// OutcomeMerged means the coordinator executed the operation on the
	// session's behalf; the lock remains with its current holder.
	OutcomeMerged OutcomeKind = "merged"

	// OutcomeQueued means the request joined the FIFO wait queue.
	OutcomeQueued OutcomeKind = "queued"

	// OutcomeTimeout means the bounded wait expired before a grant.
	OutcomeTimeout OutcomeKind = "timeout"
)

// Outcome is the coordinator's decision for one acquisition attempt.
type Outcome struct {
	Kind     OutcomeKind  // How the attempt resolved
	Position int          // 1-based queue position when Kind is OutcomeQueued
	Holder   string       // Session holding the lock when queued or timed out
	Merge    *MergeResult // Result of the merged operation when Kind is OutcomeMerged
	Message  string       // Human-readable detail for timeouts
}

// MergeResult describes a file operation the coordinator executed on
// behalf of a session that would otherwise have queued.
type MergeResult struct {
	Path       string // File the merged operation wrote
	InsertedAt int    // 1-based line where the insert landed
	LineCount  int    // Number of lines inserted
}

// Summary returns a one-line description of the merged operation.
func (m MergeResult) Summary() string {
	return fmt.Sprintf("inserted %d line(s) at line %d of %s", m.LineCount, m.InsertedAt, m.Path)
}
