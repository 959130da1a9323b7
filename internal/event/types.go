// Package event defines event types for decoupling components in termai.
// These events enable communication between the run engine, TUI, and other
// components without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "run.started", "lock.queued")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when an agent run begins execution.
type RunStartedEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	RunID     string // Unique identifier for the run
	Prompt    string // User prompt that started the run
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(sessionID, runID, prompt string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent("run.started"),
		SessionID: sessionID,
		RunID:     runID,
		Prompt:    prompt,
	}
}

// RunCompletedEvent is emitted when an agent run finishes, for any reason.
type RunCompletedEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	RunID     string // Unique identifier for the run
	Success   bool   // Whether the run completed its goal
	Summary   string // Final summary shown to the user
	Reason    string // Reason for stopping (e.g., "completed", "cancelled", "stuck")
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(sessionID, runID string, success bool, summary, reason string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent("run.completed"),
		SessionID: sessionID,
		RunID:     runID,
		Success:   success,
		Summary:   summary,
		Reason:    reason,
	}
}

// ReplyChunkEvent carries one fragment of a streamed direct reply. The
// fragments arrive in order; the full reply is also recorded in the
// run summary when the stream ends.
type ReplyChunkEvent struct {
	baseEvent
	SessionID string // Session the reply belongs to
	Text      string // Reply fragment
}

// NewReplyChunkEvent creates a ReplyChunkEvent.
func NewReplyChunkEvent(sessionID, text string) ReplyChunkEvent {
	return ReplyChunkEvent{
		baseEvent: newBaseEvent("reply.chunk"),
		SessionID: sessionID,
		Text:      text,
	}
}

// PhaseChangedEvent is emitted when the run's execution phase changes.
type PhaseChangedEvent struct {
	baseEvent
	SessionID     string // Session the run belongs to
	PreviousPhase string // Previous phase label (empty on the first transition)
	CurrentPhase  string // New current phase label
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(sessionID, previousPhase, currentPhase string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent:     newBaseEvent("phase.changed"),
		SessionID:     sessionID,
		PreviousPhase: previousPhase,
		CurrentPhase:  currentPhase,
	}
}

// GoalSetEvent is emitted when the run establishes its goal.
type GoalSetEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	Goal      string // One-sentence restatement of the user's intent
}

// NewGoalSetEvent creates a GoalSetEvent.
func NewGoalSetEvent(sessionID, goal string) GoalSetEvent {
	return GoalSetEvent{
		baseEvent: newBaseEvent("goal.set"),
		SessionID: sessionID,
		Goal:      goal,
	}
}

// PlanCreatedEvent is emitted when the run produces a task plan.
type PlanCreatedEvent struct {
	baseEvent
	SessionID string   // Session the run belongs to
	Steps     []string // Plan step descriptions, in order
}

// NewPlanCreatedEvent creates a PlanCreatedEvent.
func NewPlanCreatedEvent(sessionID string, steps []string) PlanCreatedEvent {
	return PlanCreatedEvent{
		baseEvent: newBaseEvent("plan.created"),
		SessionID: sessionID,
		Steps:     steps,
	}
}

// -----------------------------------------------------------------------------
// Checklist Events
// -----------------------------------------------------------------------------

// ChecklistUpdatedEvent is emitted when a checklist item changes status.
type ChecklistUpdatedEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	ItemID    int    // Stable 1-based item identifier
	Status    string // New item status label
	Remaining int    // Items not yet completed or skipped
	Total     int    // Total items in the checklist
}

// NewChecklistUpdatedEvent creates a ChecklistUpdatedEvent.
func NewChecklistUpdatedEvent(sessionID string, itemID int, status string, remaining, total int) ChecklistUpdatedEvent {
	return ChecklistUpdatedEvent{
		baseEvent: newBaseEvent("checklist.updated"),
		SessionID: sessionID,
		ItemID:    itemID,
		Status:    status,
		Remaining: remaining,
		Total:     total,
	}
}

// -----------------------------------------------------------------------------
// Tool and Shell Events
// -----------------------------------------------------------------------------

// ToolCompletedEvent is emitted when a tool invocation finishes.
type ToolCompletedEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	Tool      string // Tool name (e.g., "write_file")
	Path      string // File path the tool operated on, if any
	Success   bool   // Whether the invocation succeeded
	Detail    string // Short result or error description
}

// NewToolCompletedEvent creates a ToolCompletedEvent.
func NewToolCompletedEvent(sessionID, tool, path string, success bool, detail string) ToolCompletedEvent {
	return ToolCompletedEvent{
		baseEvent: newBaseEvent("tool.completed"),
		SessionID: sessionID,
		Tool:      tool,
		Path:      path,
		Success:   success,
		Detail:    detail,
	}
}

// CommandRunEvent is emitted when a shell command finishes executing.
type CommandRunEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	Command   string // Command line that was executed
	ExitCode  int    // Process exit code
}

// NewCommandRunEvent creates a CommandRunEvent.
func NewCommandRunEvent(sessionID, command string, exitCode int) CommandRunEvent {
	return CommandRunEvent{
		baseEvent: newBaseEvent("command.run"),
		SessionID: sessionID,
		Command:   command,
		ExitCode:  exitCode,
	}
}

// FileChangedEvent is emitted when a mutating tool alters the workspace.
type FileChangedEvent struct {
	baseEvent
	SessionID string // Session the run belongs to
	Path      string // Path of the changed file
	Operation string // Change operation (e.g., "create", "edit", "delete_file")
}

// NewFileChangedEvent creates a FileChangedEvent.
func NewFileChangedEvent(sessionID, path, operation string) FileChangedEvent {
	return FileChangedEvent{
		baseEvent: newBaseEvent("file.changed"),
		SessionID: sessionID,
		Path:      path,
		Operation: operation,
	}
}

// ExternalChangeEvent is emitted when a file a run has touched or
// locked is modified outside the agent's own tools, for example by an
// editor or another process.
type ExternalChangeEvent struct {
	baseEvent
	SessionID string // Session tracking the file
	Path      string // Path of the externally modified file
}

// NewExternalChangeEvent creates an ExternalChangeEvent.
func NewExternalChangeEvent(sessionID, path string) ExternalChangeEvent {
	return ExternalChangeEvent{
		baseEvent: newBaseEvent("file.external_change"),
		SessionID: sessionID,
		Path:      path,
	}
}

// -----------------------------------------------------------------------------
// Lock Events
// -----------------------------------------------------------------------------

// LockAcquiredEvent is emitted when a session acquires a file lock.
type LockAcquiredEvent struct {
	baseEvent
	SessionID string // Session that acquired the lock
	Path      string // Locked file path
	Merged    bool   // True if the change was merged instead of exclusively granted
}

// NewLockAcquiredEvent creates a LockAcquiredEvent.
func NewLockAcquiredEvent(sessionID, path string, merged bool) LockAcquiredEvent {
	return LockAcquiredEvent{
		baseEvent: newBaseEvent("lock.acquired"),
		SessionID: sessionID,
		Path:      path,
		Merged:    merged,
	}
}

// LockQueuedEvent is emitted when a lock request joins the wait queue.
type LockQueuedEvent struct {
	baseEvent
	SessionID string // Session waiting for the lock
	Path      string // Contended file path
	Holder    string // Session currently holding the lock
	Position  int    // 1-based position in the wait queue
}

// NewLockQueuedEvent creates a LockQueuedEvent.
func NewLockQueuedEvent(sessionID, path, holder string, position int) LockQueuedEvent {
	return LockQueuedEvent{
		baseEvent: newBaseEvent("lock.queued"),
		SessionID: sessionID,
		Path:      path,
		Holder:    holder,
		Position:  position,
	}
}

// LockReleasedEvent is emitted when a session releases a file lock.
type LockReleasedEvent struct {
	baseEvent
	SessionID string // Session that released the lock
	Path      string // Released file path
}

// NewLockReleasedEvent creates a LockReleasedEvent.
func NewLockReleasedEvent(sessionID, path string) LockReleasedEvent {
	return LockReleasedEvent{
		baseEvent: newBaseEvent("lock.released"),
		SessionID: sessionID,
		Path:      path,
	}
}

// -----------------------------------------------------------------------------
// Approval Events
// -----------------------------------------------------------------------------

// ApprovalRequestedEvent is emitted when a command is held for human approval.
type ApprovalRequestedEvent struct {
	baseEvent
	RequestID string // Unique identifier for the approval request
	SessionID string // Session the run belongs to
	Command   string // Command awaiting approval
	Reason    string // Why the command needs approval
}

// NewApprovalRequestedEvent creates an ApprovalRequestedEvent.
func NewApprovalRequestedEvent(requestID, sessionID, command, reason string) ApprovalRequestedEvent {
	return ApprovalRequestedEvent{
		baseEvent: newBaseEvent("approval.requested"),
		RequestID: requestID,
		SessionID: sessionID,
		Command:   command,
		Reason:    reason,
	}
}

// ApprovalResolvedEvent is emitted when an approval request is decided.
type ApprovalResolvedEvent struct {
	baseEvent
	RequestID string // Request that was resolved
	Decision  string // Decision label (e.g., "approved", "rejected", "timeout")
	Command   string // Final command (may differ from the original if edited)
}

// NewApprovalResolvedEvent creates an ApprovalResolvedEvent.
func NewApprovalResolvedEvent(requestID, decision, command string) ApprovalResolvedEvent {
	return ApprovalResolvedEvent{
		baseEvent: newBaseEvent("approval.resolved"),
		RequestID: requestID,
		Decision:  decision,
		Command:   command,
	}
}

// -----------------------------------------------------------------------------
// Feedback Events
// -----------------------------------------------------------------------------

// FeedbackQueuedEvent is emitted when user feedback arrives mid-run.
type FeedbackQueuedEvent struct {
	baseEvent
	SessionID string // Session the feedback targets
	Pending   int    // Number of feedback messages now queued
}

// NewFeedbackQueuedEvent creates a FeedbackQueuedEvent.
func NewFeedbackQueuedEvent(sessionID string, pending int) FeedbackQueuedEvent {
	return FeedbackQueuedEvent{
		baseEvent: newBaseEvent("feedback.queued"),
		SessionID: sessionID,
		Pending:   pending,
	}
}

// -----------------------------------------------------------------------------
// Context Window Events
// -----------------------------------------------------------------------------

// ContextCompactedEvent is emitted when the context window is summarized.
type ContextCompactedEvent struct {
	baseEvent
	SessionID string  // Session the run belongs to
	Removed   int     // Entries replaced by the summary
	Kept      int     // Recent entries kept verbatim
	Usage     float64 // Window utilization before compaction (0.0-1.0)
}

// NewContextCompactedEvent creates a ContextCompactedEvent.
func NewContextCompactedEvent(sessionID string, removed, kept int, usage float64) ContextCompactedEvent {
	return ContextCompactedEvent{
		baseEvent: newBaseEvent("context.compacted"),
		SessionID: sessionID,
		Removed:   removed,
		Kept:      kept,
		Usage:     usage,
	}
}

// StuckDetectedEvent is emitted when the run appears to be repeating itself.
type StuckDetectedEvent struct {
	baseEvent
	SessionID  string  // Session the run belongs to
	Commands   int     // Number of recent commands examined
	Similarity float64 // Minimum pairwise similarity that tripped detection
}

// NewStuckDetectedEvent creates a StuckDetectedEvent.
func NewStuckDetectedEvent(sessionID string, commands int, similarity float64) StuckDetectedEvent {
	return StuckDetectedEvent{
		baseEvent:  newBaseEvent("stuck.detected"),
		SessionID:  sessionID,
		Commands:   commands,
		Similarity: similarity,
	}
}
