// Package event provides a pub-sub event bus for decoupled inter-component
// communication in termai.
//
// This package enables loose coupling between the run engine, TUI, and other
// components by allowing them to communicate through events rather than direct
// method calls. Components can publish events without knowing who will receive
// them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Run Lifecycle:
//   - [RunStartedEvent]: Emitted when an agent run begins
//   - [RunCompletedEvent]: Emitted when an agent run finishes
//   - [PhaseChangedEvent]: Emitted on every execution phase transition
//   - [GoalSetEvent]: Emitted when the run establishes its goal
//   - [PlanCreatedEvent]: Emitted when the run produces a task plan
//
// Progress Events:
//   - [ChecklistUpdatedEvent]: Emitted when a checklist item changes status
//   - [ToolCompletedEvent]: Emitted when a tool invocation finishes
//   - [CommandRunEvent]: Emitted when a shell command finishes
//   - [FileChangedEvent]: Emitted when a mutating tool alters the workspace
//
// Coordination Events:
//   - [LockAcquiredEvent], [LockQueuedEvent], [LockReleasedEvent]: File lock lifecycle
//   - [ApprovalRequestedEvent], [ApprovalResolvedEvent]: Human approval handshake
//   - [FeedbackQueuedEvent]: Emitted when user feedback arrives mid-run
//
// Context Events:
//   - [ContextCompactedEvent]: Emitted when the context window is summarized
//   - [StuckDetectedEvent]: Emitted when the run appears to be repeating itself
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("phase.changed", func(e event.Event) {
//	    change := e.(event.PhaseChangedEvent)
//	    log.Printf("Phase: %s -> %s", change.PreviousPhase, change.CurrentPhase)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewRunStartedEvent("sess-1", "run-1", "create hello.txt"))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("run.completed", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - run.started, run.completed
//   - phase.changed, goal.set, plan.created
//   - checklist.updated, tool.completed, command.run, file.changed
//   - lock.acquired, lock.queued, lock.released
//   - approval.requested, approval.resolved
//   - feedback.queued, context.compacted, stuck.detected
package event
