// Package phase models the execution phases of one agent run.
// It defines the phase state machine, the table of expected transitions,
// and a Tracker that records transitions and notifies observers.
//
// Transitions outside the table are logged but still applied: the table
// documents the expected flow, it does not gate it. Callers that need a
// hard guarantee should check CanTransition before calling Set.
package phase

import (
	"fmt"
	"slices"
)

// Kind identifies a discrete execution phase.
type Kind string

const (
	// KindIdle means no run is in progress.
	KindIdle Kind = "idle"

	// KindStarting is the brief setup window before the first model call.
	KindStarting Kind = "starting"

	// KindDeciding is the initial triage call: does this request need a
	// direct reply or a full agent run?
	KindDeciding Kind = "deciding"

	// KindSettingGoal converts the user request into one concrete goal string.
	KindSettingGoal Kind = "setting_goal"

	// KindPlanning requests a step plan and builds the checklist from it.
	KindPlanning Kind = "planning"

	// KindExecuting is the main step loop. The phase carries the current
	// step number and the total planned steps.
	KindExecuting Kind = "executing"

	// KindReflecting is a periodic mid-run review of progress and strategy.
	KindReflecting Kind = "reflecting"

	// KindVerifying runs read-only checks after the model believes the
	// goal is done.
	KindVerifying Kind = "verifying"

	// KindSummarizing generates the final natural-language summary.
	KindSummarizing Kind = "summarizing"

	// KindWaitingForApproval means the run is suspended on a human
	// approval decision for a gated command or file change.
	KindWaitingForApproval Kind = "waiting_for_approval"

	// KindWaitingForFileLock means the run is queued on another session's
	// file lock. The phase carries the contended file path.
	KindWaitingForFileLock Kind = "waiting_for_file_lock"

	// KindCancelled is the terminal phase after user cancellation.
	KindCancelled Kind = "cancelled"

	// KindCompleted is the terminal phase after a run finishes, whether
	// the goal was met or the run was stopped by a fail-safe.
	KindCompleted Kind = "completed"
)

// AllKinds returns all defined phase kinds in lifecycle order.
func AllKinds() []Kind {
	return []Kind{
		KindIdle,
		KindStarting,
		KindDeciding,
		KindSettingGoal,
		KindPlanning,
		KindExecuting,
		KindReflecting,
		KindVerifying,
		KindSummarizing,
		KindWaitingForApproval,
		KindWaitingForFileLock,
		KindCancelled,
		KindCompleted,
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Phase is a tagged execution phase. Step and Total are meaningful only
// for KindExecuting; File only for KindWaitingForFileLock. All other
// kinds carry no payload.
type Phase struct {
	Kind  Kind   `json:"kind"`
	Step  int    `json:"step,omitempty"`
	Total int    `json:"total,omitempty"`
	File  string `json:"file,omitempty"`
}

// Idle returns the idle phase.
func Idle() Phase { return Phase{Kind: KindIdle} }

// Starting returns the starting phase.
func Starting() Phase { return Phase{Kind: KindStarting} }

// Deciding returns the deciding phase.
func Deciding() Phase { return Phase{Kind: KindDeciding} }

// SettingGoal returns the goal-setting phase.
func SettingGoal() Phase { return Phase{Kind: KindSettingGoal} }

// Planning returns the planning phase.
func Planning() Phase { return Phase{Kind: KindPlanning} }

// Executing returns the executing phase for the given step out of total.
// Steps are 1-based; total of 0 means the run is adaptive (planless).
func Executing(step, total int) Phase {
	return Phase{Kind: KindExecuting, Step: step, Total: total}
}

// Reflecting returns the reflecting phase.
func Reflecting() Phase { return Phase{Kind: KindReflecting} }

// Verifying returns the verifying phase.
func Verifying() Phase { return Phase{Kind: KindVerifying} }

// Summarizing returns the summarizing phase.
func Summarizing() Phase { return Phase{Kind: KindSummarizing} }

// WaitingForApproval returns the approval-wait phase.
func WaitingForApproval() Phase { return Phase{Kind: KindWaitingForApproval} }

// WaitingForFileLock returns the lock-wait phase for the given file.
func WaitingForFileLock(file string) Phase {
	return Phase{Kind: KindWaitingForFileLock, File: file}
}

// Cancelled returns the cancelled terminal phase.
func Cancelled() Phase { return Phase{Kind: KindCancelled} }

// Completed returns the completed terminal phase.
func Completed() Phase { return Phase{Kind: KindCompleted} }

// IsActive reports whether a run is in progress. Every phase except
// idle, cancelled, and completed counts as active.
func (p Phase) IsActive() bool {
	switch p.Kind {
	case KindIdle, KindCancelled, KindCompleted:
		return false
	default:
		return true
	}
}

// IsTerminal reports whether the phase ends the run.
func (p Phase) IsTerminal() bool {
	return p.Kind == KindCancelled || p.Kind == KindCompleted
}

// String returns a human-readable rendering of the phase, including the
// step counter or contended file where the kind carries one.
func (p Phase) String() string {
	switch p.Kind {
	case KindExecuting:
		if p.Total > 0 {
			return fmt.Sprintf("executing (%d/%d)", p.Step, p.Total)
		}
		if p.Step > 0 {
			return fmt.Sprintf("executing (step %d)", p.Step)
		}
		return "executing"
	case KindWaitingForFileLock:
		if p.File != "" {
			return "waiting for lock on " + p.File
		}
		return string(KindWaitingForFileLock)
	default:
		return string(p.Kind)
	}
}

// ValidTransitions defines which phase transitions are expected.
// This table is documentation of the normal flow, not an enforced
// invariant: the Tracker applies out-of-table transitions after logging
// them, so a misbehaving caller degrades observably instead of wedging
// the run.
var ValidTransitions = map[Kind][]Kind{
	// From Idle: a run begins
	KindIdle: {
		KindStarting,
	},

	// From Starting: triage the request
	KindStarting: {
		KindDeciding,
		KindCancelled,
	},

	// From Deciding: RUN proceeds to goal setting; RESPOND streams a
	// direct reply and finishes without entering the step loop
	KindDeciding: {
		KindSettingGoal, // RUN: continue into the agent loop
		KindCompleted,   // RESPOND: direct reply, run over
		KindCancelled,
	},

	// From SettingGoal: plan when policy allows, otherwise go adaptive
	KindSettingGoal: {
		KindPlanning,  // policy-gated planning pass
		KindExecuting, // adaptive (planless) mode
		KindCancelled,
	},

	// From Planning: execution starts whether or not planning succeeded
	// (a failed plan falls back to adaptive mode)
	KindPlanning: {
		KindExecuting,
		KindCancelled,
	},

	// From Executing: step advance, periodic reflection, suspensions,
	// or the done path
	KindExecuting: {
		KindExecuting,          // next step
		KindReflecting,         // periodic reflection
		KindWaitingForApproval, // gated command awaiting approval
		KindWaitingForFileLock, // queued on another session's lock
		KindVerifying,          // model reported done
		KindSummarizing,        // fail-safe stop: summarize what happened
		KindCancelled,
	},

	// From Reflecting: back to the loop, or straight to verification if
	// reflection concluded the goal is already met
	KindReflecting: {
		KindExecuting,
		KindVerifying,
		KindCancelled,
	},

	// From Verifying: a failed check resumes the loop, success summarizes
	KindVerifying: {
		KindExecuting,
		KindSummarizing,
		KindCancelled,
	},

	// From Summarizing: the run completes
	KindSummarizing: {
		KindCompleted,
		KindCancelled,
	},

	// From WaitingForApproval: resume on any decision, or summarize if
	// the rejection ends the run
	KindWaitingForApproval: {
		KindExecuting,
		KindSummarizing,
		KindCancelled,
	},

	// From WaitingForFileLock: resume once granted or timed out
	KindWaitingForFileLock: {
		KindExecuting,
		KindCancelled,
	},

	// Terminal states: only a fresh run leaves them
	KindCancelled: {
		KindStarting,
	},
	KindCompleted: {
		KindStarting,
	},
}

// CanTransition checks whether a transition from one kind to another is
// expected according to the ValidTransitions table.
func CanTransition(from, to Kind) bool {
	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(validTargets, to)
}
