package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/agent/phase"
	"github.com/TannerBurns/termai/internal/ai"
	"github.com/TannerBurns/termai/internal/approval"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/session"
	"github.com/TannerBurns/termai/internal/shell"
	"github.com/TannerBurns/termai/internal/tool"
	"github.com/TannerBurns/termai/internal/util"
)

// loop is the bounded step loop. Each iteration checks cancellation,
// drains feedback, runs the periodic maintenance passes, asks for one
// structured next action, and dispatches it. The loop only returns
// through a terminal path: complete, stop, fail, or cancellation.
func (e *Engine) loop(ctx context.Context) (outcome, error) {
	interval := e.cfg.Agent.ReflectionInterval
	var emptyStreak, violationStreak int

	for iteration := 1; ; iteration++ {
		if err := e.checkCancelled(ctx); err != nil {
			return e.cancelledOutcome(), err
		}
		if budget := e.cfg.Agent.MaxIterations; budget > 0 && iteration > budget {
			return e.stop(ctx,
				fmt.Sprintf("Agent stopped: no completion within %d iterations.", budget),
				apperrors.ErrIterationBudget)
		}
		e.count(func(c *session.Counters) { c.Iterations++ })

		e.drainFeedback()
		e.drainNotes()

		if interval > 0 && iteration > 1 && (iteration-1)%interval == 0 {
			e.reflect(ctx)
			if err := e.checkCancelled(ctx); err != nil {
				return e.cancelledOutcome(), err
			}
		}

		if stopped, out, err := e.checkStuck(ctx); stopped {
			return out, err
		}
		if err := e.checkCancelled(ctx); err != nil {
			return e.cancelledOutcome(), err
		}

		e.compact(ctx)

		e.setPhase(e.executingPhase())
		act, ok, err := e.nextAction(ctx)
		if err != nil {
			return e.fail("choose the next action", err)
		}
		if !ok {
			emptyStreak++
			e.count(func(c *session.Counters) { c.EmptyResponses++ })
			e.log.Result("model returned no actionable step")
			if threshold := e.cfg.Agent.EmptyResponseThreshold; threshold > 0 && emptyStreak >= threshold {
				return e.stop(ctx,
					"Agent stopped: the model produced no actionable step after repeated attempts.",
					apperrors.ErrAgentStopped)
			}
			continue
		}
		emptyStreak = 0
		if act.Step != "" {
			e.log.Append("STEP: " + act.Step)
		}

		switch {
		case act.Done:
			e.verify(ctx)
			if err := e.checkCancelled(ctx); err != nil {
				return e.cancelledOutcome(), err
			}
			return e.complete(ctx)

		case act.Tool != "":
			violation, res := e.dispatchTool(ctx, act)
			if violation {
				violationStreak++
				e.count(func(c *session.Counters) { c.UnknownTools++ })
				if threshold := e.cfg.Agent.UnknownToolThreshold; threshold > 0 && violationStreak >= threshold {
					return e.stop(ctx,
						"Agent stopped: repeated requests for unavailable tools.",
						apperrors.ErrUnknownTool)
				}
				continue
			}
			violationStreak = 0
			if res.Success && (res.FileChange != nil || e.checklistDone()) {
				if done, err := e.finishIfDone(ctx); done {
					return e.complete(ctx)
				} else if err != nil {
					return e.cancelledOutcome(), err
				}
			}

		case act.Command != "":
			violation, success, err := e.runRawCommand(ctx, act)
			if err != nil {
				return e.fail("run the command", err)
			}
			if violation {
				violationStreak++
				e.count(func(c *session.Counters) { c.UnknownTools++ })
				if threshold := e.cfg.Agent.UnknownToolThreshold; threshold > 0 && violationStreak >= threshold {
					return e.stop(ctx,
						"Agent stopped: repeated requests for unavailable tools.",
						apperrors.ErrToolNotAllowed)
				}
				continue
			}
			violationStreak = 0
			if success {
				if done, err := e.finishIfDone(ctx); done {
					return e.complete(ctx)
				} else if err != nil {
					return e.cancelledOutcome(), err
				}
			}
		}
	}
}

// finishIfDone runs the done-assessment and, when the goal is met, the
// verification pass. A non-nil error is always cancellation.
func (e *Engine) finishIfDone(ctx context.Context) (bool, error) {
	if !e.assessDone(ctx) {
		return false, e.checkCancelled(ctx)
	}
	e.verify(ctx)
	if err := e.checkCancelled(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// nextAction makes the structured next-action call. ok is false when
// the response survived the retry budget without becoming actionable.
func (e *Engine) nextAction(ctx context.Context) (action, bool, error) {
	defs := e.registry.Definitions(e.sess.Mode())
	user := nextActionPrompt(e.goalSnapshot(), e.list, e.log, defs)
	text, err := e.structured(ctx, user, func(resp string) bool {
		_, ok := parseAction(resp)
		return ok
	})
	if err != nil {
		return action{}, false, err
	}
	act, ok := parseAction(text)
	return act, ok, nil
}

// dispatchTool executes one tool action through the registry. The
// returned violation flag marks unknown or mode-blocked tools, which
// count toward the stop threshold instead of reaching the registry.
func (e *Engine) dispatchTool(ctx context.Context, act action) (bool, tool.Result) {
	mode := e.sess.Mode()
	known := tool.ModeNavigator.Allows(act.Tool) || tool.ModePilot.Allows(act.Tool)
	if !known {
		e.log.Result(fmt.Sprintf("unknown tool %q", act.Tool))
		e.logger.Warn("unknown tool requested", "tool", act.Tool)
		return true, tool.Result{}
	}
	if !e.registry.IsToolAvailable(act.Tool, mode) {
		e.log.Result(fmt.Sprintf("tool %q is not available in %s mode", act.Tool, mode))
		e.logger.Warn("tool blocked by mode", "tool", act.Tool, "mode", string(mode))
		return true, tool.Result{}
	}

	itemID := e.targetItem(act)
	if itemID > 0 && e.list.MarkInProgress(itemID) {
		e.publishChecklist(itemID, checklist.StatusInProgress)
	}

	e.count(func(c *session.Counters) { c.ToolCalls++ })
	e.log.Tool(act.Tool, argsDigest(act.Args))
	res := e.registry.Execute(ctx, mode, act.Tool, act.Args)

	switch {
	case res.Locked:
		// Another session holds the file. The step stays in progress;
		// the loop moves on and can retry once the lock frees.
		e.setPhase(phase.WaitingForFileLock(lockedPath(act, res)))
		e.log.Result(res.Output)
	case res.Success:
		e.log.Result(util.TruncateMiddle(res.Output, promptLogLimit))
		if itemID > 0 && e.list.MarkCompleted(itemID, "") {
			e.publishChecklist(itemID, checklist.StatusCompleted)
		}
	default:
		detail := res.Error
		if detail == "" {
			detail = res.Output
		}
		e.log.Result("tool failed: " + util.TruncateMiddle(detail, promptLogLimit))
		if itemID > 0 && e.list.MarkFailed(itemID, summaryLine(detail)) {
			e.publishChecklist(itemID, checklist.StatusFailed)
		}
	}
	return false, res
}

// runRawCommand executes a model-issued shell command, gated by the
// approval broker, with up to max_fix_attempts corrected retries after
// a failure. The violation flag marks commands refused by the mode.
// A non-nil error means the executor itself failed.
func (e *Engine) runRawCommand(ctx context.Context, act action) (violation, success bool, err error) {
	mode := e.sess.Mode()
	if e.shell == nil || !mode.Allows("run_command") {
		e.log.Result(fmt.Sprintf("shell commands are not available in %s mode", mode))
		e.logger.Warn("raw command refused by mode", "mode", string(mode))
		return true, false, nil
	}

	itemID := e.targetItem(act)
	if itemID > 0 && e.list.MarkInProgress(itemID) {
		e.publishChecklist(itemID, checklist.StatusInProgress)
	}

	command := act.Command
	res, ran, err := e.executeGated(ctx, command)
	if err != nil {
		return false, false, err
	}
	if !ran {
		return false, false, nil
	}

	for attempt := 1; !res.Success && attempt <= e.cfg.Agent.MaxFixAttempts; attempt++ {
		if e.checkCancelled(ctx) != nil {
			break
		}
		fix := e.proposeFix(ctx, command, res)
		if fix == "" || fix == command {
			e.log.Result("no fix proposed")
			break
		}
		e.log.Append(fmt.Sprintf("FIX ATTEMPT %d: %s", attempt, fix))

		fixRes, ran, err := e.executeGated(ctx, fix)
		if err != nil {
			return false, false, err
		}
		if !ran {
			break
		}
		command, res = fix, fixRes
	}

	if res.Success {
		if itemID > 0 && e.list.MarkCompleted(itemID, "") {
			e.publishChecklist(itemID, checklist.StatusCompleted)
		}
		return false, true, nil
	}
	if itemID > 0 && e.list.MarkFailed(itemID, fmt.Sprintf("exit code %d", res.ExitCode)) {
		e.publishChecklist(itemID, checklist.StatusFailed)
	}
	return false, false, nil
}

// executeGated runs one command behind the approval handshake. ran is
// false when the command was rejected, timed out, or cancelled without
// executing; err is reserved for cancellation and executor failures.
func (e *Engine) executeGated(ctx context.Context, command string) (shell.Result, bool, error) {
	approved := command
	if e.approvals != nil {
		e.setPhase(phase.WaitingForApproval())
		verdict, err := e.approvals.Request(ctx, approval.Request{
			SessionID: e.sess.ID(),
			Command:   command,
			Reason:    "the agent wants to run a shell command",
		})
		if err != nil {
			return shell.Result{}, false, err
		}
		e.setPhase(e.executingPhase())
		if !verdict.Approved() {
			e.log.Result(fmt.Sprintf("command %s: %s", verdict.Decision, verdict.Reason))
			e.logger.Info("command not approved", "decision", string(verdict.Decision))
			return shell.Result{}, false, nil
		}
		if verdict.Decision == approval.DecisionEdited {
			e.log.Append("USER EDIT: command replaced with: " + verdict.Command)
		}
		approved = verdict.Command
	}

	res, err := e.shell.Execute(ctx, approved, shell.Opts{})
	if err != nil {
		return shell.Result{}, false, err
	}

	e.detector.Record(approved)
	e.count(func(c *session.Counters) { c.CommandsRun++ })
	e.log.Ran(approved)
	e.log.Output(util.TruncateMiddle(res.Output, promptLogLimit))
	e.log.ExitCode(res.ExitCode)
	if res.TimedOut {
		e.log.Result("command timed out")
	}
	// The full output lands in the search buffer even when the log
	// entry was truncated.
	e.registry.Buffer().Record("run_command", res.Output)
	e.publish(event.NewCommandRunEvent(e.sess.ID(), approved, res.ExitCode))
	return res, true, nil
}

// reflect asks for a mid-run strategy review and records any suggested
// adjustment. Reflection is advisory: errors are logged and skipped.
func (e *Engine) reflect(ctx context.Context) {
	e.setPhase(phase.Reflecting())
	text, err := e.structured(ctx, reflectionPrompt(e.goalSnapshot(), e.list, e.log), func(resp string) bool {
		var p reflectionPayload
		return ai.Decode(resp, &p) == nil
	})
	if err != nil {
		e.logger.Debug("reflection skipped", "error", err)
		return
	}
	var p reflectionPayload
	if ai.Decode(text, &p) != nil {
		return
	}
	if adj := strings.TrimSpace(p.Adjustment); adj != "" {
		e.log.Adjustment(adj)
		e.logger.Info("strategy adjusted", "adjustment", adj)
	}
}

// checkStuck consults the model when the recent-command window is full
// of near-identical commands. The judge either stops the run, injects
// a new-approach note, or rules the repetition legitimate; the window
// is cleared in every non-stop case so one burst triggers one consult.
func (e *Engine) checkStuck(ctx context.Context) (bool, outcome, error) {
	if e.detector == nil || !e.detector.Ready() || !e.detector.PossiblyStuck() {
		return false, outcome{}, nil
	}
	commands := e.detector.Commands()
	e.publish(event.NewStuckDetectedEvent(e.sess.ID(), len(commands), e.detector.MinSimilarity()))
	e.logger.Warn("possible stuck loop", "commands", len(commands))

	text, err := e.structured(ctx, stuckPrompt(e.goalSnapshot(), commands), func(resp string) bool {
		var p stuckPayload
		return ai.Decode(resp, &p) == nil
	})
	if err != nil {
		return false, outcome{}, nil
	}
	var p stuckPayload
	if ai.Decode(text, &p) != nil {
		return false, outcome{}, nil
	}

	if p.Stuck && p.Stop {
		message := "Agent stopped: the run is stuck repeating commands without progress."
		if advice := strings.TrimSpace(p.Advice); advice != "" {
			message = "Agent stopped: " + advice
		}
		out, err := e.stop(ctx, message, apperrors.ErrAgentStopped)
		return true, out, err
	}
	if p.Stuck {
		advice := strings.TrimSpace(p.Advice)
		if advice == "" {
			advice = "try a different approach"
		}
		e.log.Adjustment("NEW APPROACH: " + advice)
	}
	e.detector.Clear()
	return false, outcome{}, nil
}

// compact keeps the context log under the model budget, summarizing
// older entries when usage crosses the threshold.
func (e *Engine) compact(ctx context.Context) {
	res := e.window.EnsureBudget(ctx, e.log)
	if !res.Compacted {
		return
	}
	e.count(func(c *session.Counters) { c.Compactions++ })
	e.publish(event.NewContextCompactedEvent(e.sess.ID(), res.Removed, res.Kept, res.UsageBefore))
	e.logger.Info("context compacted", "removed", res.Removed, "kept", res.Kept)
}

// assessDone asks whether the goal is met after a meaningful action.
// Errors and malformed responses read as "not done": the loop keeps
// working rather than completing on a guess.
func (e *Engine) assessDone(ctx context.Context) bool {
	text, err := e.structured(ctx, donePrompt(e.goalSnapshot(), e.list, e.log), func(resp string) bool {
		var p donePayload
		return ai.Decode(resp, &p) == nil
	})
	if err != nil {
		return false
	}
	var p donePayload
	if ai.Decode(text, &p) != nil {
		return false
	}
	word := "not yet"
	if p.Done {
		word = "goal met"
	}
	if p.Reason != "" {
		e.log.Append(fmt.Sprintf("DONE CHECK: %s (%s)", word, p.Reason))
	} else {
		e.log.Append("DONE CHECK: " + word)
	}
	return p.Done
}

// proposeFix asks for a corrected command after a failure. An empty
// return means no fix was offered.
func (e *Engine) proposeFix(ctx context.Context, command string, res shell.Result) string {
	text, err := e.structured(ctx, fixPrompt(command, res.ExitCode, res.Output), func(resp string) bool {
		var p fixPayload
		return ai.Decode(resp, &p) == nil
	})
	if err != nil {
		return ""
	}
	var p fixPayload
	if ai.Decode(text, &p) != nil {
		return ""
	}
	return strings.TrimSpace(p.Command)
}

// executingPhase derives the current step counter from the checklist,
// or from the iteration count in adaptive mode.
func (e *Engine) executingPhase() phase.Phase {
	if total := e.list.Len(); total > 0 {
		step := e.list.CompletedCount() + 1
		if step > total {
			step = total
		}
		return phase.Executing(step, total)
	}
	return phase.Executing(e.countersSnapshot().Iterations, 0)
}

// checklistDone reports whether a planned run has resolved every item.
// Planless runs always report false; only the done-assessment can
// finish them.
func (e *Engine) checklistDone() bool {
	return e.list.Len() > 0 && e.list.IsComplete()
}

// targetItem picks the checklist item an action advances: the model's
// explicit choice when valid, otherwise the item already in progress,
// otherwise the first pending one. Zero means no item applies.
func (e *Engine) targetItem(act action) int {
	if act.Item > 0 {
		if _, ok := e.list.Item(act.Item); ok {
			return act.Item
		}
	}
	fallback := 0
	for _, item := range e.list.Items() {
		switch item.Status {
		case checklist.StatusInProgress:
			return item.ID
		case checklist.StatusPending:
			if fallback == 0 {
				fallback = item.ID
			}
		}
	}
	return fallback
}

// argsDigest renders tool arguments as a short "k=v" list for the log.
func argsDigest(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		v = strings.ReplaceAll(v, "\n", " ")
		parts = append(parts, k+"="+util.TruncateString(v, 80))
	}
	return strings.Join(parts, ", ")
}

// lockedPath names the contended file for the waiting phase.
func lockedPath(act action, res tool.Result) string {
	if res.FileChange != nil && res.FileChange.FilePath != "" {
		return res.FileChange.FilePath
	}
	if p, ok := act.Args["path"].(string); ok {
		return p
	}
	return ""
}
