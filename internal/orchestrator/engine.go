// Package orchestrator drives one agent run end to end: triage the
// request, set a goal, optionally plan a checklist, then loop over
// structured next-action calls dispatching tools and shell commands
// until the goal is done, the run is cancelled, or a fail-safe stops
// it. The engine is the session's Runner: it owns the run's phase,
// checklist, context log, and counters, and publishes every state
// change on the event bus for the UI layer.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/agent/contextlog"
	"github.com/TannerBurns/termai/internal/agent/phase"
	"github.com/TannerBurns/termai/internal/agent/retry"
	"github.com/TannerBurns/termai/internal/agent/stuck"
	"github.com/TannerBurns/termai/internal/agent/window"
	"github.com/TannerBurns/termai/internal/ai"
	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/filelock"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/session"
	"github.com/TannerBurns/termai/internal/shell"
	"github.com/TannerBurns/termai/internal/tool"
	"github.com/TannerBurns/termai/internal/watcher"
)

// Deps collects the engine's collaborators. Session, Client, and
// Registry are required. Shell enables the raw-command path; a nil
// Approvals runs commands ungated; a nil Watcher just means no
// external-change notes.
type Deps struct {
	Config    *config.Config
	Session   *session.Session
	Client    ai.Client
	Registry  *tool.Registry
	Shell     shell.Executor
	Locks     *filelock.Coordinator
	Approvals *approval.Broker
	Watcher   *watcher.Watcher
	Bus       *event.Bus
	Logger    *logging.Logger
}

// Engine runs the agent loop for one session. One run is in flight at
// a time; Run returns before a second may start. The engine implements
// session.Runner so the session can cancel it and snapshot its state.
type Engine struct {
	cfg       *config.Config
	sess      *session.Session
	client    ai.Client
	registry  *tool.Registry
	shell     shell.Executor
	locks     *filelock.Coordinator
	approvals *approval.Broker
	watch     *watcher.Watcher
	bus       *event.Bus
	logger    *logging.Logger

	tracker *phase.Tracker
	window  *window.Manager
	policy  retry.Policy

	mu        sync.Mutex
	running   bool
	cancelled bool
	cancelRun context.CancelFunc
	runID     string
	goal      string
	list      *checklist.Checklist
	log       *contextlog.Log
	detector  *stuck.Detector
	counters  session.Counters
	summary   string
	notes     []string
}

var _ session.Runner = (*Engine)(nil)

// outcome describes how a run ended.
type outcome struct {
	success bool
	summary string
	reason  string
}

// NewEngine wires an engine to its session and attaches it as the
// session's runner. State carried over from a resumed session seeds
// the checklist, log, and counters so the run picks up where the
// stored snapshot left off.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Session == nil {
		return nil, apperrors.New("orchestrator: session is required")
	}
	if deps.Client == nil {
		return nil, apperrors.New("orchestrator: model client is required")
	}
	if deps.Registry == nil {
		return nil, apperrors.New("orchestrator: tool registry is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithSession(deps.Session.ID())
	locks := deps.Locks
	if locks == nil {
		locks = filelock.NewCoordinator(cfg, deps.Bus, logger)
	}

	e := &Engine{
		cfg:       cfg,
		sess:      deps.Session,
		client:    deps.Client,
		registry:  deps.Registry,
		shell:     deps.Shell,
		locks:     locks,
		approvals: deps.Approvals,
		watch:     deps.Watcher,
		bus:       deps.Bus,
		logger:    logger,
		tracker:   phase.NewTracker(logger),
		policy:    retry.Policy{MaxRetries: cfg.Agent.MaxRetries, Backoff: retry.DefaultPolicy().Backoff},
		list:      checklist.New("", nil),
		log:       contextlog.New(),
	}
	e.window = window.NewManagerFromConfig(cfg, window.SummarizerFunc(e.summarizeForWindow), logger)

	if st, ok := deps.Session.RestoredState(); ok {
		e.goal = st.Checklist.Goal
		e.list = checklist.FromSnapshot(st.Checklist)
		e.log = contextlog.FromEntries(st.Log)
		e.counters = st.Counters
		e.summary = st.Summary
	}

	e.tracker.OnChange(func(from, to phase.Phase) {
		e.publish(event.NewPhaseChangedEvent(e.sess.ID(), from.String(), to.String()))
	})
	if e.bus != nil {
		e.bus.Subscribe("file.external_change", e.onExternalChange)
	}

	deps.Session.Attach(e)
	return e, nil
}

// Run drives one agent run to a terminal phase. It returns nil when
// the run completed or answered directly, apperrors.ErrRunCancelled
// when cancelled, and a descriptive error when a fail-safe stopped the
// run or a collaborator failed unrecoverably. It never panics; any
// failure leaves the phase terminal and the summary human-readable.
func (e *Engine) Run(ctx context.Context, userPrompt string) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return apperrors.ErrRunActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancelled = false
	e.cancelRun = cancel
	e.runID = uuid.NewString()[:8]
	prevSummary := e.summary
	e.goal = ""
	e.list = checklist.New("", nil)
	e.log = contextlog.New()
	e.detector = stuck.NewDetector(e.cfg.Stuck.Window, e.cfg.Stuck.SimilarityThreshold)
	e.counters = session.Counters{}
	e.summary = ""
	runID := e.runID
	e.mu.Unlock()

	// A resumed or repeated session starts a fresh checklist and log,
	// but the model still learns what the last run accomplished.
	if prevSummary != "" {
		e.log.Append("PRIOR RUN: " + prevSummary)
	}

	defer cancel()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancelRun = nil
		e.mu.Unlock()
	}()

	logger := e.logger.WithRun(runID)
	logger.Info("run started", "mode", string(e.sess.Mode()))

	// Stale buffers from a previous run never leak into this one.
	e.registry.ClearSession()
	e.publish(event.NewRunStartedEvent(e.sess.ID(), runID, userPrompt))

	out, err := e.run(runCtx, userPrompt)

	e.mu.Lock()
	e.summary = out.summary
	e.mu.Unlock()

	// File locks the run's tools took stay with the session until the
	// run ends, whatever way it ends.
	e.locks.ReleaseAll(e.sess.ID())

	e.publish(event.NewRunCompletedEvent(e.sess.ID(), runID, out.success, out.summary, out.reason))
	logger.Info("run finished",
		"success", out.success,
		"reason", out.reason,
		"iterations", e.countersSnapshot().Iterations,
	)
	return err
}

// run is the phase walk: triage, goal, plan, loop.
func (e *Engine) run(ctx context.Context, userPrompt string) (outcome, error) {
	e.setPhase(phase.Starting())
	if err := e.checkCancelled(ctx); err != nil {
		return e.cancelledOutcome(), err
	}

	e.setPhase(phase.Deciding())
	routed, err := e.decide(ctx, userPrompt)
	if err != nil {
		return e.fail("triage the request", err)
	}
	if routed == routeRespond {
		reply, err := e.respond(ctx, userPrompt)
		if err != nil {
			return e.fail("answer directly", err)
		}
		e.setPhase(phase.Completed())
		return outcome{success: true, summary: summaryLine(reply), reason: "responded"}, nil
	}

	e.setPhase(phase.SettingGoal())
	if err := e.setGoal(ctx, userPrompt); err != nil {
		return e.fail("set the goal", err)
	}

	e.plan(ctx)
	if err := e.checkCancelled(ctx); err != nil {
		return e.cancelledOutcome(), err
	}

	return e.loop(ctx)
}

// setGoal derives the run's goal from the user request. A malformed
// response falls back to the request itself; only a transport failure
// aborts the run.
func (e *Engine) setGoal(ctx context.Context, userPrompt string) error {
	text, err := e.structured(ctx, goalPrompt(userPrompt), func(resp string) bool {
		var p goalPayload
		return ai.Decode(resp, &p) == nil && strings.TrimSpace(p.Goal) != ""
	})
	if err != nil {
		return err
	}

	goal := userPrompt
	var p goalPayload
	if decodeErr := ai.Decode(text, &p); decodeErr == nil && strings.TrimSpace(p.Goal) != "" {
		goal = strings.TrimSpace(p.Goal)
	}

	e.mu.Lock()
	e.goal = goal
	e.mu.Unlock()

	e.log.Append("GOAL: " + goal)
	e.publish(event.NewGoalSetEvent(e.sess.ID(), goal))
	e.logger.Info("goal set", "goal", goal)
	return nil
}

// plan requests a step plan and builds the checklist from it. Planning
// is skipped when configured off (max_plan_steps = 0) and any failure
// leaves the run in adaptive mode, where the loop works from the log
// alone.
func (e *Engine) plan(ctx context.Context) {
	goal := e.goalSnapshot()
	if e.cfg.Agent.MaxPlanSteps <= 0 {
		e.mu.Lock()
		e.list = checklist.New(goal, nil)
		e.mu.Unlock()
		return
	}

	e.setPhase(phase.Planning())
	defs := e.registry.Definitions(e.sess.Mode())
	text, err := e.structured(ctx, planPrompt(goal, defs, e.cfg.Agent.MinPlanSteps, e.cfg.Agent.MaxPlanSteps), func(resp string) bool {
		return len(parsePlan(resp, e.cfg.Agent.MaxPlanSteps)) > 0
	})
	steps := parsePlan(text, e.cfg.Agent.MaxPlanSteps)

	e.mu.Lock()
	e.list = checklist.New(goal, steps)
	e.mu.Unlock()

	if len(steps) == 0 {
		reason := "no usable plan"
		if err != nil {
			reason = err.Error()
		}
		e.log.Append("PLANNING: " + reason + "; continuing without a checklist")
		e.logger.Warn("planning failed, running adaptively", "reason", reason)
		return
	}

	var sb strings.Builder
	sb.WriteString("PLAN:")
	for i, s := range steps {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, s)
	}
	e.log.Append(sb.String())
	e.publish(event.NewPlanCreatedEvent(e.sess.ID(), steps))
	e.logger.Info("plan created", "steps", len(steps))
}

// complete is the success path: close out the checklist, summarize,
// land on completed.
func (e *Engine) complete(ctx context.Context) (outcome, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return e.cancelledOutcome(), err
	}
	e.setPhase(phase.Summarizing())

	forced := e.list.ForceCompleteRemaining("closed at run completion")
	for _, id := range forced {
		e.publishChecklist(id, checklist.StatusCompleted)
	}

	summary := e.summarize(ctx)
	e.log.Append("SUMMARY: " + summary)
	e.setPhase(phase.Completed())
	return outcome{success: true, summary: summary, reason: "completed"}, nil
}

// stop is the fail-safe path: threshold hit or budget exhausted. The
// message is the run's summary; the cause is surfaced to the caller.
func (e *Engine) stop(ctx context.Context, message string, cause error) (outcome, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return e.cancelledOutcome(), err
	}
	e.log.Result(message)
	e.setPhaseWithReason(phase.Summarizing(), cause.Error())
	e.setPhase(phase.Completed())
	e.logger.Warn("run stopped", "reason", cause.Error())

	err := apperrors.NewRunError(message, cause).
		WithSessionID(e.sess.ID()).
		WithRunID(e.currentRunID())
	return outcome{success: false, summary: message, reason: cause.Error()}, err
}

// fail is the unrecoverable-error path. Cancellation that surfaced as
// a collaborator error is folded back into the cancelled outcome.
func (e *Engine) fail(op string, cause error) (outcome, error) {
	if e.isCancelled() || apperrors.Is(cause, context.Canceled) {
		return e.cancelledOutcome(), apperrors.ErrRunCancelled
	}
	message := fmt.Sprintf("Run failed: could not %s: %v", op, cause)
	e.log.Result(message)
	e.setPhaseWithReason(phase.Completed(), "unrecoverable error")
	e.logger.Error("run failed", "op", op, "error", cause)

	err := apperrors.NewRunError("could not "+op, cause).
		WithSessionID(e.sess.ID()).
		WithRunID(e.currentRunID())
	return outcome{success: false, summary: message, reason: "error"}, err
}

func (e *Engine) cancelledOutcome() outcome {
	return outcome{success: false, summary: "Run cancelled by user.", reason: "cancelled"}
}

// structured makes one retried model call for a structured response.
// The retry policy re-asks while accept rejects the response; the last
// response comes back regardless so callers can apply their own
// fail-safes.
func (e *Engine) structured(ctx context.Context, user string, accept retry.AcceptFunc) (string, error) {
	return retry.Do(ctx, e.policy, func(ctx context.Context, attempt int) (string, error) {
		c, err := e.client.CompleteOneShot(ctx, agentSystemPrompt, user, ai.ModelConfig{})
		if err != nil {
			return "", err
		}
		return c.Text, nil
	}, accept)
}

// summarizeForWindow is the window manager's summarizer: it condenses
// older log entries during compaction.
func (e *Engine) summarizeForWindow(ctx context.Context, text string) (string, error) {
	c, err := e.client.CompleteOneShot(ctx, agentSystemPrompt, compactionPrompt(text), ai.ModelConfig{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c.Text), nil
}

// summarize produces the final run summary, falling back to a
// deterministic line when the model cannot be reached.
func (e *Engine) summarize(ctx context.Context) string {
	goal := e.goalSnapshot()
	c, err := e.client.CompleteOneShot(ctx, agentSystemPrompt, summaryPrompt(goal, e.list, e.log), ai.ModelConfig{})
	if err == nil {
		if line := summaryLine(c.Text); line != "" {
			return line
		}
	}
	if e.list.Len() > 0 {
		return fmt.Sprintf("Completed %d of %d steps toward: %s", e.list.CompletedCount(), e.list.Len(), goal)
	}
	return "Completed: " + goal
}

// onExternalChange queues a note about a file changed outside the
// session. Notes drain into the context log at the next feedback
// checkpoint, so the model learns about edits it did not make.
func (e *Engine) onExternalChange(ev event.Event) {
	change, ok := ev.(event.ExternalChangeEvent)
	if !ok || change.SessionID != e.sess.ID() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.notes {
		if n == change.Path {
			return
		}
	}
	e.notes = append(e.notes, change.Path)
}

// drainNotes appends queued external-change notes to the log.
func (e *Engine) drainNotes() {
	e.mu.Lock()
	notes := e.notes
	e.notes = nil
	e.mu.Unlock()
	for _, path := range notes {
		e.log.Append("EXTERNAL CHANGE: " + path + " was modified outside this session; re-read it before editing")
	}
}

// drainFeedback appends queued user feedback to the log.
func (e *Engine) drainFeedback() {
	for _, fb := range e.sess.DrainFeedback() {
		e.log.Feedback(fb)
		e.logger.Info("feedback applied", "chars", len(fb))
	}
}

// setPhase applies a phase transition unless the run is already
// cancelled; Cancel owns the terminal transition in that case.
func (e *Engine) setPhase(p phase.Phase) {
	if e.isCancelled() {
		return
	}
	e.tracker.Set(p)
}

func (e *Engine) setPhaseWithReason(p phase.Phase, reason string) {
	if e.isCancelled() {
		return
	}
	e.tracker.SetWithReason(p, reason)
}

func (e *Engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// checkCancelled is the loop's cancellation checkpoint.
func (e *Engine) checkCancelled(ctx context.Context) error {
	if e.isCancelled() || ctx.Err() != nil {
		return apperrors.ErrRunCancelled
	}
	return nil
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// publishChecklist emits a checklist update for one item.
func (e *Engine) publishChecklist(id int, status checklist.Status) {
	e.publish(event.NewChecklistUpdatedEvent(
		e.sess.ID(), id, string(status), len(e.list.Remaining()), e.list.Len()))
}

// count mutates the run counters under the engine lock.
func (e *Engine) count(mutate func(c *session.Counters)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&e.counters)
}

func (e *Engine) countersSnapshot() session.Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

func (e *Engine) goalSnapshot() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goal
}

func (e *Engine) currentRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}
