package orchestrator

import (
	"github.com/TannerBurns/termai/internal/agent/phase"
	"github.com/TannerBurns/termai/internal/session"
)

// Active reports whether a run is in flight.
func (e *Engine) Active() bool {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	return running || e.tracker.IsActive()
}

// Cancel stops the in-flight run: the run context is cancelled, any
// suspended approval is released, and the session's file locks and
// watched paths are freed immediately rather than at loop exit. Safe
// to call at any time; a second call is a no-op.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if !e.running || e.cancelled {
		e.mu.Unlock()
		return
	}
	e.cancelled = true
	cancel := e.cancelRun
	log := e.log
	e.summary = "Run cancelled by user."
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.approvals != nil {
		e.approvals.CancelSession(e.sess.ID())
	}
	e.locks.ReleaseAll(e.sess.ID())
	if e.watch != nil {
		e.watch.ReleaseSession(e.sess.ID())
	}
	log.Result("run cancelled by user")
	e.tracker.Set(phase.Cancelled())
	e.logger.Info("run cancelled")
}

// State returns the engine's persistable view of the run: phase token,
// checklist snapshot, context log, counters, and summary.
func (e *Engine) State() session.RunState {
	e.mu.Lock()
	list := e.list
	log := e.log
	counters := e.counters
	summary := e.summary
	e.mu.Unlock()

	return session.RunState{
		Phase:     string(e.tracker.Current().Kind),
		Checklist: list.Snapshot(),
		Log:       log.Entries(),
		Counters:  counters,
		Summary:   summary,
	}
}
