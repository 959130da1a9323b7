package orchestrator

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/TannerBurns/termai/internal/agent/phase"
	"github.com/TannerBurns/termai/internal/ai"
	"github.com/TannerBurns/termai/internal/session"
	"github.com/TannerBurns/termai/internal/tool"
)

// verify runs a short batch of model-chosen read-only checks before the
// run completes. Checks execute with the scout capability set whatever
// the session mode, so verification can never mutate the workspace.
// The pass is advisory: failed checks are recorded for the summary,
// not treated as run-ending.
func (e *Engine) verify(ctx context.Context) {
	maxChecks := e.cfg.Agent.MaxVerificationChecks
	if maxChecks <= 0 {
		return
	}
	e.setPhase(phase.Verifying())

	defs := e.registry.Definitions(tool.ModeScout)
	user := verifyPrompt(e.goalSnapshot(), e.list, e.log, defs, maxChecks)
	text, err := e.structured(ctx, user, func(resp string) bool {
		var p verifyPayload
		return ai.Decode(resp, &p) == nil
	})
	if err != nil {
		e.logger.Debug("verification skipped", "error", err)
		return
	}
	var p verifyPayload
	if ai.Decode(text, &p) != nil {
		return
	}

	var checks []verifyCheck
	for _, check := range p.Checks {
		if !e.registry.IsToolAvailable(check.Tool, tool.ModeScout) {
			continue
		}
		checks = append(checks, check)
		if len(checks) == maxChecks {
			break
		}
	}
	if len(checks) == 0 {
		e.log.Append("VERIFY: no checks run")
		return
	}

	// Checks are independent reads; run them together and collect the
	// outcomes in request order.
	runs := pool.NewWithResults[string]()
	for _, check := range checks {
		runs.Go(func() string {
			res := e.registry.Execute(ctx, tool.ModeScout, check.Tool, check.Args)
			status, detail := "ok", summaryLine(res.Output)
			if !res.Success {
				status = "failed"
				if res.Error != "" {
					detail = summaryLine(res.Error)
				}
			}
			if detail == "" {
				return fmt.Sprintf("%s %s", check.Tool, status)
			}
			return fmt.Sprintf("%s %s: %s", check.Tool, status, detail)
		})
	}
	for _, line := range runs.Wait() {
		e.log.Append("VERIFY: " + line)
	}
	e.count(func(c *session.Counters) { c.ToolCalls += len(checks) })
	e.logger.Info("verification finished", "checks", len(checks))
}
