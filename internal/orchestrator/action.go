package orchestrator

import (
	"strings"

	"github.com/TannerBurns/termai/internal/ai"
)

// Model responses are untrusted: every payload here is decoded with
// ai.Decode, which extracts the outermost JSON object from whatever
// prose or fencing surrounds it, and every field defaults to its zero
// value when missing.

// route is the triage outcome for one user request.
type route string

const (
	routeRespond route = "respond"
	routeRun     route = "run"
)

// routePayload is the decide-call response.
type routePayload struct {
	Decision string `json:"decision"`
}

// parseRoute maps a decide response onto a route. Anything that does
// not clearly ask for a direct reply runs the agent loop; an ambiguous
// triage should err toward doing the work.
func parseRoute(text string) route {
	var p routePayload
	if err := ai.Decode(text, &p); err == nil {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p.Decision)), "respond") {
			return routeRespond
		}
	}
	return routeRun
}

// goalPayload is the goal-setting response.
type goalPayload struct {
	Goal string `json:"goal"`
}

// planPayload is the planning response.
type planPayload struct {
	Steps []string `json:"steps"`
}

// parsePlan extracts non-empty steps, capped at maxSteps. A nil return
// means the response carried no usable plan.
func parsePlan(text string, maxSteps int) []string {
	var p planPayload
	if err := ai.Decode(text, &p); err != nil {
		return nil
	}
	var steps []string
	for _, s := range p.Steps {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if maxSteps > 0 && len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	return steps
}

// action is the structured next-action response driving one loop
// iteration. Exactly one of Tool, Command, or Done is expected, though
// the model is not always obliging; dispatch takes them in that order.
type action struct {
	Step    string         `json:"step"`
	Item    int            `json:"item"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Command string         `json:"command"`
	Done    bool           `json:"done"`
}

// actionable reports whether the response carries anything the loop can
// act on. An empty object fails this check and counts toward the
// empty-response threshold.
func (a action) actionable() bool {
	return a.Done ||
		strings.TrimSpace(a.Tool) != "" ||
		strings.TrimSpace(a.Command) != "" ||
		strings.TrimSpace(a.Step) != ""
}

// parseAction decodes a next-action response. ok is false when the
// response is malformed or carries nothing actionable.
func parseAction(text string) (action, bool) {
	var a action
	if err := ai.Decode(text, &a); err != nil {
		return action{}, false
	}
	a.Tool = strings.TrimSpace(a.Tool)
	a.Command = strings.TrimSpace(a.Command)
	a.Step = strings.TrimSpace(a.Step)
	if !a.actionable() {
		return action{}, false
	}
	return a, true
}

// reflectionPayload is the periodic strategy-review response.
type reflectionPayload struct {
	Adjustment string `json:"adjustment"`
}

// stuckPayload is the stuck-judgment response.
type stuckPayload struct {
	Stuck  bool   `json:"stuck"`
	Advice string `json:"advice"`
	Stop   bool   `json:"stop"`
}

// donePayload is the done-assessment response.
type donePayload struct {
	Done   bool   `json:"done"`
	Reason string `json:"reason"`
}

// fixPayload is the command-fix response.
type fixPayload struct {
	Command string `json:"command"`
}

// verifyCheck is one model-chosen read-only verification check.
type verifyCheck struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// verifyPayload is the verification-selection response.
type verifyPayload struct {
	Checks []verifyCheck `json:"checks"`
}
