package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/agent/contextlog"
	"github.com/TannerBurns/termai/internal/tool"
	"github.com/TannerBurns/termai/internal/util"
)

// promptLogLimit caps how much context-log text a single prompt carries.
// The window manager keeps the log itself under the model budget; this
// is a second bound for the smaller judgment calls that do not need the
// full log.
const promptLogLimit = 12000

// agentSystemPrompt frames every structured call in the run loop.
const agentSystemPrompt = `You are an autonomous coding agent working inside a user's terminal. You pursue one concrete goal per run by choosing the next action: call a tool, run a shell command, or declare the goal done. You always answer with a single JSON object and nothing else. Be decisive and take the smallest action that makes progress.`

// decidePromptTemplate routes a request to a direct reply or an agent run.
const decidePromptTemplate = `Decide how to handle this user request.

## Request
%s

Choose "respond" when a plain conversational answer is enough: questions, explanations, opinions, small talk. Choose "run" when the request needs work in the workspace: reading or changing files, running commands, investigating the project.

Answer with JSON only:
{"decision": "respond" or "run"}`

// respondSystemPrompt frames the direct conversational reply path.
const respondSystemPrompt = `You are a helpful assistant living in a user's terminal. Answer directly and concisely in plain text. Do not wrap the answer in JSON.`

// goalPromptTemplate turns the request into one concrete goal.
const goalPromptTemplate = `Restate this request as one concrete, verifiable goal for an autonomous agent working in a workspace.

## Request
%s

The goal must be a single sentence describing the end state, not the steps to get there.

Answer with JSON only:
{"goal": "<one sentence>"}`

// planPromptTemplate requests an ordered step plan for the goal.
const planPromptTemplate = `Break this goal into an ordered plan of concrete steps.

## Goal
%s

## Available tools
%s

Aim for %d to %d steps. Each step is one action an agent can take with the tools above or a shell command. Keep steps small and independently checkable. A trivial goal may need only one step.

Answer with JSON only:
{"steps": ["<step 1>", "<step 2>", ...]}`

// nextActionPromptTemplate asks for the single next action.
const nextActionPromptTemplate = `Choose the next action toward the goal.

## Goal
%s
%s
## Work so far
%s

## Available tools
%s

Answer with one JSON object containing:
- "step": short description of what you are doing (always include this)
- "item": checklist item number this action advances (omit if none applies)
- "tool": tool name to call, with "args": {...} matching its parameters
- "command": shell command to run instead of a tool
- "done": true when the goal is fully achieved and nothing is left to do

Use exactly one of "tool", "command", or "done". Do not repeat an action whose result is already recorded above.`

// reflectionPromptTemplate asks for a mid-run strategy review.
const reflectionPromptTemplate = `Review this agent run in progress and judge whether the approach is working.

## Goal
%s
%s
## Recent work
%s

If the current approach is sound, say so. If progress has stalled or the approach should change, describe the adjustment in one or two sentences.

Answer with JSON only:
{"adjustment": "<advice for the next steps, or empty if the approach is fine>"}`

// stuckPromptTemplate asks whether near-identical commands mean the run is stuck.
const stuckPromptTemplate = `This agent has run several nearly identical commands in a row:

%s

## Goal
%s

Judge whether the run is genuinely stuck in a loop, or whether the repetition is legitimate (polling, retry after a fix, batch processing).

Answer with JSON only:
{"stuck": true or false, "advice": "<if stuck: a different approach to try; if the situation is hopeless, say the run should stop>", "stop": true or false}`

// donePromptTemplate asks for a quick done-assessment after a meaningful action.
const donePromptTemplate = `Judge whether this goal is now fully achieved.

## Goal
%s
%s
## Work so far
%s

Answer with JSON only:
{"done": true or false, "reason": "<one sentence>"}`

// fixPromptTemplate asks for a corrected command after a failure.
const fixPromptTemplate = `This shell command failed:

$ %s

Exit code: %d
Output:
%s

Propose a single corrected command that achieves the same intent, or leave it empty if the failure cannot be fixed by rewording the command.

Answer with JSON only:
{"command": "<corrected command, or empty>"}`

// verifyPromptTemplate asks the model to pick read-only verification checks.
const verifyPromptTemplate = `The agent believes this goal is achieved:

## Goal
%s
%s
## Work so far
%s

## Read-only tools
%s

Pick 1 to %d read-only checks that would confirm the goal is genuinely done (for example, read a file that was written, list a directory, probe a URL). Only the tools listed above are allowed.

Answer with JSON only:
{"checks": [{"tool": "<name>", "args": {...}}, ...]}`

// summaryPromptTemplate asks for the final run summary.
const summaryPromptTemplate = `Summarize what this agent run accomplished.

## Goal
%s
%s
## Work done
%s

Answer with one plain-text sentence describing the outcome. No JSON, no markdown.`

// compactionPromptTemplate summarizes older context-log entries.
const compactionPromptTemplate = `Condense this agent work log into a short summary that preserves every fact a future step might need: files touched, commands run, key outputs, errors hit, decisions made.

%s

Answer with the summary as plain text. No JSON, no markdown.`

func decidePrompt(request string) string {
	return fmt.Sprintf(decidePromptTemplate, request)
}

func goalPrompt(request string) string {
	return fmt.Sprintf(goalPromptTemplate, request)
}

func planPrompt(goal string, defs []tool.Definition, minSteps, maxSteps int) string {
	return fmt.Sprintf(planPromptTemplate, goal, renderTools(defs), minSteps, maxSteps)
}

func nextActionPrompt(goal string, list *checklist.Checklist, log *contextlog.Log, defs []tool.Definition) string {
	return fmt.Sprintf(nextActionPromptTemplate,
		goal, renderChecklist(list), renderLog(log, 0), renderTools(defs))
}

func reflectionPrompt(goal string, list *checklist.Checklist, log *contextlog.Log) string {
	return fmt.Sprintf(reflectionPromptTemplate,
		goal, renderChecklist(list), renderLog(log, promptLogLimit))
}

func stuckPrompt(goal string, commands []string) string {
	var sb strings.Builder
	for _, c := range commands {
		sb.WriteString("$ " + c + "\n")
	}
	return fmt.Sprintf(stuckPromptTemplate, strings.TrimRight(sb.String(), "\n"), goal)
}

func donePrompt(goal string, list *checklist.Checklist, log *contextlog.Log) string {
	return fmt.Sprintf(donePromptTemplate,
		goal, renderChecklist(list), renderLog(log, promptLogLimit))
}

func fixPrompt(command string, exitCode int, output string) string {
	return fmt.Sprintf(fixPromptTemplate, command, exitCode, util.TruncateMiddle(output, promptLogLimit))
}

func verifyPrompt(goal string, list *checklist.Checklist, log *contextlog.Log, defs []tool.Definition, maxChecks int) string {
	return fmt.Sprintf(verifyPromptTemplate,
		goal, renderChecklist(list), renderLog(log, promptLogLimit), renderTools(defs), maxChecks)
}

func summaryPrompt(goal string, list *checklist.Checklist, log *contextlog.Log) string {
	return fmt.Sprintf(summaryPromptTemplate,
		goal, renderChecklist(list), renderLog(log, promptLogLimit))
}

func compactionPrompt(older string) string {
	return fmt.Sprintf(compactionPromptTemplate, older)
}

// renderChecklist formats the checklist as a prompt section. An empty
// checklist renders as nothing so planless runs do not carry a stub
// section.
func renderChecklist(list *checklist.Checklist) string {
	if list == nil || list.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n## Checklist\n")
	for _, item := range list.Items() {
		marker := " "
		switch item.Status {
		case checklist.StatusCompleted:
			marker = "x"
		case checklist.StatusInProgress:
			marker = ">"
		case checklist.StatusFailed:
			marker = "!"
		case checklist.StatusSkipped:
			marker = "-"
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n", item.ID, marker, item.Description)
		if item.VerificationNote != "" {
			fmt.Fprintf(&sb, "   note: %s\n", item.VerificationNote)
		}
	}
	return sb.String()
}

// renderLog formats the context log for a prompt. A zero limit keeps
// the full text; otherwise the middle is elided, keeping the head and
// the most recent tail.
func renderLog(log *contextlog.Log, limit int) string {
	if log == nil || log.Len() == 0 {
		return "(nothing yet)"
	}
	text := log.Text()
	if limit > 0 {
		text = util.TruncateMiddle(text, limit)
	}
	return text
}

// renderTools formats tool definitions as a prompt section.
func renderTools(defs []tool.Definition) string {
	if len(defs) == 0 {
		return "(no tools available)"
	}
	var sb strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		if params := renderParams(d.Parameters); params != "" {
			fmt.Fprintf(&sb, "  args: %s\n", params)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderParams flattens a JSON-schema payload into "name (type), ..."
// with required parameters marked.
func renderParams(payload map[string]any) string {
	props, ok := payload["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	if req, ok := payload["required"].([]string); ok {
		for _, name := range req {
			required[name] = true
		}
	} else if req, ok := payload["required"].([]any); ok {
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	// Declaration order is lost in the map; required-first keeps the
	// rendering stable.
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if required[a] != required[b] {
			return required[a]
		}
		return a < b
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := ""
		if prop, ok := props[name].(map[string]any); ok {
			typ, _ = prop["type"].(string)
		}
		p := name
		if typ != "" {
			p += " (" + typ + ")"
		}
		if required[name] {
			p += " required"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

// summaryLine clamps text to its first non-empty line.
func summaryLine(text string) string {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
