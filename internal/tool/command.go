package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/shell"
	"github.com/TannerBurns/termai/internal/util"
)

// processTailLimit caps the output tail reported when a background
// process is stopped.
const processTailLimit = 2000

type runCommandTool struct {
	exec      shell.Executor
	approvals *approval.Broker
	sessionID string
	bus       *event.Bus
}

func (t *runCommandTool) Name() string { return "run_command" }

func (t *runCommandTool) Description() string {
	return "Run a shell command in the session's persistent shell. The command needs user approval unless auto-approval is on; the user may edit it before approving."
}

func (t *runCommandTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "command", Type: "string", Description: "Shell command to run", Required: true},
		{Name: "timeout_seconds", Type: "integer", Description: "Override the configured command timeout"},
	}}
}

func (t *runCommandTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	command := stringArg(args, "command")
	verdict, err := t.approvals.Request(ctx, approval.Request{
		SessionID: t.sessionID,
		Command:   command,
		Reason:    "the agent wants to run a shell command",
	})
	if err != nil {
		return Failure("command approval interrupted: %v", err)
	}
	if !verdict.Approved() {
		return Result{
			Output: fmt.Sprintf("command %s: %s", verdict.Decision, verdict.Reason),
			Error:  fmt.Sprintf("command %s", verdict.Decision),
		}
	}

	var opts shell.Opts
	if secs := intArg(args, "timeout_seconds", 0); secs > 0 {
		opts.Timeout = time.Duration(secs) * time.Second
	}
	res, err := t.exec.Execute(ctx, verdict.Command, opts)
	if err != nil {
		return Failure("run %q: %v", verdict.Command, err)
	}
	if t.bus != nil {
		t.bus.Publish(event.NewCommandRunEvent(t.sessionID, verdict.Command, res.ExitCode))
	}

	out := res.Output
	if verdict.Decision == approval.DecisionEdited {
		out = fmt.Sprintf("(ran edited command: %s)\n%s", verdict.Command, out)
	}
	var notes []string
	if res.TimedOut {
		notes = append(notes, "command timed out")
	}
	if res.Truncated {
		notes = append(notes, "output truncated")
	}
	if res.ExitCode != 0 {
		notes = append(notes, fmt.Sprintf("exit code %d", res.ExitCode))
	}
	if len(notes) > 0 {
		out = strings.TrimRight(out, "\n") + "\n(" + strings.Join(notes, "; ") + ")"
	}
	if out == "" {
		out = "(no output)"
	}

	result := Result{Success: res.Success && !res.TimedOut, Output: out}
	if !result.Success {
		if res.TimedOut {
			result.Error = "command timed out"
		} else {
			result.Error = fmt.Sprintf("exit code %d", res.ExitCode)
		}
	}
	return result
}

type startProcessTool struct {
	procs *shell.ProcManager
}

func (t *startProcessTool) Name() string { return "start_process" }

func (t *startProcessTool) Description() string {
	return "Start a long-running command in the background, such as a dev server. Returns a process id for stop_process."
}

func (t *startProcessTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "command", Type: "string", Description: "Command to run in the background", Required: true},
	}}
}

func (t *startProcessTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	info, err := t.procs.Start(stringArg(args, "command"))
	if err != nil {
		return Failure("start process: %v", err)
	}
	return Result{
		Success: true,
		Output:  fmt.Sprintf("started background process %s: %s", info.ID, info.Command),
	}
}

type stopProcessTool struct {
	procs *shell.ProcManager
}

func (t *stopProcessTool) Name() string { return "stop_process" }

func (t *stopProcessTool) Description() string {
	return "Stop a background process started with start_process and report the tail of its output."
}

func (t *stopProcessTool) Schema() Schema {
	return Schema{Params: []Param{
		{Name: "id", Type: "string", Description: "Process id from start_process", Required: true},
	}}
}

func (t *stopProcessTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	id := stringArg(args, "id")
	if err := t.procs.Stop(id); err != nil {
		return Failure("stop process %s: %v", id, err)
	}
	tail, _ := t.procs.Output(id)

	out := fmt.Sprintf("stopped process %s", id)
	if tail = strings.TrimSpace(tail); tail != "" {
		out += "\noutput tail:\n" + util.TruncateMiddle(tail, processTailLimit)
	}
	return Result{Success: true, Output: out}
}

type listProcessesTool struct {
	procs *shell.ProcManager
}

func (t *listProcessesTool) Name() string { return "list_processes" }

func (t *listProcessesTool) Description() string {
	return "List background processes from this session with their status."
}

func (t *listProcessesTool) Schema() Schema {
	return Schema{}
}

func (t *listProcessesTool) Execute(ctx context.Context, args map[string]any, cwd string) Result {
	procs := t.procs.List()
	if len(procs) == 0 {
		return Result{Success: true, Output: "no background processes"}
	}

	var b strings.Builder
	for _, p := range procs {
		status := "running"
		if !p.Running {
			status = fmt.Sprintf("exited (%d)", p.ExitCode)
		}
		fmt.Fprintf(&b, "%s  %-12s %s\n", p.ID, status, p.Command)
	}
	return Result{Success: true, Output: strings.TrimSuffix(b.String(), "\n")}
}
