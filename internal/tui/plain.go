package tui

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/event"
)

// Printer is the --plain fallback: one line per bus event, with
// approval requests answered over the supplied reader. Handlers run on
// the publisher's goroutine, so the run waits while a prompt is open,
// which is exactly the suspension the approval contract asks for.
type Printer struct {
	broker *approval.Broker
	in     *bufio.Reader

	// mu serializes writes; events arrive from the run goroutine and
	// the watcher's. It is never held across a nested publish, since
	// resolving an approval publishes approval.resolved re-entrantly.
	mu        sync.Mutex
	w         io.Writer
	streaming bool
}

// NewPrinter writes events to w. in and broker enable the interactive
// approval prompt; either may be nil, leaving requests to the broker's
// timeout.
func NewPrinter(w io.Writer, in io.Reader, broker *approval.Broker) *Printer {
	p := &Printer{w: w, broker: broker}
	if in != nil {
		p.in = bufio.NewReader(in)
	}
	return p
}

// Attach subscribes the printer to every event on the bus.
func (p *Printer) Attach(bus *event.Bus) {
	bus.SubscribeAll(p.handle)
}

func (p *Printer) handle(e event.Event) {
	switch e := e.(type) {
	case event.RunStartedEvent:
		p.line("run %s started", e.RunID)
	case event.PhaseChangedEvent:
		p.line("phase: %s", e.CurrentPhase)
	case event.GoalSetEvent:
		p.line("goal: %s", e.Goal)
	case event.PlanCreatedEvent:
		p.line("plan: %d steps", len(e.Steps))
		for i, step := range e.Steps {
			p.line("  %d. %s", i+1, step)
		}
	case event.ChecklistUpdatedEvent:
		p.line("item %d %s (%d of %d left)", e.ItemID, e.Status, e.Remaining, e.Total)
	case event.ToolCompletedEvent:
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		if e.Path != "" {
			p.line("tool %s %s: %s", e.Tool, status, e.Path)
		} else {
			p.line("tool %s %s", e.Tool, status)
		}
	case event.CommandRunEvent:
		p.line("$ %s (exit %d)", e.Command, e.ExitCode)
	case event.FileChangedEvent:
		p.line("file %s: %s", e.Operation, e.Path)
	case event.ExternalChangeEvent:
		p.line("external change: %s", e.Path)
	case event.LockQueuedEvent:
		p.line("waiting for lock on %s (held by %s, position %d)",
			filepath.Base(e.Path), e.Holder, e.Position)
	case event.ReplyChunkEvent:
		p.chunk(e.Text)
	case event.ApprovalRequestedEvent:
		p.prompt(e)
	case event.ApprovalResolvedEvent:
		p.line("approval %s: %s", e.Decision, e.Command)
	case event.ContextCompactedEvent:
		p.line("context compacted: %d entries summarized, %d kept", e.Removed, e.Kept)
	case event.StuckDetectedEvent:
		p.line("possible loop: %d similar commands in a row", e.Commands)
	case event.RunCompletedEvent:
		if e.Success {
			p.line("done: %s", e.Summary)
		} else {
			p.line("stopped: %s", e.Summary)
		}
	}
}

// line closes any open reply stream and writes one formatted line.
func (p *Printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushStream()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// chunk writes streamed reply text without a newline so the reply
// reads as continuous prose.
func (p *Printer) chunk(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streaming = true
	fmt.Fprint(p.w, text)
}

func (p *Printer) flushStream() {
	if p.streaming {
		fmt.Fprintln(p.w)
		p.streaming = false
	}
}

// ask writes a prompt without a newline.
func (p *Printer) ask(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushStream()
	fmt.Fprintf(p.w, format, args...)
}

// prompt asks for a decision on stdin and forwards it to the broker.
// The broker registers the request before publishing, so resolving
// from inside the handler is safe.
func (p *Printer) prompt(e event.ApprovalRequestedEvent) {
	p.line("approval required: %s", e.Command)
	if e.Reason != "" {
		p.line("  reason: %s", e.Reason)
	}
	if p.in == nil || p.broker == nil {
		p.line("  no terminal to answer; waiting for the broker timeout")
		return
	}

	p.ask("approve? [y/N/e] ")
	answer, err := p.in.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if err != nil && answer == "" {
		_ = p.broker.Reject(e.RequestID, "input closed")
		return
	}

	switch answer {
	case "y", "yes":
		_ = p.broker.Approve(e.RequestID)
	case "e", "edit":
		p.ask("replacement command: ")
		edited, _ := p.in.ReadString('\n')
		edited = strings.TrimSpace(edited)
		if edited == "" {
			_ = p.broker.Reject(e.RequestID, "no replacement given")
			return
		}
		_ = p.broker.ApproveWithEdits(e.RequestID, edited)
	default:
		_ = p.broker.Reject(e.RequestID, "rejected at prompt")
	}
}
