package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/TannerBurns/termai/internal/event"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case busMsg:
		m.handleEvent(msg.event)
		m.refresh()
		return m, nil

	case runFinishedMsg:
		m.active = false
		m.runErr = msg.err
		m.refresh()
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputTo != inputNone {
		switch msg.String() {
		case "esc":
			m.closeInput()
			return m, nil
		case "enter":
			m.submitInput()
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	if m.pending != nil {
		switch msg.String() {
		case "y":
			m.decide(func(id string) error { return m.broker.Approve(id) })
			return m, nil
		case "n":
			m.decide(func(id string) error { return m.broker.Reject(id, "rejected in monitor") })
			return m, nil
		case "e":
			m.inputTo = inputEditCommand
			m.input.Prompt = "edit> "
			m.input.Placeholder = ""
			m.input.SetValue(m.pending.command)
			m.input.CursorEnd()
			m.input.Focus()
			return m, textinput.Blink
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.active {
			m.sess.Cancel()
			m.quitting = true
			m.notice = "cancelling..."
			return m, nil
		}
		return m, tea.Quit

	case "f":
		if m.active {
			m.inputTo = inputFeedback
			m.input.Prompt = "feedback> "
			m.input.Placeholder = "guidance for the agent's next checkpoint"
			m.input.Reset()
			m.input.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleEvent folds one bus event into the model. The session
// snapshot carries most state; only transient signals (reply stream,
// pending approval, notices) live here.
func (m *Model) handleEvent(e event.Event) {
	switch e := e.(type) {
	case event.RunStartedEvent:
		m.active = true
		m.failed = false
		m.goal = ""
		m.reply = ""
		m.notice = ""
		m.runErr = nil

	case event.RunCompletedEvent:
		m.active = false
		m.failed = !e.Success

	case event.PhaseChangedEvent:
		m.phase = e.CurrentPhase

	case event.GoalSetEvent:
		m.goal = e.Goal

	case event.ReplyChunkEvent:
		m.reply += e.Text

	case event.ApprovalRequestedEvent:
		m.pending = &pendingApproval{id: e.RequestID, command: e.Command, reason: e.Reason}

	case event.ApprovalResolvedEvent:
		// The broker resolves on timeout and cancellation too; drop a
		// prompt the user can no longer answer.
		if m.pending != nil && m.pending.id == e.RequestID {
			m.pending = nil
			if m.inputTo == inputEditCommand {
				m.closeInput()
			}
		}

	case event.LockQueuedEvent:
		m.notice = fmt.Sprintf("waiting for lock on %s (held by %s, position %d)",
			filepath.Base(e.Path), e.Holder, e.Position)

	case event.ExternalChangeEvent:
		m.notice = fmt.Sprintf("%s was modified outside this session", filepath.Base(e.Path))

	case event.StuckDetectedEvent:
		m.notice = fmt.Sprintf("possible loop: %d similar commands in a row", e.Commands)

	case event.ContextCompactedEvent:
		m.notice = fmt.Sprintf("context compacted: %d entries summarized, %d kept", e.Removed, e.Kept)
	}
}

// decide hands the pending request's id to the broker and clears the
// prompt. A request the broker no longer knows was resolved elsewhere;
// the error is shown but nothing else needs to happen.
func (m *Model) decide(fn func(id string) error) {
	if m.pending == nil {
		return
	}
	id := m.pending.id
	m.pending = nil
	if m.broker == nil {
		return
	}
	if err := fn(id); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) submitInput() {
	value := strings.TrimSpace(m.input.Value())
	target := m.inputTo
	m.closeInput()

	switch target {
	case inputEditCommand:
		if value == "" {
			m.decide(func(id string) error { return m.broker.Reject(id, "edited to nothing") })
			return
		}
		m.decide(func(id string) error { return m.broker.ApproveWithEdits(id, value) })

	case inputFeedback:
		if value != "" {
			m.sess.QueueFeedback(value)
			m.notice = "feedback queued"
		}
	}
}

func (m *Model) closeInput() {
	m.inputTo = inputNone
	m.input.Blur()
	m.input.Reset()
}
