// Package tui renders a live monitor for one agent run: phase,
// checklist progress, the activity log, streamed replies, and
// approval prompts. It observes the event bus and reads session
// snapshots; the run engine never depends on it.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/session"
)

// Monitor wraps the bubbletea program for one session.
type Monitor struct {
	sess   *session.Session
	broker *approval.Broker
	bus    *event.Bus
}

// New builds a monitor for the given session. The broker may be nil
// when commands are auto-approved; approval prompts then never appear.
func New(sess *session.Session, broker *approval.Broker, bus *event.Bus) *Monitor {
	return &Monitor{sess: sess, broker: broker, bus: bus}
}

// Run starts the program and blocks until the user quits or ctx ends.
// run, when non-nil, is launched by the model once the program loop is
// live, so every event of the run reaches the monitor. The returned
// error is the run's own outcome; monitor failures are wrapped.
func (m *Monitor) Run(ctx context.Context, run func() error) error {
	model := NewModel(m.sess, m.broker, startRun(run))
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if m.bus != nil {
		// Send blocks until the loop consumes; after the program exits
		// it drops messages, so late events are harmless.
		m.bus.SubscribeAll(func(e event.Event) {
			program.Send(busMsg{event: e})
		})
	}

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.runErr
	}
	return nil
}
