package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/TannerBurns/termai/internal/event"
)

// busMsg wraps one bus event bridged into the program loop.
type busMsg struct {
	event event.Event
}

// runFinishedMsg reports that the Run call driving this monitor
// returned.
type runFinishedMsg struct {
	err error
}

// startRun wraps an engine run as a command so the run begins only
// once the program loop is consuming messages.
func startRun(run func() error) tea.Cmd {
	if run == nil {
		return nil
	}
	return func() tea.Msg {
		return runFinishedMsg{err: run()}
	}
}
