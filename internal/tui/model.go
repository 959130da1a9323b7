package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/session"
)

// inputTarget says what the shared text input currently collects.
type inputTarget int

const (
	inputNone inputTarget = iota
	inputEditCommand
	inputFeedback
)

// pendingApproval is the approval request awaiting a decision.
type pendingApproval struct {
	id      string
	command string
	reason  string
}

// Model renders one agent run. It rebuilds its view from session
// snapshots whenever a bus event arrives, so a missed event can shift
// timing but never state. The only control it exerts on the run is
// cancel, queued feedback, and approval decisions.
type Model struct {
	sess   *session.Session
	broker *approval.Broker
	start  tea.Cmd

	spinner  spinner.Model
	viewport viewport.Model
	input    textinput.Model

	width  int
	height int
	ready  bool

	state    session.RunState
	phase    string
	goal     string
	reply    string
	notice   string
	pending  *pendingApproval
	inputTo  inputTarget
	active   bool
	failed   bool
	quitting bool
	runErr   error
}

// NewModel builds the monitor model. start, when non-nil, launches
// the run from Init, after the program loop is already receiving, so
// no event precedes the monitor.
func NewModel(sess *session.Session, broker *approval.Broker, start tea.Cmd) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = phaseStyle

	ti := textinput.New()
	ti.CharLimit = 400

	return Model{
		sess:    sess,
		broker:  broker,
		start:   start,
		spinner: sp,
		input:   ti,
		state:   sess.Snapshot().RunState,
	}
}

func (m Model) Init() tea.Cmd {
	if m.start != nil {
		return tea.Batch(m.spinner.Tick, m.start)
	}
	return m.spinner.Tick
}

// refresh pulls the authoritative run state from the session and
// rebuilds the scrollback, keeping the viewport pinned to the bottom
// unless the user has scrolled away.
func (m *Model) refresh() {
	snap := m.sess.Snapshot()
	m.state = snap.RunState
	if m.goal == "" {
		m.goal = m.state.Checklist.Goal
	}
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.layout()
	m.viewport.SetContent(m.scrollback())
	if follow {
		m.viewport.GotoBottom()
	}
}

// layout sizes the viewport to whatever the fixed sections leave over.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	chrome := sectionHeight(m.renderHeader()) +
		sectionHeight(m.renderStatus()) +
		sectionHeight(m.renderGoal()) +
		sectionHeight(m.renderChecklist()) +
		sectionHeight(m.renderNotice()) +
		sectionHeight(m.renderApproval()) +
		sectionHeight(m.renderFeedbackInput()) +
		sectionHeight(m.renderHelp())

	m.viewport.Width = max(m.width-logStyle.GetHorizontalFrameSize(), 10)
	m.viewport.Height = max(m.height-chrome-logStyle.GetVerticalFrameSize(), 3)
}

func sectionHeight(s string) int {
	if s == "" {
		return 0
	}
	return countLines(s)
}

func countLines(s string) int {
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
