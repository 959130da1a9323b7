// Package session manages the lifetime and persistence of agent
// sessions. A Session pairs an identity (ULID, friendly name, capability
// mode, opening prompt) with the run engine working on its behalf and a
// queue of user feedback the engine drains at its next checkpoint. The
// Manager owns every live session in the process and shares one file
// lock coordinator and one snapshot store across them; snapshots
// round-trip the checklist, run counters, and context log so a session
// can be resumed after a restart.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/agent/contextlog"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/tool"
	"github.com/TannerBurns/termai/internal/util"
)

// defaultNameLen caps the placeholder name derived from the opening
// prompt before the namer supplies a generated one.
const defaultNameLen = 48

// Counters are the run counters a snapshot carries across a restart.
type Counters struct {
	Iterations     int `json:"iterations"`
	ToolCalls      int `json:"tool_calls"`
	CommandsRun    int `json:"commands_run"`
	EmptyResponses int `json:"empty_responses"`
	UnknownTools   int `json:"unknown_tools"`
	Compactions    int `json:"compactions"`
}

// RunState is the portion of a snapshot owned by the run engine: the
// current phase, the checklist, the context log, and the counters. The
// engine exposes it through the Runner interface; a restored session
// hands it back when a new engine is attached.
type RunState struct {
	Phase     string             `json:"phase"`
	Checklist checklist.Snapshot `json:"checklist"`
	Log       []contextlog.Entry `json:"log,omitempty"`
	Counters  Counters           `json:"counters"`
	Summary   string             `json:"summary,omitempty"`
}

// Snapshot is the persisted form of one session: identity fields plus
// the run state. Stores serialize it as JSON and must round-trip every
// field.
type Snapshot struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Mode    string    `json:"mode"`
	Prompt  string    `json:"prompt"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	RunState
}

// Runner is the narrow surface of the run engine a session holds: just
// enough to cancel it and snapshot its state. The orchestrator
// implements it; sessions never depend on the engine's concrete type.
type Runner interface {
	// Active reports whether the run is still executing.
	Active() bool

	// Cancel stops the run. Implementations must be idempotent.
	Cancel()

	// State returns the engine's current persistable state.
	State() RunState
}

// Session is one agent session. Identity fields are fixed at creation;
// the name, feedback queue, and attached runner change over its life.
// All methods are safe for concurrent use.
type Session struct {
	id      string
	prompt  string
	mode    tool.Mode
	created time.Time

	bus    *event.Bus
	logger *logging.Logger

	mu       sync.Mutex
	name     string
	feedback []string
	runner   Runner
	restored *RunState
	lock     *Lock
}

// New creates a Session for the given prompt and capability mode. The
// ID is a ULID, so lexical order matches creation order; the name is a
// placeholder derived from the prompt until the namer replaces it.
func New(prompt string, mode tool.Mode) *Session {
	return &Session{
		id:      ulid.Make().String(),
		prompt:  prompt,
		mode:    mode,
		created: time.Now(),
		name:    defaultName(prompt),
	}
}

// FromSnapshot rebuilds a Session from its persisted form. The run
// state is stashed for the next attached engine; unknown modes fall
// back to copilot.
func FromSnapshot(snap Snapshot) *Session {
	mode, err := tool.ParseMode(snap.Mode)
	if err != nil {
		mode = tool.ModeCopilot
	}
	state := snap.RunState
	return &Session{
		id:       snap.ID,
		prompt:   snap.Prompt,
		mode:     mode,
		created:  snap.Created,
		name:     snap.Name,
		restored: &state,
	}
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// Prompt returns the opening prompt the session was created for.
func (s *Session) Prompt() string { return s.prompt }

// Mode returns the session's capability mode.
func (s *Session) Mode() tool.Mode { return s.mode }

// Created returns when the session was created.
func (s *Session) Created() time.Time { return s.created }

// Name returns the session's current friendly name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName replaces the session's friendly name. Empty names are
// ignored.
func (s *Session) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Attach hands the session its run engine. Any state restored from a
// snapshot is considered consumed: the engine owns it from here on.
func (s *Session) Attach(r Runner) {
	s.mu.Lock()
	s.runner = r
	s.restored = nil
	s.mu.Unlock()
}

// Active reports whether an attached engine is still executing.
func (s *Session) Active() bool {
	s.mu.Lock()
	r := s.runner
	s.mu.Unlock()
	return r != nil && r.Active()
}

// Cancel stops the attached engine, if any. Safe to call repeatedly
// and with no engine attached.
func (s *Session) Cancel() {
	s.mu.Lock()
	r := s.runner
	s.mu.Unlock()
	if r != nil {
		r.Cancel()
	}
}

// QueueFeedback appends user feedback for the engine to drain at its
// next checkpoint. Returns the number of pending entries. Blank input
// is ignored.
func (s *Session) QueueFeedback(text string) int {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if text != "" {
		s.feedback = append(s.feedback, text)
	}
	pending := len(s.feedback)
	bus := s.bus
	s.mu.Unlock()

	if text != "" && bus != nil {
		bus.Publish(event.NewFeedbackQueuedEvent(s.id, pending))
	}
	return pending
}

// DrainFeedback removes and returns all pending feedback in the order
// it was queued. Returns nil when the queue is empty.
func (s *Session) DrainFeedback() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.feedback) == 0 {
		return nil
	}
	drained := s.feedback
	s.feedback = nil
	return drained
}

// PendingFeedback returns the number of queued feedback entries.
func (s *Session) PendingFeedback() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feedback)
}

// RestoredState returns the run state loaded from a snapshot, if the
// session was resumed and no engine has been attached yet.
func (s *Session) RestoredState() (RunState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored == nil {
		return RunState{}, false
	}
	return *s.restored, true
}

// Snapshot captures the session's persisted form: identity fields plus
// whatever run state is current, the attached engine's if there is one
// and otherwise the state carried over from a resume.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ID:      s.id,
		Name:    s.name,
		Mode:    string(s.mode),
		Prompt:  s.prompt,
		Created: s.created,
		Updated: time.Now(),
	}
	r := s.runner
	if r == nil && s.restored != nil {
		snap.RunState = *s.restored
	}
	s.mu.Unlock()

	if r != nil {
		snap.RunState = r.State()
	}
	return snap
}

// releaseLock releases the session's process lock, if held.
func (s *Session) releaseLock() {
	s.mu.Lock()
	l := s.lock
	s.lock = nil
	s.mu.Unlock()
	if l != nil {
		_ = l.Release()
	}
}

// defaultName derives a placeholder name from the opening prompt:
// whitespace collapsed, truncated to a listing-friendly length.
func defaultName(prompt string) string {
	fields := strings.Fields(prompt)
	if len(fields) == 0 {
		return "untitled session"
	}
	return util.TruncateString(strings.Join(fields, " "), defaultNameLen)
}
