package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/filelock"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/tool"
)

// Manager owns every live session in the process. Sessions share one
// file lock coordinator, so file mutations from concurrent runs are
// arbitrated in one place, and one snapshot store. Each open session
// additionally holds a process lock on disk so a second termai process
// cannot open it concurrently.
type Manager struct {
	cfg    *config.Config
	store  Store
	locks  *filelock.Coordinator
	bus    *event.Bus
	logger *logging.Logger
	namer  *Namer
	root   string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore overrides the snapshot store built from configuration.
func WithStore(s Store) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// WithCoordinator shares an existing file lock coordinator instead of
// creating one.
func WithCoordinator(c *filelock.Coordinator) ManagerOption {
	return func(m *Manager) { m.locks = c }
}

// WithNamer attaches a background namer. The Manager starts it, wires
// its callback to rename-and-persist, and stops it on Close.
func WithNamer(n *Namer) ManagerOption {
	return func(m *Manager) { m.namer = n }
}

// NewManager creates a Manager. Unless overridden by options, the
// snapshot store comes from cfg.Session and the file lock coordinator
// is created fresh. Completed runs are persisted automatically via the
// event bus.
func NewManager(cfg *config.Config, bus *event.Bus, logger *logging.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	m := &Manager{
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		root:     storageRoot(cfg),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		store, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		m.store = store
	}
	if m.locks == nil {
		m.locks = filelock.NewCoordinator(cfg, bus, logger)
	}
	if m.namer != nil {
		m.namer.OnRename(m.applyName)
		m.namer.Start()
	}
	if m.bus != nil {
		m.bus.Subscribe("run.completed", func(ev event.Event) {
			if e, ok := ev.(event.RunCompletedEvent); ok {
				m.persist(e.SessionID)
			}
		})
	}
	return m, nil
}

// Coordinator returns the shared file lock coordinator.
func (m *Manager) Coordinator() *filelock.Coordinator { return m.locks }

// Store returns the snapshot store.
func (m *Manager) Store() Store { return m.store }

// Root returns the directory session state and locks live under.
func (m *Manager) Root() string { return m.root }

// Create starts a new session: ULID id, process lock, initial snapshot,
// and a queued naming request when a namer is attached. An empty mode
// falls back to the configured default.
func (m *Manager) Create(ctx context.Context, prompt string, mode tool.Mode) (*Session, error) {
	if mode == "" {
		parsed, err := tool.ParseMode(m.cfg.Tools.DefaultMode)
		if err != nil {
			parsed = tool.ModeCopilot
		}
		mode = parsed
	}

	s := New(prompt, mode)
	s.bus = m.bus
	s.logger = m.logger.WithSession(s.ID())

	lock, err := AcquireLock(m.root, s.ID(), m.logger)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.lock = lock

	if err := m.store.Save(ctx, s.Snapshot()); err != nil {
		s.releaseLock()
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if m.namer != nil {
		m.namer.Request(s.ID(), prompt)
	}

	m.logger.Info("session created",
		"session_id", s.ID(),
		"mode", string(mode))
	return s, nil
}

// Resume opens a stored session, loading its snapshot and taking the
// process lock; the restored run state is stashed for the next attached
// engine. If the session is already open in this process the live
// instance is returned instead.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	live, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return live, nil
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	lock, err := AcquireLock(m.root, id, m.logger)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	s := FromSnapshot(snap)
	s.bus = m.bus
	s.logger = m.logger.WithSession(id)
	s.lock = lock

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session resumed",
		"session_id", id,
		"phase", snap.Phase)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the live sessions ordered by id (creation order).
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Stored lists every persisted session, marking the ones some process
// currently has open.
func (m *Manager) Stored(ctx context.Context) ([]Info, error) {
	infos, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range infos {
		if _, ok := m.sessions[infos[i].ID]; ok {
			infos[i].Locked = true
			continue
		}
		_, infos[i].Locked = IsLocked(m.root, infos[i].ID)
	}
	return infos, nil
}

// QueueFeedback appends feedback to a live session's queue.
func (m *Manager) QueueFeedback(id, text string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	s.QueueFeedback(text)
	return nil
}

// Save persists a live session's current snapshot.
func (m *Manager) Save(ctx context.Context, id string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	return m.store.Save(ctx, s.Snapshot())
}

// Remove deletes a session from the store and releases its locks. A
// live session is cancelled first; a session open in another process is
// refused.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if live {
		s.Cancel()
		s.releaseLock()
	} else if lock, held := IsLocked(m.root, id); held {
		return fmt.Errorf("%w: held by PID %d on %s",
			apperrors.ErrSessionLocked, lock.PID, lock.Hostname)
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	// A stale lock file may outlive its session.
	_ = os.Remove(LockPath(m.root, id))

	m.logger.Info("session removed", "session_id", id)
	return nil
}

// Close shuts the Manager down: cancels live sessions, persists their
// final snapshots, releases process locks, stops the namer, and closes
// the store.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs error
	for _, s := range sessions {
		s.Cancel()
		if err := m.store.Save(ctx, s.Snapshot()); err != nil {
			errs = apperrors.Join(errs, err)
		}
		s.releaseLock()
	}

	if m.namer != nil {
		m.namer.Stop()
	}
	if err := m.store.Close(); err != nil {
		errs = apperrors.Join(errs, err)
	}
	return errs
}

// applyName is the namer callback: rename the live session and persist
// the new name.
func (m *Manager) applyName(sessionID, name string) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	s.SetName(name)
	if err := m.store.Save(context.Background(), s.Snapshot()); err != nil {
		m.logger.Warn("failed to persist session name",
			"session_id", sessionID,
			"error", err.Error())
		return
	}
	m.logger.Debug("session renamed",
		"session_id", sessionID,
		"name", name)
}

// persist saves a live session's snapshot, logging failures.
func (m *Manager) persist(id string) {
	s, ok := m.Get(id)
	if !ok {
		return
	}
	if err := m.store.Save(context.Background(), s.Snapshot()); err != nil {
		m.logger.Warn("failed to persist session snapshot",
			"session_id", id,
			"error", err.Error())
	}
}
