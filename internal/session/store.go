package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// sessionFileName is the snapshot file within a session's directory.
const sessionFileName = "session.json"

// Info summarizes one stored session without loading its full state.
type Info struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Mode    string    `json:"mode"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Phase   string    `json:"phase"`
	Steps   int       `json:"steps"`

	// Locked reports whether a process currently has the session open.
	// Stores leave it false; the Manager fills it in.
	Locked bool `json:"locked,omitempty"`
}

// Store persists session snapshots. Load returns ErrSessionNotFound for
// unknown ids and ErrSessionCorrupted when stored data cannot be
// decoded; both are matched with errors.Is.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id string) (Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewStore builds the persistence backend selected by
// cfg.Session.Store: one JSON file per session, or a single SQLite
// database, both under the configured session directory.
func NewStore(cfg *config.Config) (Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	root := storageRoot(cfg)
	switch cfg.Session.Store {
	case "", "file":
		return NewFileStore(root)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(root, "sessions.db"))
	default:
		return nil, fmt.Errorf("unknown session store %q (valid: %s)",
			cfg.Session.Store, strings.Join(config.ValidSessionStores(), ", "))
	}
}

// storageRoot resolves the directory session state lives in.
func storageRoot(cfg *config.Config) string {
	if cfg != nil && cfg.Session.Dir != "" {
		return cfg.Session.Dir
	}
	return filepath.Join(config.DataDir(), "sessions")
}

// FileStore keeps one directory per session under its root, each
// holding a session.json snapshot. Writes go through a temp file and
// rename, so a snapshot on disk is never partially written.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it if
// needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the directory the store writes under.
func (s *FileStore) Root() string { return s.root }

// sessionDir returns the directory holding one session's files.
func (s *FileStore) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

// Save writes the snapshot atomically. The snapshot must carry an id.
func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("session snapshot has no id")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.sessionDir(snap.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	return atomicWrite(filepath.Join(dir, sessionFileName), data)
}

// Load reads a snapshot by id.
func (s *FileStore) Load(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), sessionFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, apperrors.ErrSessionNotFound
		}
		return Snapshot{}, fmt.Errorf("read session %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrSessionCorrupted, err)
	}
	if snap.ID != id {
		return Snapshot{}, fmt.Errorf("%w: file records id %q", apperrors.ErrSessionCorrupted, snap.ID)
	}
	return snap, nil
}

// List returns summaries for every stored session, ordered by id.
// Session ids are ULIDs, so the order is creation order. Entries that
// cannot be read are skipped.
func (s *FileStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := s.readInfo(entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// readInfo decodes the summary fields of one stored snapshot. The
// checklist is kept raw and only counted, so listing stays cheap for
// sessions with long logs.
func (s *FileStore) readInfo(id string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), sessionFileName))
	if err != nil {
		return Info{}, err
	}

	var header struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Mode      string    `json:"mode"`
		Created   time.Time `json:"created"`
		Updated   time.Time `json:"updated"`
		Phase     string    `json:"phase"`
		Checklist struct {
			Items json.RawMessage `json:"items"`
		} `json:"checklist"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Info{}, err
	}

	steps := 0
	if header.Checklist.Items != nil {
		var items []json.RawMessage
		if err := json.Unmarshal(header.Checklist.Items, &items); err == nil {
			steps = len(items)
		}
	}

	return Info{
		ID:      header.ID,
		Name:    header.Name,
		Mode:    header.Mode,
		Created: header.Created,
		Updated: header.Updated,
		Phase:   header.Phase,
		Steps:   steps,
	}, nil
}

// Delete removes a session's directory and everything in it.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.sessionDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return apperrors.ErrSessionNotFound
		}
		return fmt.Errorf("stat session %s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; the store holds no resources between calls.
func (s *FileStore) Close() error { return nil }

// atomicWrite writes data to path via a temp file in the same
// directory and a rename, so readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	renamed = true
	return nil
}
