package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/logging"
)

// lockSuffix names the per-session lock file, kept beside the session
// data under the storage root.
const lockSuffix = ".lock"

// Lock marks a session as open in one process. The file records the
// holder's PID so other processes can tell a live lock from a stale
// one left by a crash.
type Lock struct {
	SessionID  string    `json:"session_id"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`

	path   string
	logger *logging.Logger
}

// LockPath returns the lock file location for a session.
func LockPath(root, sessionID string) string {
	return filepath.Join(root, sessionID+lockSuffix)
}

// AcquireLock takes the process lock for a session, creating the root
// directory if needed. A lock held by a live process yields
// ErrSessionLocked; a stale lock from a dead process is cleaned and
// re-acquired.
func AcquireLock(root, sessionID string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	path := LockPath(root, sessionID)

	if existing, err := ReadLock(path); err == nil {
		if processAlive(existing.PID) {
			return nil, fmt.Errorf("%w: held by PID %d on %s",
				apperrors.ErrSessionLocked, existing.PID, existing.Hostname)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale session lock: %w", err)
		}
		logger.Warn("stale session lock cleaned",
			"session_id", sessionID,
			"old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &Lock{
		SessionID:  sessionID,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now(),
		path:       path,
		logger:     logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session lock: %w", err)
	}

	// O_EXCL makes concurrent acquirers race on file creation rather
	// than on a read-check-write window.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := ReadLock(path); readErr == nil {
				return nil, fmt.Errorf("%w: held by PID %d on %s",
					apperrors.ErrSessionLocked, existing.PID, existing.Hostname)
			}
			return nil, apperrors.ErrSessionLocked
		}
		return nil, fmt.Errorf("create session lock: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write session lock: %w", err)
	}

	logger.Info("session lock acquired",
		"session_id", sessionID,
		"pid", lock.PID)
	return lock, nil
}

// Release removes the lock file if this process still owns it. Safe to
// call repeatedly and on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	existing, err := ReadLock(l.path)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		// Someone force-cleaned and re-acquired; the file is theirs.
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session lock: %w", err)
	}
	if l.logger != nil {
		l.logger.Info("session lock released", "session_id", l.SessionID)
	}
	return nil
}

// ReadLock parses a lock file.
func ReadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse session lock: %w", err)
	}
	lock.path = path
	return &lock, nil
}

// IsLocked reports whether a live process holds the session's lock,
// returning the lock record when one exists (stale or not).
func IsLocked(root, sessionID string) (*Lock, bool) {
	lock, err := ReadLock(LockPath(root, sessionID))
	if err != nil {
		return nil, false
	}
	return lock, processAlive(lock.PID)
}

// CleanStaleLocks removes lock files whose owning process is gone and
// returns the affected session ids.
func CleanStaleLocks(root string, logger *logging.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session locks: %w", err)
	}

	var cleaned []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), lockSuffix) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		lock, err := ReadLock(path)
		if err != nil || processAlive(lock.PID) {
			continue
		}
		if err := os.Remove(path); err != nil {
			continue
		}
		id := lock.SessionID
		if id == "" {
			id = strings.TrimSuffix(entry.Name(), lockSuffix)
		}
		logger.Warn("stale session lock cleaned",
			"session_id", id,
			"old_pid", lock.PID)
		cleaned = append(cleaned, id)
	}
	return cleaned, nil
}

// processAlive reports whether a PID refers to a running process.
// Signal 0 probes existence without delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
