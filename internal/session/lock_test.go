package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stalePID is a PID no real process will hold.
const stalePID = 99999999

// writeStaleLock plants a lock file owned by a dead process.
func writeStaleLock(t *testing.T, root, sessionID string) {
	t.Helper()
	lock := Lock{
		SessionID:  sessionID,
		PID:        stalePID,
		Hostname:   "test-host",
		AcquiredAt: time.Now().Add(-time.Hour),
	}
	data, err := json.Marshal(lock)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(LockPath(root, sessionID), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// Lock Tests
// =============================================================================

func TestAcquireLock_Release(t *testing.T) {
	root := t.TempDir()
	sessionID := "01JF0000000000000000000001"

	lock, err := AcquireLock(root, sessionID, nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if lock.SessionID != sessionID {
		t.Errorf("SessionID = %q, want %q", lock.SessionID, sessionID)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
	if lock.AcquiredAt.IsZero() {
		t.Error("AcquiredAt should be set")
	}

	if _, err := os.Stat(LockPath(root, sessionID)); err != nil {
		t.Errorf("lock file missing: %v", err)
	}
	if _, held := IsLocked(root, sessionID); !held {
		t.Error("IsLocked should report the session as held")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(LockPath(root, sessionID)); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}
	if _, held := IsLocked(root, sessionID); held {
		t.Error("IsLocked should report released session as free")
	}
}

func TestAcquireLock_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet", "there")

	lock, err := AcquireLock(root, "01JF0000000000000000000002", nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root was not created: %v", err)
	}
}

func TestAcquireLock_AlreadyHeld(t *testing.T) {
	root := t.TempDir()
	sessionID := "01JF0000000000000000000003"

	first, err := AcquireLock(root, sessionID, nil)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(root, sessionID, nil)
	if !errors.Is(err, apperrors.ErrSessionLocked) {
		t.Errorf("expected ErrSessionLocked, got %v", err)
	}
}

func TestAcquireLock_CleansStaleLock(t *testing.T) {
	root := t.TempDir()
	sessionID := "01JF0000000000000000000004"
	writeStaleLock(t, root, sessionID)

	lock, err := AcquireLock(root, sessionID, nil)
	if err != nil {
		t.Fatalf("AcquireLock over stale lock failed: %v", err)
	}
	defer lock.Release()

	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want current process %d", lock.PID, os.Getpid())
	}
}

func TestLock_Release_Idempotent(t *testing.T) {
	root := t.TempDir()
	lock, err := AcquireLock(root, "01JF0000000000000000000005", nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := lock.Release(); err != nil {
			t.Errorf("Release #%d failed: %v", i+1, err)
		}
	}
}

func TestLock_Release_Nil(t *testing.T) {
	var lock *Lock
	if err := lock.Release(); err != nil {
		t.Errorf("Release on nil lock failed: %v", err)
	}
}

func TestLock_Release_NotOwner(t *testing.T) {
	root := t.TempDir()
	sessionID := "01JF0000000000000000000006"

	lock, err := AcquireLock(root, sessionID, nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	// Another process force-cleaned and re-acquired.
	writeStaleLock(t, root, sessionID)

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(LockPath(root, sessionID)); err != nil {
		t.Error("a lock owned by another process should not be removed")
	}
}

func TestIsLocked_StaleLock(t *testing.T) {
	root := t.TempDir()
	sessionID := "01JF0000000000000000000007"
	writeStaleLock(t, root, sessionID)

	lock, held := IsLocked(root, sessionID)
	if held {
		t.Error("stale lock should not count as held")
	}
	if lock == nil {
		t.Fatal("IsLocked should still return the stale record")
	}
	if lock.PID != stalePID {
		t.Errorf("PID = %d, want %d", lock.PID, stalePID)
	}
}

func TestIsLocked_NoLock(t *testing.T) {
	if lock, held := IsLocked(t.TempDir(), "missing"); held || lock != nil {
		t.Error("IsLocked on a missing lock should return nil, false")
	}
}

func TestCleanStaleLocks(t *testing.T) {
	root := t.TempDir()

	writeStaleLock(t, root, "01JF000000000000000000000A")
	writeStaleLock(t, root, "01JF000000000000000000000B")

	live, err := AcquireLock(root, "01JF000000000000000000000C", nil)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer live.Release()

	cleaned, err := CleanStaleLocks(root, nil)
	if err != nil {
		t.Fatalf("CleanStaleLocks failed: %v", err)
	}
	if len(cleaned) != 2 {
		t.Fatalf("cleaned %d locks, want 2: %v", len(cleaned), cleaned)
	}

	if _, held := IsLocked(root, "01JF000000000000000000000C"); !held {
		t.Error("live lock should survive cleaning")
	}
	if _, err := os.Stat(LockPath(root, "01JF000000000000000000000A")); !os.IsNotExist(err) {
		t.Error("stale lock file should be removed")
	}
}

func TestCleanStaleLocks_MissingRoot(t *testing.T) {
	cleaned, err := CleanStaleLocks(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil {
		t.Fatalf("CleanStaleLocks failed: %v", err)
	}
	if len(cleaned) != 0 {
		t.Errorf("cleaned %d locks from a missing root, want 0", len(cleaned))
	}
}

func TestReadLock_Missing(t *testing.T) {
	if _, err := ReadLock(filepath.Join(t.TempDir(), "absent.lock")); err == nil {
		t.Error("expected error for missing lock file")
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("/data/sessions", "abc")
	want := filepath.Join("/data/sessions", "abc.lock")
	if got != want {
		t.Errorf("LockPath = %q, want %q", got, want)
	}
}
