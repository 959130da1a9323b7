package shell

import (
	"strings"
	"testing"
	"time"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
)

func newTestProcManager(t *testing.T) *ProcManager {
	t.Helper()
	cfg := config.Default()
	cfg.Shell.Program = "bash"
	m := NewProcManager(cfg, t.TempDir(), nil)
	t.Cleanup(m.StopAll)
	return m
}

// waitExit polls until the process stops running.
func waitExit(t *testing.T, m *ProcManager, id string) ProcessInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, info := range m.List() {
			if info.ID == id && !info.Running {
				return info
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process %s did not exit in time", id)
	return ProcessInfo{}
}

func TestProcManager_StartAndFinish(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	info, err := m.Start("echo bg-out")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if info.ID == "" || info.Command != "echo bg-out" {
		t.Errorf("unexpected info %+v", info)
	}

	done := waitExit(t, m, info.ID)
	if done.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", done.ExitCode)
	}

	out, err := m.Output(info.ID)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if !strings.Contains(out, "bg-out") {
		t.Errorf("Output = %q, want it to contain %q", out, "bg-out")
	}
}

func TestProcManager_ExitCodeRecorded(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	info, err := m.Start("exit 7")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := waitExit(t, m, info.ID)
	if done.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", done.ExitCode)
	}
}

func TestProcManager_Stop(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	info, err := m.Start("sleep 30")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.Stop(info.ID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	done := waitExit(t, m, info.ID)
	if done.Running {
		t.Error("process still running after Stop")
	}
	if done.ExitCode == 0 {
		t.Error("killed process should not report exit code 0")
	}

	// Stopping again is a no-op.
	if err := m.Stop(info.ID); err != nil {
		t.Errorf("second Stop() error = %v, want nil", err)
	}
}

func TestProcManager_UnknownID(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	if err := m.Stop("nope"); !apperrors.Is(err, ErrUnknownProcess) {
		t.Errorf("Stop(unknown) error = %v, want ErrUnknownProcess", err)
	}
	if _, err := m.Output("nope"); !apperrors.Is(err, ErrUnknownProcess) {
		t.Errorf("Output(unknown) error = %v, want ErrUnknownProcess", err)
	}
}

func TestProcManager_ListOrder(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	first, err := m.Start("sleep 30")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	second, err := m.Start("sleep 30")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("List() order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, first.ID, second.ID)
	}
	for _, info := range list {
		if !info.Running {
			t.Errorf("process %s should still be running", info.ID)
		}
		if info.ExitCode != -1 {
			t.Errorf("running process ExitCode = %d, want -1", info.ExitCode)
		}
	}
}

func TestProcManager_StopAll(t *testing.T) {
	needBash(t)
	m := newTestProcManager(t)

	a, _ := m.Start("sleep 30")
	b, _ := m.Start("sleep 30")

	m.StopAll()

	waitExit(t, m, a.ID)
	waitExit(t, m, b.ID)
}
