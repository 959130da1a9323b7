package shell

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
)

func needBash(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("PTY executor requires a unix shell")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not found in PATH")
	}
}

func newTestExecutor(t *testing.T, mutate func(*config.Config)) *PTYExecutor {
	t.Helper()
	cfg := config.Default()
	cfg.Shell.Program = "bash"
	cfg.Shell.CommandTimeoutSeconds = 30
	if mutate != nil {
		mutate(cfg)
	}
	e := NewPTYExecutor(cfg, t.TempDir(), nil)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestPTYExecutor_Echo(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	res, err := e.Execute(context.Background(), "echo hello", Opts{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "hello" {
		t.Errorf("Output = %q, want %q", res.Output, "hello")
	}
	if res.ExitCode != 0 || !res.Success {
		t.Errorf("ExitCode = %d, Success = %v", res.ExitCode, res.Success)
	}
	if res.Duration <= 0 {
		t.Error("expected a positive duration")
	}
	if res.Command != "echo hello" {
		t.Errorf("Command = %q", res.Command)
	}
}

func TestPTYExecutor_MultilineOutput(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	res, err := e.Execute(context.Background(), "printf 'one\\ntwo\\nthree\\n'", Opts{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "one\ntwo\nthree" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestPTYExecutor_EnvironmentPersists(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	if _, err := e.Execute(context.Background(), "export TERMAI_TEST_VAR=carried", Opts{}); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	res, err := e.Execute(context.Background(), "echo $TERMAI_TEST_VAR", Opts{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "carried" {
		t.Errorf("environment did not persist: Output = %q", res.Output)
	}
}

func TestPTYExecutor_WorkingDirectoryPersists(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	if _, err := e.Execute(context.Background(), "mkdir sub && cd sub", Opts{}); err != nil {
		t.Fatalf("cd failed: %v", err)
	}

	res, err := e.Execute(context.Background(), "pwd", Opts{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if filepath.Base(strings.TrimSpace(res.Output)) != "sub" {
		t.Errorf("working directory did not persist: Output = %q", res.Output)
	}
}

func TestPTYExecutor_ExitCodes(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	tests := []struct {
		name    string
		command string
		want    int
	}{
		{"success", "true", 0},
		{"failure", "false", 1},
		{"custom code", "(exit 42)", 42},
		{"missing binary", "definitely-not-a-command-9a7f 2>/dev/null", 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Execute(context.Background(), tt.command, Opts{})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.want)
			}
			if res.Success != (tt.want == 0) {
				t.Errorf("Success = %v for exit code %d", res.Success, res.ExitCode)
			}
		})
	}
}

func TestPTYExecutor_TimeoutRestartsShell(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	if _, err := e.Execute(context.Background(), "export TERMAI_LOST=1", Opts{}); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	res, err := e.Execute(context.Background(), "sleep 10", Opts{Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil with TimedOut result", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut result")
	}
	if res.Success {
		t.Error("timed-out command must not be Success")
	}

	// The replacement shell works but starts from a clean environment.
	res, err = e.Execute(context.Background(), "echo ${TERMAI_LOST:-gone}", Opts{})
	if err != nil {
		t.Fatalf("Execute() after timeout error = %v", err)
	}
	if res.Output != "gone" {
		t.Errorf("expected fresh environment after restart, got %q", res.Output)
	}
}

func TestPTYExecutor_ShellExitRecovered(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	_, err := e.Execute(context.Background(), "exit", Opts{})
	if !apperrors.Is(err, ErrShellExited) {
		t.Fatalf("Execute(exit) error = %v, want ErrShellExited", err)
	}

	res, err := e.Execute(context.Background(), "echo back", Opts{})
	if err != nil {
		t.Fatalf("Execute() after shell exit error = %v", err)
	}
	if res.Output != "back" {
		t.Errorf("Output = %q, want %q", res.Output, "back")
	}
}

func TestPTYExecutor_OutputTruncated(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, func(cfg *config.Config) {
		cfg.Shell.OutputLimit = 2048
	})

	res, err := e.Execute(context.Background(), "seq 1 2000", Opts{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Truncated {
		t.Fatal("expected truncated output")
	}
	if !strings.Contains(res.Output, "bytes elided") {
		t.Error("expected elision marker in output")
	}
	if !strings.HasPrefix(res.Output, "1\n") {
		t.Errorf("head of output lost: %q", res.Output[:20])
	}
	if !strings.Contains(res.Output, "2000") {
		t.Error("tail of output lost")
	}
}

func TestPTYExecutor_CancelledContext(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	// Warm the shell so cancellation hits the command, not the startup.
	if _, err := e.Execute(context.Background(), "true", Opts{}); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := e.Execute(ctx, "sleep 10", Opts{})
	if !apperrors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestPTYExecutor_Close(t *testing.T) {
	needBash(t)
	e := newTestExecutor(t, nil)

	if _, err := e.Execute(context.Background(), "true", Opts{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	if _, err := e.Execute(context.Background(), "true", Opts{}); !apperrors.Is(err, ErrClosed) {
		t.Errorf("Execute() after Close error = %v, want ErrClosed", err)
	}
}
