package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// useTempSessionDir points session storage at a throwaway directory so
// command tests never touch the user's data dir.
func useTempSessionDir(t *testing.T) {
	t.Helper()
	viper.Set("session.dir", t.TempDir())
	t.Cleanup(func() { viper.Set("session.dir", "") })
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if rootCmd.Use != "termai" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "termai")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"run", "sessions", "config", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestSessionsCommand_Subcommands(t *testing.T) {
	expectedCmds := []string{"list", "remove", "clean"}
	cmdMap := make(map[string]bool)
	for _, cmd := range sessionsCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected sessions subcommand %q not found", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	if _, err := executeCommand(rootCmd, "version"); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
}

func TestRunCommand_RequiresPrompt(t *testing.T) {
	_, err := executeCommand(rootCmd, "run")
	if err == nil {
		t.Fatal("run with no prompt and no --session should fail")
	}
	if !strings.Contains(err.Error(), "prompt") {
		t.Errorf("error = %q, want a hint about the missing prompt", err)
	}
}

func TestRunCommand_RejectsInvalidMode(t *testing.T) {
	_, err := executeCommand(rootCmd, "run", "do something", "--mode", "warp")
	if err == nil {
		t.Fatal("run with an invalid mode should fail")
	}
	if !strings.Contains(err.Error(), "mode") || !strings.Contains(err.Error(), "warp") {
		t.Errorf("error = %q, want the rejected mode named", err)
	}

	// The bound flag survives this Execute; later tests must not
	// inherit the broken mode.
	viper.Set("tools.default_mode", "copilot")
}

func TestSessionsList_EmptyStore(t *testing.T) {
	useTempSessionDir(t)

	if _, err := executeCommand(rootCmd, "sessions", "list"); err != nil {
		t.Fatalf("sessions list on an empty store failed: %v", err)
	}
}

func TestSessionsRemove_UnknownID(t *testing.T) {
	useTempSessionDir(t)

	_, err := executeCommand(rootCmd, "sessions", "remove", "no-such-session")
	if err == nil {
		t.Fatal("removing an unknown session should fail")
	}
	if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionsClean_NothingToClean(t *testing.T) {
	useTempSessionDir(t)

	if _, err := executeCommand(rootCmd, "sessions", "clean"); err != nil {
		t.Fatalf("sessions clean with no locks failed: %v", err)
	}
}

func TestConfigSet_UnknownKey(t *testing.T) {
	_, err := executeCommand(rootCmd, "config", "set", "bogus.key", "1")
	if err == nil {
		t.Fatal("setting an unknown key should fail")
	}
	if !strings.Contains(err.Error(), "unknown configuration key") {
		t.Errorf("error = %q", err)
	}
}

func TestConfigSet_InvalidMode(t *testing.T) {
	_, err := executeCommand(rootCmd, "config", "set", "tools.default_mode", "warp")
	if err == nil {
		t.Fatal("setting an invalid mode should fail")
	}
	if !strings.Contains(err.Error(), "Valid options") {
		t.Errorf("error = %q, want the valid modes listed", err)
	}
}

func TestConfigSet_InvalidBool(t *testing.T) {
	_, err := executeCommand(rootCmd, "config", "set", "approval.auto_approve", "maybe")
	if err == nil {
		t.Fatal("setting a non-boolean value should fail")
	}
	if !strings.Contains(err.Error(), "expected true or false") {
		t.Errorf("error = %q", err)
	}
}

func TestConfigSet_InvalidInt(t *testing.T) {
	_, err := executeCommand(rootCmd, "config", "set", "agent.max_iterations", "lots")
	if err == nil {
		t.Fatal("setting a non-integer value should fail")
	}
	if !strings.Contains(err.Error(), "expected integer") {
		t.Errorf("error = %q", err)
	}
}
