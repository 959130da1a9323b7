package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// RunError Tests
// -----------------------------------------------------------------------------

func TestNewRunError(t *testing.T) {
	cause := ErrEmptyResponse
	err := NewRunError("step loop aborted", cause)

	if err.message != "step loop aborted" {
		t.Errorf("message = %q, want %q", err.message, "step loop aborted")
	}
	if err.cause != cause {
		t.Errorf("cause = %v, want %v", err.cause, cause)
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
	if err.Iteration != -1 {
		t.Errorf("Iteration = %d, want -1", err.Iteration)
	}
}

func TestRunError_WithMethods(t *testing.T) {
	err := NewRunError("test", nil).
		WithSessionID("sess-123").
		WithRunID("run-456").
		WithPhase("executing").
		WithIteration(7).
		WithSeverity(SeverityCritical).
		WithRetryable(true)

	if err.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want %q", err.SessionID, "sess-123")
	}
	if err.RunID != "run-456" {
		t.Errorf("RunID = %q, want %q", err.RunID, "run-456")
	}
	if err.Phase != "executing" {
		t.Errorf("Phase = %q, want %q", err.Phase, "executing")
	}
	if err.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", err.Iteration)
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestRunError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RunError
		want string
	}{
		{
			name: "basic error",
			err:  NewRunError("test error", nil),
			want: "run error: test error",
		},
		{
			name: "with cause",
			err:  NewRunError("test error", ErrEmptyResponse),
			want: "run error: test error: empty model response",
		},
		{
			name: "with session ID",
			err:  NewRunError("test error", nil).WithSessionID("abc123"),
			want: "run error [session=abc123]: test error",
		},
		{
			name: "with all fields",
			err:  NewRunError("aborted", ErrAgentStopped).WithSessionID("abc").WithRunID("r1").WithPhase("executing").WithIteration(3),
			want: "run error [session=abc, run=r1, phase=executing, iteration=3]: aborted: agent stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunError_Is(t *testing.T) {
	err := NewRunError("test", ErrEmptyResponse).WithSessionID("abc")

	// Should match RunError type
	if !Is(err, &RunError{}) {
		t.Error("Is(RunError{}) = false, want true")
	}

	// Should match wrapped sentinel error
	if !Is(err, ErrEmptyResponse) {
		t.Error("Is(ErrEmptyResponse) = false, want true")
	}

	// Should not match unrelated errors
	if Is(err, ErrUnknownTool) {
		t.Error("Is(ErrUnknownTool) = true, want false")
	}
}

func TestRunError_Unwrap(t *testing.T) {
	cause := ErrRunCancelled
	err := NewRunError("test", cause)

	if unwrapped := Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

// -----------------------------------------------------------------------------
// ToolError Tests
// -----------------------------------------------------------------------------

func TestNewToolError(t *testing.T) {
	cause := ErrToolFailed
	err := NewToolError("dispatch failed", cause)

	if err.message != "dispatch failed" {
		t.Errorf("message = %q, want %q", err.message, "dispatch failed")
	}
	if err.cause != cause {
		t.Errorf("cause = %v, want %v", err.cause, cause)
	}
}

func TestToolError_WithMethods(t *testing.T) {
	err := NewToolError("test", nil).
		WithTool("write_file").
		WithPath("main.go").
		WithMode("copilot").
		WithSeverity(SeverityWarning).
		WithRetryable(true)

	if err.Tool != "write_file" {
		t.Errorf("Tool = %q, want %q", err.Tool, "write_file")
	}
	if err.Path != "main.go" {
		t.Errorf("Path = %q, want %q", err.Path, "main.go")
	}
	if err.Mode != "copilot" {
		t.Errorf("Mode = %q, want %q", err.Mode, "copilot")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

func TestToolError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ToolError
		want string
	}{
		{
			name: "basic error",
			err:  NewToolError("test error", nil),
			want: "tool error: test error",
		},
		{
			name: "with tool name",
			err:  NewToolError("test error", nil).WithTool("read_file"),
			want: "tool error [tool=read_file]: test error",
		},
		{
			name: "with all fields",
			err:  NewToolError("refused", ErrToolNotAllowed).WithTool("run_command").WithPath("build.sh").WithMode("scout"),
			want: "tool error [tool=run_command, path=build.sh, mode=scout]: refused: tool not allowed for mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolError_Is(t *testing.T) {
	err := NewToolError("test", ErrUnknownTool)

	if !Is(err, &ToolError{}) {
		t.Error("Is(ToolError{}) = false, want true")
	}
	if !Is(err, ErrUnknownTool) {
		t.Error("Is(ErrUnknownTool) = false, want true")
	}
	if Is(err, &RunError{}) {
		t.Error("Is(RunError{}) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// LLMError Tests
// -----------------------------------------------------------------------------

func TestNewLLMError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewLLMError("completion failed", cause)

	if err.message != "completion failed" {
		t.Errorf("message = %q, want %q", err.message, "completion failed")
	}
	if err.Attempt != -1 {
		t.Errorf("Attempt = %d, want -1", err.Attempt)
	}
	// Model transport failures are retryable by default
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

func TestLLMError_WithMethods(t *testing.T) {
	err := NewLLMError("test", nil).
		WithProvider("openai").
		WithModel("gpt-4o-mini").
		WithAttempt(2).
		WithSeverity(SeverityError).
		WithRetryable(false)

	if err.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", err.Provider, "openai")
	}
	if err.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want %q", err.Model, "gpt-4o-mini")
	}
	if err.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", err.Attempt)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

func TestLLMError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LLMError
		want string
	}{
		{
			name: "basic error",
			err:  NewLLMError("test error", nil),
			want: "llm error: test error",
		},
		{
			name: "with provider",
			err:  NewLLMError("test error", nil).WithProvider("anthropic"),
			want: "llm error [provider=anthropic]: test error",
		},
		{
			name: "with all fields",
			err:  NewLLMError("no content", ErrEmptyResponse).WithProvider("openai").WithModel("gpt-4o").WithAttempt(1),
			want: "llm error [provider=openai, model=gpt-4o, attempt=1]: no content: empty model response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLLMError_Is(t *testing.T) {
	err := NewLLMError("test", ErrMalformedResponse)

	if !Is(err, &LLMError{}) {
		t.Error("Is(LLMError{}) = false, want true")
	}
	if !Is(err, ErrMalformedResponse) {
		t.Error("Is(ErrMalformedResponse) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// LockError Tests
// -----------------------------------------------------------------------------

func TestNewLockError(t *testing.T) {
	cause := ErrLockTimeout
	err := NewLockError("acquisition failed", cause)

	if err.message != "acquisition failed" {
		t.Errorf("message = %q, want %q", err.message, "acquisition failed")
	}
	if err.Position != -1 {
		t.Errorf("Position = %d, want -1", err.Position)
	}
	// Lock contention clears once the holder releases
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestLockError_WithMethods(t *testing.T) {
	err := NewLockError("test", nil).
		WithPath("main.go").
		WithHolder("session-2").
		WithPosition(1).
		WithSeverity(SeverityError).
		WithRetryable(false)

	if err.Path != "main.go" {
		t.Errorf("Path = %q, want %q", err.Path, "main.go")
	}
	if err.Holder != "session-2" {
		t.Errorf("Holder = %q, want %q", err.Holder, "session-2")
	}
	if err.Position != 1 {
		t.Errorf("Position = %d, want 1", err.Position)
	}
}

func TestLockError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LockError
		want string
	}{
		{
			name: "basic error",
			err:  NewLockError("test error", nil),
			want: "lock error: test error",
		},
		{
			name: "with path",
			err:  NewLockError("contended", nil).WithPath("main.go"),
			want: "lock error [path=main.go]: contended",
		},
		{
			name: "with all fields",
			err:  NewLockError("wait expired", ErrLockTimeout).WithPath("main.go").WithHolder("s2").WithPosition(3),
			want: "lock error [path=main.go, holder=s2, position=3]: wait expired: file lock wait timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockError_Is(t *testing.T) {
	err := NewLockError("test", ErrLockHeld)

	if !Is(err, &LockError{}) {
		t.Error("Is(LockError{}) = false, want true")
	}
	if !Is(err, ErrLockHeld) {
		t.Error("Is(ErrLockHeld) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// NotFoundError Tests
// -----------------------------------------------------------------------------

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("session", "abc123")

	if err.ResourceType != "session" {
		t.Errorf("ResourceType = %q, want %q", err.ResourceType, "session")
	}
	if err.ResourceID != "abc123" {
		t.Errorf("ResourceID = %q, want %q", err.ResourceID, "abc123")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *NotFoundError
		want string
	}{
		{
			name: "basic error",
			err:  NewNotFoundError("session", "abc"),
			want: "session 'abc' not found",
		},
		{
			name: "with cause",
			err:  NewNotFoundError("checklist item", "12").WithCause(fmt.Errorf("IO error")),
			want: "checklist item '12' not found: IO error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotFoundError_Is(t *testing.T) {
	err := NewNotFoundError("session", "abc")

	if !Is(err, &NotFoundError{}) {
		t.Error("Is(NotFoundError{}) = false, want true")
	}
	// NotFoundError does not wrap sentinel errors by default
	if Is(err, ErrSessionNotFound) {
		t.Error("Is(ErrSessionNotFound) = true, want false (not wrapped)")
	}
}

// -----------------------------------------------------------------------------
// AlreadyExistsError Tests
// -----------------------------------------------------------------------------

func TestNewAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("tool", "write_file")

	if err.ResourceType != "tool" {
		t.Errorf("ResourceType = %q, want %q", err.ResourceType, "tool")
	}
	if err.ResourceID != "write_file" {
		t.Errorf("ResourceID = %q, want %q", err.ResourceID, "write_file")
	}
}

func TestAlreadyExistsError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AlreadyExistsError
		want string
	}{
		{
			name: "basic error",
			err:  NewAlreadyExistsError("tool", "read_file"),
			want: "tool 'read_file' already exists",
		},
		{
			name: "with cause",
			err:  NewAlreadyExistsError("file", "test.txt").WithCause(fmt.Errorf("disk error")),
			want: "file 'test.txt' already exists: disk error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAlreadyExistsError_Is(t *testing.T) {
	err := NewAlreadyExistsError("tool", "read_file")

	if !Is(err, &AlreadyExistsError{}) {
		t.Error("Is(AlreadyExistsError{}) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("goal cannot be empty")

	if err.message != "goal cannot be empty" {
		t.Errorf("message = %q, want %q", err.message, "goal cannot be empty")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

func TestValidationError_WithMethods(t *testing.T) {
	err := NewValidationError("invalid value").
		WithField("goal").
		WithValue("").
		WithCause(fmt.Errorf("must not be empty"))

	if err.Field != "goal" {
		t.Errorf("Field = %q, want %q", err.Field, "goal")
	}
	if err.Value != "" {
		t.Errorf("Value = %v, want empty string", err.Value)
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "basic error",
			err:  NewValidationError("invalid input"),
			want: "validation error: invalid input",
		},
		{
			name: "with field",
			err:  NewValidationError("cannot be empty").WithField("name"),
			want: "validation error [field=name]: cannot be empty",
		},
		{
			name: "with field and value",
			err:  NewValidationError("must be positive").WithField("count").WithValue(-1),
			want: "validation error [field=count, value=-1]: must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Is(t *testing.T) {
	err := NewValidationError("test")

	if !Is(err, &ValidationError{}) {
		t.Error("Is(ValidationError{}) = false, want true")
	}
	// ValidationError should match ErrInvalidInput
	if !Is(err, ErrInvalidInput) {
		t.Error("Is(ErrInvalidInput) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// TimeoutError Tests
// -----------------------------------------------------------------------------

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for approval", 5*time.Minute)

	if err.Operation != "waiting for approval" {
		t.Errorf("Operation = %q, want %q", err.Operation, "waiting for approval")
	}
	if err.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want %v", err.Duration, 5*time.Minute)
	}
	// Timeouts are retryable by default
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestTimeoutError_WithMethods(t *testing.T) {
	err := NewTimeoutError("test", time.Second).
		WithCause(fmt.Errorf("context deadline exceeded")).
		WithRetryable(false)

	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TimeoutError
		want string
	}{
		{
			name: "basic error",
			err:  NewTimeoutError("waiting for response", 5*time.Second),
			want: "timeout error: waiting for response (timeout: 5s)",
		},
		{
			name: "with cause",
			err:  NewTimeoutError("connecting", time.Minute).WithCause(fmt.Errorf("network unreachable")),
			want: "timeout error: connecting (timeout: 1m0s): network unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeoutError_Is(t *testing.T) {
	err := NewTimeoutError("test", time.Second)

	if !Is(err, &TimeoutError{}) {
		t.Error("Is(TimeoutError{}) = false, want true")
	}
	// TimeoutError should match ErrTimeout
	if !Is(err, ErrTimeout) {
		t.Error("Is(ErrTimeout) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "timeout error",
			err:  NewTimeoutError("test", time.Second),
			want: true,
		},
		{
			name: "run error not retryable",
			err:  NewRunError("test", nil),
			want: false,
		},
		{
			name: "run error set retryable",
			err:  NewRunError("test", nil).WithRetryable(true),
			want: true,
		},
		{
			name: "llm error retryable by default",
			err:  NewLLMError("test", nil),
			want: true,
		},
		{
			name: "lock error retryable by default",
			err:  NewLockError("test", nil),
			want: true,
		},
		{
			name: "wrapped timeout sentinel",
			err:  fmt.Errorf("operation failed: %w", ErrTimeout),
			want: true,
		},
		{
			name: "wrapped lock held sentinel",
			err:  fmt.Errorf("blocked: %w", ErrLockHeld),
			want: true,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "run error",
			err:  NewRunError("test", nil),
			want: true,
		},
		{
			name: "not found error",
			err:  NewNotFoundError("session", "abc"),
			want: true,
		},
		{
			name: "validation error",
			err:  NewValidationError("invalid input"),
			want: true,
		},
		{
			name: "timeout error",
			err:  NewTimeoutError("waiting", time.Second),
			want: true,
		},
		{
			name: "standard error",
			err:  errors.New("internal error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{
			name: "nil error",
			err:  nil,
			want: SeverityDebug,
		},
		{
			name: "run error default",
			err:  NewRunError("test", nil),
			want: SeverityError,
		},
		{
			name: "run error critical",
			err:  NewRunError("test", nil).WithSeverity(SeverityCritical),
			want: SeverityCritical,
		},
		{
			name: "llm error default",
			err:  NewLLMError("test", nil),
			want: SeverityWarning,
		},
		{
			name: "not found error",
			err:  NewNotFoundError("session", "abc"),
			want: SeverityWarning,
		},
		{
			name: "standard error",
			err:  errors.New("standard"),
			want: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "run error",
			err:  NewRunError("test", nil),
			want: true,
		},
		{
			name: "tool error",
			err:  NewToolError("test", nil),
			want: true,
		},
		{
			name: "llm error",
			err:  NewLLMError("test", nil),
			want: true,
		},
		{
			name: "lock error",
			err:  NewLockError("test", nil),
			want: true,
		},
		{
			name: "not found error (semantic)",
			err:  NewNotFoundError("session", "abc"),
			want: false,
		},
		{
			name: "standard error",
			err:  errors.New("test"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDomainError(tt.err); got != tt.want {
				t.Errorf("IsDomainError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSemanticError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "not found error",
			err:  NewNotFoundError("session", "abc"),
			want: true,
		},
		{
			name: "already exists error",
			err:  NewAlreadyExistsError("tool", "read_file"),
			want: true,
		},
		{
			name: "validation error",
			err:  NewValidationError("invalid"),
			want: true,
		},
		{
			name: "timeout error",
			err:  NewTimeoutError("waiting", time.Second),
			want: true,
		},
		{
			name: "run error (domain)",
			err:  NewRunError("test", nil),
			want: false,
		},
		{
			name: "standard error",
			err:  errors.New("test"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSemanticError(tt.err); got != tt.want {
				t.Errorf("IsSemanticError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Wrap/Wrapf Tests
// -----------------------------------------------------------------------------

func TestWrap(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		want    string
	}{
		{
			name:    "nil error",
			err:     nil,
			message: "context",
			want:    "",
		},
		{
			name:    "wrap standard error",
			err:     errors.New("base error"),
			message: "failed to process",
			want:    "failed to process: base error",
		},
		{
			name:    "wrap run error",
			err:     NewRunError("run failed", nil),
			message: "operation failed",
			want:    "operation failed: run error: run failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, tt.message)
			if tt.err == nil {
				if got != nil {
					t.Errorf("Wrap(nil) = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.want {
				t.Errorf("Wrap().Error() = %q, want %q", got.Error(), tt.want)
			}
		})
	}
}

func TestWrapf(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrapf(baseErr, "failed to process %s", "request")

	want := "failed to process request: base error"
	if err.Error() != want {
		t.Errorf("Wrapf().Error() = %q, want %q", err.Error(), want)
	}

	// Wrapf with nil should return nil
	if got := Wrapf(nil, "test"); got != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", got)
	}
}

// -----------------------------------------------------------------------------
// Re-exported Functions Tests
// -----------------------------------------------------------------------------

func TestReexportedFunctions(t *testing.T) {
	// Test that re-exported functions work correctly
	baseErr := New("base error")
	wrappedErr := fmt.Errorf("wrapped: %w", baseErr)

	// Test Is
	if !Is(wrappedErr, baseErr) {
		t.Error("Is() should return true for wrapped error")
	}

	// Test Unwrap
	if Unwrap(wrappedErr) == nil {
		t.Error("Unwrap() should return the base error")
	}

	// Test As
	var runErr *RunError
	testErr := NewRunError("test", nil)
	if !As(testErr, &runErr) {
		t.Error("As() should extract RunError")
	}

	// Test Join
	err1 := New("error 1")
	err2 := New("error 2")
	joined := Join(err1, err2)
	if !Is(joined, err1) || !Is(joined, err2) {
		t.Error("Join() should combine errors")
	}
}

// -----------------------------------------------------------------------------
// Error Chain Tests
// -----------------------------------------------------------------------------

func TestErrorChain(t *testing.T) {
	// Create a chain of errors
	baseErr := ErrLockTimeout
	lockErr := NewLockError("acquisition failed", baseErr).WithPath("main.go")
	wrappedErr := Wrap(lockErr, "write_file blocked")

	// Should be able to find all errors in the chain
	if !Is(wrappedErr, ErrLockTimeout) {
		t.Error("Should find ErrLockTimeout in chain")
	}

	var extracted *LockError
	if !As(wrappedErr, &extracted) {
		t.Error("Should extract LockError from chain")
	}
	if extracted.Path != "main.go" {
		t.Errorf("Path = %q, want %q", extracted.Path, "main.go")
	}
}

// -----------------------------------------------------------------------------
// Sentinel Error Tests
// -----------------------------------------------------------------------------

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are distinct
	sentinels := []error{
		ErrRunCancelled,
		ErrRunNotActive,
		ErrIterationBudget,
		ErrAgentStopped,
		ErrEmptyResponse,
		ErrMalformedResponse,
		ErrUnknownTool,
		ErrToolNotAllowed,
		ErrToolFailed,
		ErrInvalidArgs,
		ErrLockHeld,
		ErrLockTimeout,
		ErrNotLockHolder,
		ErrApprovalRejected,
		ErrApprovalTimeout,
		ErrSessionNotFound,
		ErrSessionLocked,
		ErrSessionCorrupted,
		ErrTimeout,
		ErrCanceled,
		ErrInvalidInput,
		ErrOperationFailed,
	}

	// Check that each sentinel is distinct from all others
	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && Is(err1, err2) {
				t.Errorf("Sentinel error %v should not match %v", err1, err2)
			}
		}
	}
}
