package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "agent.max_iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidThemes returns the list of valid TUI color themes
func ValidThemes() []string {
	return []string{"default", "dark", "light"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Agent config
	errors = append(errors, c.validateAgent()...)

	// Validate LLM config
	errors = append(errors, c.validateLLM()...)

	// Validate Context config
	errors = append(errors, c.validateContext()...)

	// Validate Stuck config
	errors = append(errors, c.validateStuck()...)

	// Validate Lock config
	errors = append(errors, c.validateLocks()...)

	// Validate Approval config
	errors = append(errors, c.validateApproval()...)

	// Validate Shell config
	errors = append(errors, c.validateShell()...)

	// Validate Tool config
	errors = append(errors, c.validateTools()...)

	// Validate Session config
	errors = append(errors, c.validateSession()...)

	// Validate TUI config
	errors = append(errors, c.validateTUI()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	const minIterations = 1
	const maxIterations = 500

	if c.Agent.MaxIterations < minIterations {
		errors = append(errors, ValidationError{
			Field:   "agent.max_iterations",
			Value:   c.Agent.MaxIterations,
			Message: fmt.Sprintf("must be at least %d", minIterations),
		})
	}
	if c.Agent.MaxIterations > maxIterations {
		errors = append(errors, ValidationError{
			Field:   "agent.max_iterations",
			Value:   c.Agent.MaxIterations,
			Message: fmt.Sprintf("exceeds maximum of %d", maxIterations),
		})
	}

	// Reflection interval of 0 disables periodic reflection
	if c.Agent.ReflectionInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.reflection_interval",
			Value:   c.Agent.ReflectionInterval,
			Message: "must be non-negative (0 disables reflection)",
		})
	}

	const maxRetryLimit = 10
	if c.Agent.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_retries",
			Value:   c.Agent.MaxRetries,
			Message: "must be non-negative (0 disables retries)",
		})
	}
	if c.Agent.MaxRetries > maxRetryLimit {
		errors = append(errors, ValidationError{
			Field:   "agent.max_retries",
			Value:   c.Agent.MaxRetries,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRetryLimit),
		})
	}

	// Abort thresholds must allow at least one failure before giving up
	const maxThreshold = 10
	if c.Agent.EmptyResponseThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.empty_response_threshold",
			Value:   c.Agent.EmptyResponseThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Agent.EmptyResponseThreshold > maxThreshold {
		errors = append(errors, ValidationError{
			Field:   "agent.empty_response_threshold",
			Value:   c.Agent.EmptyResponseThreshold,
			Message: fmt.Sprintf("exceeds maximum of %d", maxThreshold),
		})
	}
	if c.Agent.UnknownToolThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.unknown_tool_threshold",
			Value:   c.Agent.UnknownToolThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Agent.UnknownToolThreshold > maxThreshold {
		errors = append(errors, ValidationError{
			Field:   "agent.unknown_tool_threshold",
			Value:   c.Agent.UnknownToolThreshold,
			Message: fmt.Sprintf("exceeds maximum of %d", maxThreshold),
		})
	}

	// Plan step bounds
	const maxPlanStepsLimit = 50
	if c.Agent.MinPlanSteps < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.min_plan_steps",
			Value:   c.Agent.MinPlanSteps,
			Message: "must be at least 1",
		})
	}
	if c.Agent.MaxPlanSteps > maxPlanStepsLimit {
		errors = append(errors, ValidationError{
			Field:   "agent.max_plan_steps",
			Value:   c.Agent.MaxPlanSteps,
			Message: fmt.Sprintf("exceeds maximum of %d", maxPlanStepsLimit),
		})
	}
	if c.Agent.MaxPlanSteps < c.Agent.MinPlanSteps {
		errors = append(errors, ValidationError{
			Field:   "agent.max_plan_steps",
			Value:   c.Agent.MaxPlanSteps,
			Message: fmt.Sprintf("must be at least min_plan_steps (%d)", c.Agent.MinPlanSteps),
		})
	}

	const maxVerificationLimit = 10
	if c.Agent.MaxVerificationChecks < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_verification_checks",
			Value:   c.Agent.MaxVerificationChecks,
			Message: "must be at least 1",
		})
	}
	if c.Agent.MaxVerificationChecks > maxVerificationLimit {
		errors = append(errors, ValidationError{
			Field:   "agent.max_verification_checks",
			Value:   c.Agent.MaxVerificationChecks,
			Message: fmt.Sprintf("exceeds maximum of %d", maxVerificationLimit),
		})
	}

	return errors
}

// validateLLM validates the LLMConfig
func (c *Config) validateLLM() []ValidationError {
	var errors []ValidationError

	if c.LLM.Provider == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Value:   c.LLM.Provider,
			Message: "cannot be empty",
		})
	}
	if c.LLM.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Value:   c.LLM.Model,
			Message: "cannot be empty",
		})
	}

	const minTokens = 1
	const maxTokens = 200000
	if c.LLM.MaxTokens < minTokens {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Value:   c.LLM.MaxTokens,
			Message: fmt.Sprintf("must be at least %d", minTokens),
		})
	}
	if c.LLM.MaxTokens > maxTokens {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Value:   c.LLM.MaxTokens,
			Message: fmt.Sprintf("exceeds maximum of %d", maxTokens),
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Value:   c.LLM.Temperature,
			Message: "must be between 0 and 2",
		})
	}

	const maxTimeoutSeconds = 3600
	if c.LLM.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout_seconds",
			Value:   c.LLM.TimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.LLM.TimeoutSeconds > maxTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout_seconds",
			Value:   c.LLM.TimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxTimeoutSeconds),
		})
	}

	return errors
}

// validateContext validates the ContextConfig
func (c *Config) validateContext() []ValidationError {
	var errors []ValidationError

	const minContextChars = 4096       // room for at least a small exchange
	const maxContextChars = 10_000_000 // 10MB maximum
	if c.Context.MaxChars < minContextChars {
		errors = append(errors, ValidationError{
			Field:   "context.max_chars",
			Value:   c.Context.MaxChars,
			Message: fmt.Sprintf("must be at least %d characters", minContextChars),
		})
	}
	if c.Context.MaxChars > maxContextChars {
		errors = append(errors, ValidationError{
			Field:   "context.max_chars",
			Value:   c.Context.MaxChars,
			Message: fmt.Sprintf("exceeds maximum of %d characters", maxContextChars),
		})
	}

	const minCharsPerToken = 1
	const maxCharsPerToken = 10
	if c.Context.CharsPerToken < minCharsPerToken {
		errors = append(errors, ValidationError{
			Field:   "context.chars_per_token",
			Value:   c.Context.CharsPerToken,
			Message: fmt.Sprintf("must be at least %d", minCharsPerToken),
		})
	}
	if c.Context.CharsPerToken > maxCharsPerToken {
		errors = append(errors, ValidationError{
			Field:   "context.chars_per_token",
			Value:   c.Context.CharsPerToken,
			Message: fmt.Sprintf("exceeds maximum of %d", maxCharsPerToken),
		})
	}

	const maxKeepRecent = 100
	if c.Context.KeepRecent < 1 {
		errors = append(errors, ValidationError{
			Field:   "context.keep_recent",
			Value:   c.Context.KeepRecent,
			Message: "must be at least 1",
		})
	}
	if c.Context.KeepRecent > maxKeepRecent {
		errors = append(errors, ValidationError{
			Field:   "context.keep_recent",
			Value:   c.Context.KeepRecent,
			Message: fmt.Sprintf("exceeds maximum of %d", maxKeepRecent),
		})
	}

	if c.Context.CompactThreshold <= 0 || c.Context.CompactThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "context.compact_threshold",
			Value:   c.Context.CompactThreshold,
			Message: "must be greater than 0 and at most 1",
		})
	}

	return errors
}

// validateStuck validates the StuckConfig
func (c *Config) validateStuck() []ValidationError {
	var errors []ValidationError

	// Window of 0 disables stuck detection; a window of 1 cannot compare anything
	const maxWindow = 50
	if c.Stuck.Window != 0 && c.Stuck.Window < 2 {
		errors = append(errors, ValidationError{
			Field:   "stuck.window",
			Value:   c.Stuck.Window,
			Message: "must be at least 2 (0 disables stuck detection)",
		})
	}
	if c.Stuck.Window > maxWindow {
		errors = append(errors, ValidationError{
			Field:   "stuck.window",
			Value:   c.Stuck.Window,
			Message: fmt.Sprintf("exceeds maximum of %d", maxWindow),
		})
	}

	if c.Stuck.SimilarityThreshold < 0 || c.Stuck.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "stuck.similarity_threshold",
			Value:   c.Stuck.SimilarityThreshold,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

// validateLocks validates the LockConfig
func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	const minWaitSeconds = 1
	const maxWaitSeconds = 600
	if c.Locks.WaitTimeoutSeconds < minWaitSeconds {
		errors = append(errors, ValidationError{
			Field:   "locks.wait_timeout_seconds",
			Value:   c.Locks.WaitTimeoutSeconds,
			Message: fmt.Sprintf("must be at least %d second", minWaitSeconds),
		})
	}
	if c.Locks.WaitTimeoutSeconds > maxWaitSeconds {
		errors = append(errors, ValidationError{
			Field:   "locks.wait_timeout_seconds",
			Value:   c.Locks.WaitTimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxWaitSeconds),
		})
	}

	return errors
}

// validateApproval validates the ApprovalConfig
func (c *Config) validateApproval() []ValidationError {
	var errors []ValidationError

	const maxTimeoutMinutes = 120
	if c.Approval.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "approval.timeout_minutes",
			Value:   c.Approval.TimeoutMinutes,
			Message: "must be non-negative (0 waits forever)",
		})
	}
	if c.Approval.TimeoutMinutes > maxTimeoutMinutes {
		errors = append(errors, ValidationError{
			Field:   "approval.timeout_minutes",
			Value:   c.Approval.TimeoutMinutes,
			Message: fmt.Sprintf("exceeds maximum of %d minutes", maxTimeoutMinutes),
		})
	}

	return errors
}

// validateShell validates the ShellConfig
func (c *Config) validateShell() []ValidationError {
	var errors []ValidationError

	const minOutputLimit = 1024        // 1KB minimum
	const maxOutputLimit = 100_000_000 // 100MB maximum
	if c.Shell.OutputLimit < minOutputLimit {
		errors = append(errors, ValidationError{
			Field:   "shell.output_limit",
			Value:   c.Shell.OutputLimit,
			Message: fmt.Sprintf("must be at least %d bytes (1KB)", minOutputLimit),
		})
	}
	if c.Shell.OutputLimit > maxOutputLimit {
		errors = append(errors, ValidationError{
			Field:   "shell.output_limit",
			Value:   c.Shell.OutputLimit,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (100MB)", maxOutputLimit),
		})
	}

	// Timeout validation (0 means disabled, which is valid; negative is invalid)
	if c.Shell.CommandTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "shell.command_timeout_seconds",
			Value:   c.Shell.CommandTimeoutSeconds,
			Message: "must be non-negative (0 disables timeout)",
		})
	}

	return errors
}

// validateTools validates the ToolConfig
func (c *Config) validateTools() []ValidationError {
	var errors []ValidationError

	if c.Tools.DefaultMode != "" && !IsValidAgentMode(c.Tools.DefaultMode) {
		errors = append(errors, ValidationError{
			Field:   "tools.default_mode",
			Value:   c.Tools.DefaultMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAgentModes(), ", ")),
		})
	}

	const minSearchBuffer = 1024        // 1KB minimum
	const maxSearchBuffer = 100_000_000 // 100MB maximum
	if c.Tools.SearchBufferSize < minSearchBuffer {
		errors = append(errors, ValidationError{
			Field:   "tools.search_buffer_size",
			Value:   c.Tools.SearchBufferSize,
			Message: fmt.Sprintf("must be at least %d bytes (1KB)", minSearchBuffer),
		})
	}
	if c.Tools.SearchBufferSize > maxSearchBuffer {
		errors = append(errors, ValidationError{
			Field:   "tools.search_buffer_size",
			Value:   c.Tools.SearchBufferSize,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (100MB)", maxSearchBuffer),
		})
	}

	const maxMemoryEntries = 10000
	if c.Tools.MemoryLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "tools.memory_limit",
			Value:   c.Tools.MemoryLimit,
			Message: "must be at least 1",
		})
	}
	if c.Tools.MemoryLimit > maxMemoryEntries {
		errors = append(errors, ValidationError{
			Field:   "tools.memory_limit",
			Value:   c.Tools.MemoryLimit,
			Message: fmt.Sprintf("exceeds maximum of %d", maxMemoryEntries),
		})
	}

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.Store != "" && !IsValidSessionStore(c.Session.Store) {
		errors = append(errors, ValidationError{
			Field:   "session.store",
			Value:   c.Session.Store,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSessionStores(), ", ")),
		})
	}

	// Dir validation - if set, check for invalid characters
	if c.Session.Dir != "" {
		path := c.Session.Dir

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "session.dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "session.dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.MaxLogLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_log_lines",
			Value:   c.TUI.MaxLogLines,
			Message: "must be non-negative",
		})
	}

	// Reasonable upper bound to prevent memory issues
	const maxLogLinesLimit = 100000
	if c.TUI.MaxLogLines > maxLogLinesLimit {
		errors = append(errors, ValidationError{
			Field:   "tui.max_log_lines",
			Value:   c.TUI.MaxLogLines,
			Message: fmt.Sprintf("exceeds maximum of %d", maxLogLinesLimit),
		})
	}

	// Sidebar width validation (0 means use default, which is valid).
	// These values must match tui.SidebarMinWidth and tui.SidebarMaxWidth
	// (defined separately to avoid circular import).
	const minSidebarWidth = 20
	const maxSidebarWidth = 60
	if c.TUI.SidebarWidth != 0 {
		if c.TUI.SidebarWidth < minSidebarWidth {
			errors = append(errors, ValidationError{
				Field:   "tui.sidebar_width",
				Value:   c.TUI.SidebarWidth,
				Message: fmt.Sprintf("must be at least %d columns", minSidebarWidth),
			})
		}
		if c.TUI.SidebarWidth > maxSidebarWidth {
			errors = append(errors, ValidationError{
				Field:   "tui.sidebar_width",
				Value:   c.TUI.SidebarWidth,
				Message: fmt.Sprintf("exceeds maximum of %d columns", maxSidebarWidth),
			})
		}
	}

	if c.TUI.Theme != "" && !slices.Contains(ValidThemes(), c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
