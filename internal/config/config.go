package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete termai configuration
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Context  ContextConfig  `mapstructure:"context"`
	Stuck    StuckConfig    `mapstructure:"stuck"`
	Locks    LockConfig     `mapstructure:"locks"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Shell    ShellConfig    `mapstructure:"shell"`
	Tools    ToolConfig     `mapstructure:"tools"`
	Session  SessionConfig  `mapstructure:"session"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AgentConfig controls the run engine's step loop
type AgentConfig struct {
	// MaxIterations caps the number of step-loop iterations per run (default: 40)
	MaxIterations int `mapstructure:"max_iterations"`
	// ReflectionInterval triggers a reflection pass every N completed steps (0 = disabled)
	ReflectionInterval int `mapstructure:"reflection_interval"`
	// MaxRetries is the number of model re-prompts for non-actionable responses (default: 3)
	MaxRetries int `mapstructure:"max_retries"`
	// MaxFixAttempts caps LLM-proposed fixes per failed shell command (default: 2)
	MaxFixAttempts int `mapstructure:"max_fix_attempts"`
	// EmptyResponseThreshold aborts the run after this many consecutive empty
	// model responses survive the retry controller (default: 3)
	EmptyResponseThreshold int `mapstructure:"empty_response_threshold"`
	// UnknownToolThreshold aborts the run after this many consecutive requests
	// for tools that are not registered (default: 3)
	UnknownToolThreshold int `mapstructure:"unknown_tool_threshold"`
	// MinPlanSteps is the minimum plan length when the model plans (default: 3)
	MinPlanSteps int `mapstructure:"min_plan_steps"`
	// MaxPlanSteps is the maximum plan length when the model plans (default: 10)
	MaxPlanSteps int `mapstructure:"max_plan_steps"`
	// MaxVerificationChecks caps the read-only checks run during verification (default: 3)
	MaxVerificationChecks int `mapstructure:"max_verification_checks"`
}

// LLMConfig controls the model endpoint used for completions
type LLMConfig struct {
	// Provider is the model provider (e.g., "openai", "anthropic", "ollama")
	Provider string `mapstructure:"provider"`
	// Model is the model identifier (e.g., "gpt-4o-mini")
	Model string `mapstructure:"model"`
	// APIKey authenticates with the provider. Usually supplied via the
	// TERMAI_LLM_API_KEY environment variable rather than the config file.
	APIKey string `mapstructure:"api_key"`
	// MaxTokens caps the completion length per call (default: 4096)
	MaxTokens int `mapstructure:"max_tokens"`
	// Temperature controls sampling randomness (default: 0.2)
	Temperature float64 `mapstructure:"temperature"`
	// TimeoutSeconds bounds a single completion call (default: 120)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ContextConfig controls the model context window manager
type ContextConfig struct {
	// MaxChars is the character capacity of the context window (default: 400000).
	// Token counts are estimated by dividing character counts by CharsPerToken.
	MaxChars int `mapstructure:"max_chars"`
	// CharsPerToken is the character-to-token estimate divisor (default: 4)
	CharsPerToken int `mapstructure:"chars_per_token"`
	// KeepRecent is how many recent entries survive compaction verbatim (default: 12)
	KeepRecent int `mapstructure:"keep_recent"`
	// CompactThreshold is the utilization fraction that triggers compaction (default: 0.95)
	CompactThreshold float64 `mapstructure:"compact_threshold"`
}

// StuckConfig controls repeated-command loop detection
type StuckConfig struct {
	// Window is how many recent commands are compared (default: 6)
	Window int `mapstructure:"window"`
	// SimilarityThreshold is the prefix-similarity ratio above which commands
	// count as repeats (default: 0.7)
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// LockConfig controls the file lock coordinator
type LockConfig struct {
	// WaitTimeoutSeconds bounds how long a queued lock request waits (default: 30)
	WaitTimeoutSeconds int `mapstructure:"wait_timeout_seconds"`
	// MergeEnabled allows compositionally independent changes to merge into a
	// held lock instead of queueing (default: true)
	MergeEnabled bool `mapstructure:"merge_enabled"`
}

// ApprovalConfig controls the human approval handshake for raw shell commands
type ApprovalConfig struct {
	// TimeoutMinutes resolves an unanswered approval request as a timeout (default: 5)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// AutoApprove skips the handshake entirely and runs commands immediately
	AutoApprove bool `mapstructure:"auto_approve"`
}

// ShellConfig controls shell command execution
type ShellConfig struct {
	// Program is the shell binary to use (empty = $SHELL, falling back to /bin/sh)
	Program string `mapstructure:"program"`
	// OutputLimit caps captured bytes per command; excess is elided from the
	// middle so the command echo and the final error survive (default: 100000)
	OutputLimit int `mapstructure:"output_limit"`
	// CommandTimeoutSeconds bounds a single command (0 = no limit)
	CommandTimeoutSeconds int `mapstructure:"command_timeout_seconds"`
}

// ToolConfig controls the tool registry
type ToolConfig struct {
	// DefaultMode is the capability mode runs start in (default: "copilot")
	// Options: "scout", "navigator", "copilot", "pilot"
	DefaultMode string `mapstructure:"default_mode"`
	// SearchBufferSize caps the session output-search buffer in bytes (default: 200000)
	SearchBufferSize int `mapstructure:"search_buffer_size"`
	// MemoryLimit caps the number of key/value memory entries per session (default: 100)
	MemoryLimit int `mapstructure:"memory_limit"`
}

// SessionConfig controls session persistence
type SessionConfig struct {
	// Dir is where session state lives (empty = XDG data dir)
	Dir string `mapstructure:"dir"`
	// Store selects the persistence backend: "file" or "sqlite" (default: "file")
	Store string `mapstructure:"store"`
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// MaxLogLines limits how many context log lines the TUI retains (default: 1000)
	MaxLogLines int `mapstructure:"max_log_lines"`
	// SidebarWidth is the width of the sidebar panel in columns (default: 36, min: 20, max: 60)
	SidebarWidth int `mapstructure:"sidebar_width"`
	// Theme is the color theme for the TUI (default: "default")
	Theme string `mapstructure:"theme"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations:          40,
			ReflectionInterval:     5,
			MaxRetries:             3,
			MaxFixAttempts:         2,
			EmptyResponseThreshold: 3,
			UnknownToolThreshold:   3,
			MinPlanSteps:           3,
			MaxPlanSteps:           10,
			MaxVerificationChecks:  3,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			APIKey:         "",
			MaxTokens:      4096,
			Temperature:    0.2,
			TimeoutSeconds: 120,
		},
		Context: ContextConfig{
			MaxChars:         400000,
			CharsPerToken:    4,
			KeepRecent:       12,
			CompactThreshold: 0.95,
		},
		Stuck: StuckConfig{
			Window:              6,
			SimilarityThreshold: 0.7,
		},
		Locks: LockConfig{
			WaitTimeoutSeconds: 30,
			MergeEnabled:       true,
		},
		Approval: ApprovalConfig{
			TimeoutMinutes: 5,
			AutoApprove:    false,
		},
		Shell: ShellConfig{
			Program:               "",
			OutputLimit:           100000,
			CommandTimeoutSeconds: 300,
		},
		Tools: ToolConfig{
			DefaultMode:      "copilot",
			SearchBufferSize: 200000,
			MemoryLimit:      100,
		},
		Session: SessionConfig{
			Dir:   "",
			Store: "file",
		},
		TUI: TUIConfig{
			MaxLogLines:  1000,
			SidebarWidth: 36,
			Theme:        "default",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Timeout returns the completion timeout as a time.Duration
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WaitTimeout returns the lock wait timeout as a time.Duration
func (c *LockConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// Timeout returns the approval timeout as a time.Duration (0 means wait forever)
func (c *ApprovalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// CommandTimeout returns the shell command timeout as a time.Duration (0 means disabled)
func (c *ShellConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Agent defaults
	viper.SetDefault("agent.max_iterations", defaults.Agent.MaxIterations)
	viper.SetDefault("agent.reflection_interval", defaults.Agent.ReflectionInterval)
	viper.SetDefault("agent.max_retries", defaults.Agent.MaxRetries)
	viper.SetDefault("agent.max_fix_attempts", defaults.Agent.MaxFixAttempts)
	viper.SetDefault("agent.empty_response_threshold", defaults.Agent.EmptyResponseThreshold)
	viper.SetDefault("agent.unknown_tool_threshold", defaults.Agent.UnknownToolThreshold)
	viper.SetDefault("agent.min_plan_steps", defaults.Agent.MinPlanSteps)
	viper.SetDefault("agent.max_plan_steps", defaults.Agent.MaxPlanSteps)
	viper.SetDefault("agent.max_verification_checks", defaults.Agent.MaxVerificationChecks)

	// LLM defaults
	viper.SetDefault("llm.provider", defaults.LLM.Provider)
	viper.SetDefault("llm.model", defaults.LLM.Model)
	viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	viper.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	viper.SetDefault("llm.temperature", defaults.LLM.Temperature)
	viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)

	// Context defaults
	viper.SetDefault("context.max_chars", defaults.Context.MaxChars)
	viper.SetDefault("context.chars_per_token", defaults.Context.CharsPerToken)
	viper.SetDefault("context.keep_recent", defaults.Context.KeepRecent)
	viper.SetDefault("context.compact_threshold", defaults.Context.CompactThreshold)

	// Stuck detection defaults
	viper.SetDefault("stuck.window", defaults.Stuck.Window)
	viper.SetDefault("stuck.similarity_threshold", defaults.Stuck.SimilarityThreshold)

	// Lock defaults
	viper.SetDefault("locks.wait_timeout_seconds", defaults.Locks.WaitTimeoutSeconds)
	viper.SetDefault("locks.merge_enabled", defaults.Locks.MergeEnabled)

	// Approval defaults
	viper.SetDefault("approval.timeout_minutes", defaults.Approval.TimeoutMinutes)
	viper.SetDefault("approval.auto_approve", defaults.Approval.AutoApprove)

	// Shell defaults
	viper.SetDefault("shell.program", defaults.Shell.Program)
	viper.SetDefault("shell.output_limit", defaults.Shell.OutputLimit)
	viper.SetDefault("shell.command_timeout_seconds", defaults.Shell.CommandTimeoutSeconds)

	// Tool defaults
	viper.SetDefault("tools.default_mode", defaults.Tools.DefaultMode)
	viper.SetDefault("tools.search_buffer_size", defaults.Tools.SearchBufferSize)
	viper.SetDefault("tools.memory_limit", defaults.Tools.MemoryLimit)

	// Session defaults
	viper.SetDefault("session.dir", defaults.Session.Dir)
	viper.SetDefault("session.store", defaults.Session.Store)

	// TUI defaults
	viper.SetDefault("tui.max_log_lines", defaults.TUI.MaxLogLines)
	viper.SetDefault("tui.sidebar_width", defaults.TUI.SidebarWidth)
	viper.SetDefault("tui.theme", defaults.TUI.Theme)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termai")
	}
	// Fall back to ~/.config/termai
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termai"
	}
	return filepath.Join(home, ".config", "termai")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the path to the user's data directory, where session
// state and logs are stored when session.dir is not configured.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "termai")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termai"
	}
	return filepath.Join(home, ".local", "share", "termai")
}

// ValidAgentModes returns the list of valid capability mode values
func ValidAgentModes() []string {
	return []string{"scout", "navigator", "copilot", "pilot"}
}

// IsValidAgentMode checks if the given mode is valid
func IsValidAgentMode(mode string) bool {
	for _, valid := range ValidAgentModes() {
		if mode == valid {
			return true
		}
	}
	return false
}

// ValidSessionStores returns the list of valid session store backends
func ValidSessionStores() []string {
	return []string{"file", "sqlite"}
}

// IsValidSessionStore checks if the given store backend is valid
func IsValidSessionStore(store string) bool {
	for _, valid := range ValidSessionStores() {
		if store == valid {
			return true
		}
	}
	return false
}
