package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TannerBurns/termai/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify termai configuration",
	Long: `View or modify termai configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  termai config set llm.model gpt-4o
  termai config set tools.default_mode pilot
  termai config set approval.auto_approve true

Valid keys:
  llm.provider              - Model provider (openai, anthropic, ollama, ...)
  llm.model                 - Model identifier
  llm.max_tokens            - Completion length cap per call
  llm.temperature           - Sampling temperature
  agent.max_iterations      - Iteration cap per run
  agent.reflection_interval - Reflection pass every N steps (0 disables)
  tools.default_mode        - Capability mode: scout, navigator, copilot, pilot
  approval.auto_approve     - Run shell commands without asking (true/false)
  approval.timeout_minutes  - Approval prompt timeout
  session.dir               - Session state directory
  session.store             - Persistence backend: file or sqlite
  logging.enabled           - Debug logging (true/false)
  logging.level             - Log level: debug, info, warn, error`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/termai/config.yaml with the common options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	// Model settings; the key itself stays out of the output
	apiKey := "(not set)"
	if cfg.LLM.APIKey != "" {
		apiKey = "(set)"
	}
	fmt.Println("llm:")
	fmt.Printf("  provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("  model: %s\n", cfg.LLM.Model)
	fmt.Printf("  api_key: %s\n", apiKey)
	fmt.Printf("  max_tokens: %d\n", cfg.LLM.MaxTokens)
	fmt.Printf("  temperature: %g\n", cfg.LLM.Temperature)

	// Agent settings
	fmt.Println("agent:")
	fmt.Printf("  max_iterations: %d\n", cfg.Agent.MaxIterations)
	fmt.Printf("  reflection_interval: %d\n", cfg.Agent.ReflectionInterval)

	// Tool settings
	fmt.Println("tools:")
	fmt.Printf("  default_mode: %s\n", cfg.Tools.DefaultMode)

	// Approval settings
	fmt.Println("approval:")
	fmt.Printf("  auto_approve: %v\n", cfg.Approval.AutoApprove)
	fmt.Printf("  timeout_minutes: %d\n", cfg.Approval.TimeoutMinutes)

	// Session settings
	fmt.Println("session:")
	fmt.Printf("  store: %s\n", cfg.Session.Store)
	if cfg.Session.Dir != "" {
		fmt.Printf("  dir: %s\n", cfg.Session.Dir)
	} else {
		fmt.Printf("  dir: %s (default)\n", filepath.Join(config.DataDir(), "sessions"))
	}

	// Logging settings
	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"llm.provider":              "string",
		"llm.model":                 "string",
		"llm.max_tokens":            "int",
		"llm.temperature":           "float",
		"agent.max_iterations":      "int",
		"agent.reflection_interval": "int",
		"tools.default_mode":        "string",
		"approval.auto_approve":     "bool",
		"approval.timeout_minutes":  "int",
		"session.dir":               "string",
		"session.store":             "string",
		"logging.enabled":           "bool",
		"logging.level":             "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'termai config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "tools.default_mode" && !config.IsValidAgentMode(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidAgentModes(), ", "))
		}
		if key == "session.store" && !config.IsValidSessionStore(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidSessionStores(), ", "))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	case "float":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected number", key)
		}
		if floatVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = floatVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'termai config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Termai Configuration

# Model endpoint
llm:
  # Provider the agent completes against (openai, anthropic, ollama, ...)
  provider: openai
  model: gpt-4o-mini
  # Prefer the TERMAI_LLM_API_KEY environment variable over this file
  # api_key: ""
  max_tokens: 4096
  temperature: 0.2

# Agent loop
agent:
  # Hard cap on loop iterations per run
  max_iterations: 40
  # Reflection pass every N completed steps (0 disables)
  reflection_interval: 5

# Tools
tools:
  # Capability mode runs start in
  # Options: scout, navigator, copilot, pilot
  default_mode: copilot

# Raw shell command approval
approval:
  # Run shell commands without the approval prompt
  auto_approve: false
  # Unanswered prompts resolve as a timeout after this many minutes
  timeout_minutes: 5

# Session persistence
session:
  # Backend: file (one JSON per session) or sqlite
  store: file
  # Session state directory (default: XDG data dir)
  # dir: ""

# Debug logging
logging:
  enabled: true
  level: info
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize termai's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/termai/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: TERMAI_* (e.g., TERMAI_LLM_API_KEY)")

	return nil
}
