package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/TannerBurns/termai/internal/filelock"
)

// Mode is a capability level that scopes which tools a run may use.
// Modes form a strict superset lattice: Scout is read-only, Navigator
// adds plan authoring, Copilot adds file mutation, and Pilot adds shell
// and process control on top of Copilot.
type Mode string

const (
	ModeScout     Mode = "scout"
	ModeNavigator Mode = "navigator"
	ModeCopilot   Mode = "copilot"
	ModePilot     Mode = "pilot"
)

// Tool name sets per mode. Navigator and Copilot both extend Scout;
// Pilot extends Copilot.
var (
	scoutNames = []string{
		"read_file", "list_files", "search_files", "http_probe",
		"search_output", "save_memory", "recall_memory",
	}
	navigatorNames = slices.Concat(scoutNames, []string{"write_plan"})
	copilotNames   = slices.Concat(scoutNames, []string{
		"create_file", "write_file", "insert_lines",
		"replace_lines", "delete_lines", "delete_file",
	})
	pilotNames = slices.Concat(copilotNames, []string{
		"run_command", "start_process", "stop_process", "list_processes",
	})
)

// ParseMode validates a mode label from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeScout, ModeNavigator, ModeCopilot, ModePilot:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown capability mode %q", s)
	}
}

// names returns the tool names the mode sanctions, in a stable order.
func (m Mode) names() []string {
	switch m {
	case ModeScout:
		return scoutNames
	case ModeNavigator:
		return navigatorNames
	case ModeCopilot:
		return copilotNames
	case ModePilot:
		return pilotNames
	default:
		return nil
	}
}

// Allows reports whether the mode sanctions the named tool.
func (m Mode) Allows(name string) bool {
	return slices.Contains(m.names(), name)
}

// Param declares one tool parameter.
type Param struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number", "array"
	Description string
	Required    bool
	Enum        []string
	Items       string // element type when Type is "array" (default "string")
}

// Schema is a tool's declarative parameter list. It is rendered both
// into the provider function-call payload and into a compiled JSON
// Schema that validates arguments before execution.
type Schema struct {
	Params []Param
}

// Payload renders the schema as a JSON Schema object suitable for
// provider function-call declarations.
func (s Schema) Payload() map[string]any {
	props := make(map[string]any, len(s.Params))
	var required []string
	for _, p := range s.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Type == "array" {
			items := p.Items
			if items == "" {
				items = "string"
			}
			prop["items"] = map[string]any{"type": items}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	payload := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		payload["required"] = required
	}
	return payload
}

// LineRange is a 1-based inclusive line span.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FileChange describes a proposed or applied file mutation, used for
// lock arbitration, diff display, and change events.
type FileChange struct {
	FilePath      string          `json:"file_path"`
	Op            filelock.OpType `json:"op"`
	BeforeContent string          `json:"before_content,omitempty"`
	AfterContent  string          `json:"after_content,omitempty"`
	LineRange     *LineRange      `json:"line_range,omitempty"`
}

// Result is the outcome of one tool invocation.
type Result struct {
	Success    bool        // Whether the invocation succeeded
	Output     string      // Text fed back to the model
	Error      string      // Short failure description when not successful
	FileChange *FileChange // Mutation applied or attempted, if any
	Locked     bool        // The mutation queued behind another session's lock
}

// Failure builds an unsuccessful Result whose output and error carry
// the same message.
func Failure(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{Output: msg, Error: msg}
}

// Tool is a named capability the model can invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]any, cwd string) Result
}

// FileMutator is implemented by tools that change files. PrepareChange
// previews the mutation without side effects, for approval and diff
// display.
type FileMutator interface {
	Tool
	PrepareChange(args map[string]any, cwd string) (*FileChange, error)
}

// resolvePath resolves p against the working directory. Absolute paths
// pass through; relative paths join cwd. The result is used for file
// access and lock keying, so all sessions agree on one key per file.
func resolvePath(cwd, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(cwd, p))
}

// Argument extraction helpers. Arguments arrive as decoded JSON, so
// numbers are float64.

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intArg(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}
