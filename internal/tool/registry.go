package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/config"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/filelock"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/shell"
	"github.com/TannerBurns/termai/internal/util"
)

// recordLimit caps how much of one tool output is retained for
// search_output.
const recordLimit = 16 * 1024

// Definition is the provider-facing declaration of one tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Deps collects the collaborators tools need. Locks is shared across
// sessions so the coordinator can arbitrate between them; a nil Locks
// gets a private coordinator, which is sufficient for a lone session.
// Pilot tools are registered only when their executors are present:
// run_command needs Shell and Approvals, process control needs Procs.
type Deps struct {
	Config    *config.Config
	SessionID string
	Workdir   string
	Locks     *filelock.Coordinator
	Shell     shell.Executor
	Procs     *shell.ProcManager
	Approvals *approval.Broker
	Bus       *event.Bus
	Logger    *logging.Logger
}

type registered struct {
	tool    Tool
	schema  *jsonschema.Schema
	payload map[string]any
}

// Registry holds one session's tools, validates arguments against each
// tool's compiled schema, and enforces the capability mode on every
// dispatch. It also owns the session's output buffer and memory store.
type Registry struct {
	sessionID string
	workdir   string
	bus       *event.Bus
	logger    *logging.Logger

	mu    sync.RWMutex
	tools map[string]*registered
	order []string

	buffer *OutputBuffer
	memory *MemoryStore
}

// NewRegistry builds a registry with the standard tool set for the
// given session.
func NewRegistry(deps Deps) (*Registry, error) {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if deps.Workdir == "" {
		deps.Workdir = "."
	}
	if deps.Locks == nil {
		deps.Locks = filelock.NewCoordinator(cfg, deps.Bus, logger)
	}

	r := &Registry{
		sessionID: deps.SessionID,
		workdir:   deps.Workdir,
		bus:       deps.Bus,
		logger:    logger.With("component", "tool"),
		tools:     make(map[string]*registered),
		buffer:    NewOutputBuffer(cfg.Tools.SearchBufferSize),
		memory:    NewMemoryStore(cfg.Tools.MemoryLimit),
	}

	mut := &mutator{
		locks:     deps.Locks,
		sessionID: deps.SessionID,
		bus:       deps.Bus,
		logger:    r.logger,
	}

	tools := []Tool{
		&readFileTool{},
		&listFilesTool{},
		&searchFilesTool{},
		&httpProbeTool{},
		&searchOutputTool{buffer: r.buffer},
		&saveMemoryTool{store: r.memory},
		&recallMemoryTool{store: r.memory},
		&writePlanTool{store: r.memory},
		&createFileTool{mut: mut},
		&writeFileTool{mut: mut},
		&insertLinesTool{mut: mut},
		&replaceLinesTool{mut: mut},
		&deleteLinesTool{mut: mut},
		&deleteFileTool{mut: mut},
	}
	if deps.Shell != nil && deps.Approvals != nil {
		tools = append(tools, &runCommandTool{
			exec:      deps.Shell,
			approvals: deps.Approvals,
			sessionID: deps.SessionID,
			bus:       deps.Bus,
		})
	}
	if deps.Procs != nil {
		tools = append(tools,
			&startProcessTool{procs: deps.Procs},
			&stopProcessTool{procs: deps.Procs},
			&listProcessesTool{procs: deps.Procs},
		)
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool, compiling its parameter schema. Registering a
// duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	payload := t.Schema().Payload()
	schema, err := compileSchema(payload)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name()]; dup {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	r.tools[t.Name()] = &registered{tool: t, schema: schema, payload: payload}
	r.order = append(r.order, t.Name())
	return nil
}

// IsToolAvailable reports whether the named tool exists and the mode
// sanctions it. This is the single availability check; dispatch and
// prompt assembly both go through it.
func (r *Registry) IsToolAvailable(name string, mode Mode) bool {
	if !mode.Allows(name) {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Tools returns the tools available in the mode, in registration order.
func (r *Registry) Tools(mode Mode) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Tool
	for _, name := range r.order {
		if mode.Allows(name) {
			out = append(out, r.tools[name].tool)
		}
	}
	return out
}

// Definitions returns provider-facing declarations for the mode's
// tools, in registration order.
func (r *Registry) Definitions(mode Mode) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Definition
	for _, name := range r.order {
		if !mode.Allows(name) {
			continue
		}
		rt := r.tools[name]
		out = append(out, Definition{
			Name:        name,
			Description: rt.tool.Description(),
			Parameters:  rt.payload,
		})
	}
	return out
}

// Execute validates the arguments and dispatches the named tool. A tool
// outside the mode or an argument set that fails schema validation
// yields a failure Result without reaching the tool.
func (r *Registry) Execute(ctx context.Context, mode Mode, name string, args map[string]any) Result {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok || !mode.Allows(name) {
		return Failure("tool %q is not available in %s mode", name, mode)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := rt.schema.Validate(args); err != nil {
		return Failure("invalid arguments for %s: %v", name, err)
	}

	res := rt.tool.Execute(ctx, args, r.workdir)
	r.record(name, res)
	return res
}

// record retains the output for search_output and publishes the
// completion event.
func (r *Registry) record(name string, res Result) {
	// search_output results are not recorded; its own hits would echo
	// in later searches.
	if name != "search_output" {
		r.buffer.Record(name, util.TruncateMiddle(res.Output, recordLimit))
	}

	path := ""
	if res.FileChange != nil {
		path = res.FileChange.FilePath
	}
	detail := res.Error
	if detail == "" {
		detail = firstLine(res.Output)
	}
	r.logger.Debug("tool executed",
		"tool", name,
		"success", res.Success,
		"locked", res.Locked,
	)
	if r.bus != nil {
		r.bus.Publish(event.NewToolCompletedEvent(r.sessionID, name, path, res.Success, detail))
	}
}

// ClearSession empties the output buffer and memory store. It runs at
// the start of every run so carried-over state never leaks between
// runs.
func (r *Registry) ClearSession() {
	r.buffer.Clear()
	r.memory.Clear()
}

// Buffer exposes the session output buffer so command dispatch outside
// the registry can record into it.
func (r *Registry) Buffer() *OutputBuffer { return r.buffer }

// Memory exposes the session memory store.
func (r *Registry) Memory() *MemoryStore { return r.memory }

// Workdir returns the directory tool paths resolve against.
func (r *Registry) Workdir() string { return r.workdir }

func compileSchema(payload map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return util.TruncateString(strings.TrimSpace(line), 120)
}
