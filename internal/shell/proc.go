package shell

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/logging"
)

// ErrUnknownProcess is returned for process ids the manager has never
// seen.
var ErrUnknownProcess = apperrors.New("unknown background process")

// stopGrace is how long a stopped process gets between SIGTERM and
// SIGKILL.
const stopGrace = 3 * time.Second

// ProcessInfo describes one background process.
type ProcessInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Running   bool      `json:"running"`
	ExitCode  int       `json:"exit_code"`
	StartedAt time.Time `json:"started_at"`
}

type proc struct {
	id        string
	command   string
	startedAt time.Time
	cmd       *exec.Cmd
	out       *lockedBuffer
	done      chan struct{}

	// Guarded by the manager mutex.
	running  bool
	exitCode int
}

// lockedBuffer makes cappedBuffer safe for the process's writer
// goroutine and concurrent Output readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf *cappedBuffer
}

func (w *lockedBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *lockedBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// ProcManager owns background processes started by process-control
// tools. Each process runs in its own group so Stop can take down
// anything it spawned.
type ProcManager struct {
	program     string
	workdir     string
	outputLimit int
	logger      *logging.Logger

	mu    sync.Mutex
	procs map[string]*proc
	order []string
}

// NewProcManager creates a process manager rooted at workdir.
func NewProcManager(cfg *config.Config, workdir string, logger *logging.Logger) *ProcManager {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	program := cfg.Shell.Program
	if program == "" {
		program = os.Getenv("SHELL")
	}
	if program == "" {
		program = "/bin/bash"
	}

	return &ProcManager{
		program:     program,
		workdir:     workdir,
		outputLimit: cfg.Shell.OutputLimit,
		logger:      logger.With("component", "proc"),
		procs:       make(map[string]*proc),
	}
}

// Start launches a command in the background and returns its info.
func (m *ProcManager) Start(command string) (ProcessInfo, error) {
	cmd := exec.Command(m.program, "-c", command)
	cmd.Dir = m.workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	out := &lockedBuffer{buf: newCappedBuffer(m.outputLimit)}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return ProcessInfo{}, apperrors.Wrap(err, "start background process")
	}

	p := &proc{
		id:        uuid.NewString()[:8],
		command:   command,
		startedAt: time.Now(),
		cmd:       cmd,
		out:       out,
		done:      make(chan struct{}),
		running:   true,
		exitCode:  -1,
	}

	m.mu.Lock()
	m.procs[p.id] = p
	m.order = append(m.order, p.id)
	m.mu.Unlock()

	m.logger.Info("background process started", "id", p.id, "pid", cmd.Process.Pid, "command", command)
	go m.reap(p)

	return m.snapshot(p), nil
}

// reap waits for the process and records its exit.
func (m *ProcManager) reap(p *proc) {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}

	m.mu.Lock()
	p.running = false
	p.exitCode = code
	m.mu.Unlock()
	close(p.done)

	m.logger.Info("background process exited", "id", p.id, "exit_code", code)
}

// Stop terminates a process: SIGTERM to its group, then SIGKILL after a
// grace period. Stopping an already exited process is a no-op.
func (m *ProcManager) Stop(id string) error {
	m.mu.Lock()
	p, ok := m.procs[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownProcess
	}
	running := p.running
	m.mu.Unlock()

	if !running {
		return nil
	}

	_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
	}

	_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	<-p.done
	return nil
}

// StopAll terminates every running process. Used at run teardown.
func (m *ProcManager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if m.procs[id].running {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Stop(id)
	}
}

// List returns every process the manager has started, oldest first.
func (m *ProcManager) List() []ProcessInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ProcessInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.snapshotLocked(m.procs[id]))
	}
	return out
}

// Output returns the captured combined output of a process so far.
func (m *ProcManager) Output(id string) (string, error) {
	m.mu.Lock()
	p, ok := m.procs[id]
	m.mu.Unlock()
	if !ok {
		return "", ErrUnknownProcess
	}
	return p.out.String(), nil
}

func (m *ProcManager) snapshot(p *proc) ProcessInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(p)
}

func (m *ProcManager) snapshotLocked(p *proc) ProcessInfo {
	return ProcessInfo{
		ID:        p.id,
		Command:   p.command,
		Running:   p.running,
		ExitCode:  p.exitCode,
		StartedAt: p.startedAt,
	}
}
