package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TannerBurns/termai/internal/ai"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/logging"
)

const (
	// nameQueueSize bounds pending naming requests; overflow is dropped.
	nameQueueSize = 16

	// nameInterval is the minimum spacing between model calls.
	nameInterval = 500 * time.Millisecond

	// nameTimeout bounds a single naming call.
	nameTimeout = 15 * time.Second

	// maxNameLen caps generated names.
	maxNameLen = 48
)

// namePrompt asks the model for a bare session title. The reply is used
// verbatim after trimming.
const namePrompt = `Write a short title (at most %d characters) for a coding session that starts with this request.

Rules:
- Start with a verb in imperative form (Add, Fix, Refactor, Wire, ...)
- Keep only the core change; drop articles and filler words
- Title case, no quotes, no trailing punctuation

Request: %s

Reply with the title only.`

// Summarizer produces a short descriptive name for a task prompt.
type Summarizer interface {
	Summarize(ctx context.Context, task string) (string, error)
}

// RenameFunc receives the generated name for a session.
type RenameFunc func(sessionID, name string)

// nameRequest is one queued naming job.
type nameRequest struct {
	sessionID string
	prompt    string
}

// Namer generates friendly session names in the background so creation
// never waits on the model. Each session is named at most once: a
// failed call is not retried.
type Namer struct {
	summarizer Summarizer
	logger     *logging.Logger

	mu      sync.Mutex
	named   map[string]bool
	rename  RenameFunc
	started bool

	pending chan nameRequest
	done    chan struct{}
}

// NewNamer creates a Namer. Panics on a nil summarizer: callers that
// have no model client should skip the namer entirely.
func NewNamer(s Summarizer, logger *logging.Logger) *Namer {
	if s == nil {
		panic("session: namer requires a summarizer")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Namer{
		summarizer: s,
		logger:     logger,
		named:      make(map[string]bool),
		pending:    make(chan nameRequest, nameQueueSize),
		done:       make(chan struct{}),
	}
}

// OnRename sets the callback invoked with each generated name.
func (n *Namer) OnRename(fn RenameFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rename = fn
}

// Start launches the background worker. Repeated calls are no-ops.
func (n *Namer) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	go n.loop()
}

// Stop shuts the worker down. Repeated calls are no-ops.
func (n *Namer) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}

// Request queues a session for naming. Non-blocking: when the queue is
// full the request is dropped and the session keeps its placeholder
// name.
func (n *Namer) Request(sessionID, prompt string) {
	n.mu.Lock()
	already := n.named[sessionID]
	n.mu.Unlock()
	if already {
		return
	}

	select {
	case n.pending <- nameRequest{sessionID: sessionID, prompt: prompt}:
	default:
		n.logger.Warn("naming queue full, session keeps placeholder name",
			"session_id", sessionID)
	}
}

// Named reports whether a session has already been through naming.
func (n *Namer) Named(sessionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.named[sessionID]
}

// Forget clears a session's named state so a later Request names it
// again.
func (n *Namer) Forget(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.named, sessionID)
}

// loop processes requests with at least nameInterval between model
// calls.
func (n *Namer) loop() {
	for {
		select {
		case <-n.done:
			return
		case req := <-n.pending:
			n.process(req)
			select {
			case <-n.done:
				return
			case <-time.After(nameInterval):
			}
		}
	}
}

// process runs one naming call and invokes the callback on success.
func (n *Namer) process(req nameRequest) {
	n.mu.Lock()
	if n.named[req.sessionID] {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), nameTimeout)
	defer cancel()

	name, err := n.summarizer.Summarize(ctx, req.prompt)

	n.mu.Lock()
	n.named[req.sessionID] = true
	rename := n.rename
	n.mu.Unlock()

	if err != nil {
		n.logger.Warn("session naming failed",
			"session_id", req.sessionID,
			"error", err.Error())
		return
	}

	n.logger.Debug("session named",
		"session_id", req.sessionID,
		"name", name)
	if rename != nil {
		rename(req.sessionID, name)
	}
}

// AISummarizer generates names with the model client.
type AISummarizer struct {
	client ai.Client
	maxLen int
}

var _ Summarizer = (*AISummarizer)(nil)

// NewAISummarizer wraps a model client for name generation.
func NewAISummarizer(client ai.Client) *AISummarizer {
	return &AISummarizer{client: client, maxLen: maxNameLen}
}

// Summarize asks the model for a title and normalizes the reply: first
// line only, surrounding quotes stripped, clipped to the length cap.
func (s *AISummarizer) Summarize(ctx context.Context, task string) (string, error) {
	prompt := fmt.Sprintf(namePrompt, s.maxLen, strings.TrimSpace(task))

	comp, err := s.client.CompleteOneShot(ctx, "", prompt, ai.ModelConfig{MaxTokens: 50})
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(comp.Text)
	if line, _, found := strings.Cut(name, "\n"); found {
		name = strings.TrimSpace(line)
	}
	name = strings.Trim(name, "\"'`")
	if name == "" {
		return "", fmt.Errorf("%w: model returned an empty name", apperrors.ErrEmptyResponse)
	}
	if len(name) > s.maxLen {
		name = strings.TrimSpace(name[:s.maxLen])
	}
	return name, nil
}
