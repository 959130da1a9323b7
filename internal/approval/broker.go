package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TannerBurns/termai/internal/config"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
)

// Sentinel errors returned by broker operations.
var (
	// ErrUnknownRequest is returned when resolving a request that does not
	// exist or was already resolved.
	ErrUnknownRequest = errors.New("unknown approval request")

	// ErrEmptyCommand is returned when an edited approval carries no
	// replacement command.
	ErrEmptyCommand = errors.New("replacement command is empty")
)

// Decision labels how an approval request was resolved.
type Decision string

const (
	// DecisionApproved runs the command as submitted.
	DecisionApproved Decision = "approved"

	// DecisionEdited runs a human-supplied replacement command.
	DecisionEdited Decision = "edited"

	// DecisionAuto approves without suspension, by config or policy.
	DecisionAuto Decision = "auto"

	// DecisionRejected refuses the command.
	DecisionRejected Decision = "rejected"

	// DecisionTimeout resolves an unanswered request negatively.
	DecisionTimeout Decision = "timeout"

	// DecisionCancelled resolves a request whose session stopped.
	DecisionCancelled Decision = "cancelled"
)

// Request describes a command held for human approval.
type Request struct {
	SessionID string // Session the run belongs to
	Command   string // Command awaiting approval
	Reason    string // Why the command needs approval
}

// Verdict is the outcome of one approval request.
type Verdict struct {
	Decision Decision // How the request resolved
	Command  string   // Command to execute; may differ from the submitted one
	Reason   string   // Detail for rejections, timeouts, and cancellations
}

// Approved reports whether the command may run.
func (v Verdict) Approved() bool {
	switch v.Decision {
	case DecisionApproved, DecisionEdited, DecisionAuto:
		return true
	default:
		return false
	}
}

// PendingApproval is a read-only snapshot of an unresolved request.
type PendingApproval struct {
	RequestID   string
	SessionID   string
	Command     string
	Reason      string
	RequestedAt time.Time
}

// Policy decides whether a command may run without human approval.
type Policy func(command string) bool

// pendingRequest tracks one suspended Request call. The verdict channel
// is buffered so resolution never blocks on the waiting goroutine.
type pendingRequest struct {
	req       Request
	verdict   chan Verdict
	requested time.Time
}

// Broker suspends shell commands until a human resolves them. Each
// request resolves exactly once: approval (as-is or with an edited
// command), rejection, timeout, or session cancellation. Resolution
// attempts on an already-resolved request return ErrUnknownRequest.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest

	bus     *event.Bus
	logger  *logging.Logger
	timeout time.Duration
	auto    bool
	policy  Policy
}

// Option configures a Broker.
type Option func(*Broker)

// WithPolicy sets an auto-approval policy consulted before suspending a
// request. Commands the policy accepts run immediately.
func WithPolicy(p Policy) Option {
	return func(b *Broker) {
		b.policy = p
	}
}

// NewBroker creates a Broker configured from cfg. The bus may be nil, in
// which case no events are published.
func NewBroker(cfg *config.Config, bus *event.Bus, logger *logging.Logger, opts ...Option) *Broker {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	b := &Broker{
		pending: make(map[string]*pendingRequest),
		bus:     bus,
		logger:  logger.With("component", "approval"),
		timeout: cfg.Approval.Timeout(),
		auto:    cfg.Approval.AutoApprove,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Request submits a command for approval and suspends until it resolves.
// Auto-approval (by config or policy) returns immediately without a
// handshake. A timeout resolves as a negative verdict, not an error;
// errors are reserved for context cancellation, which also resolves the
// request so it cannot linger in the pending set.
func (b *Broker) Request(ctx context.Context, req Request) (Verdict, error) {
	if b.auto || (b.policy != nil && b.policy(req.Command)) {
		b.logger.Debug("command auto-approved", "session", req.SessionID)
		return Verdict{Decision: DecisionAuto, Command: req.Command}, nil
	}

	id := uuid.NewString()[:8]
	p := &pendingRequest{
		req:       req,
		verdict:   make(chan Verdict, 1),
		requested: time.Now(),
	}

	b.mu.Lock()
	b.pending[id] = p
	b.mu.Unlock()

	b.publish(event.NewApprovalRequestedEvent(id, req.SessionID, req.Command, req.Reason))
	b.logger.Info("approval requested",
		"request_id", id, "session", req.SessionID, "reason", req.Reason)

	// A zero timeout waits forever.
	var expired <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case v := <-p.verdict:
		return v, nil

	case <-expired:
		v := Verdict{
			Decision: DecisionTimeout,
			Reason:   fmt.Sprintf("no decision within %s", b.timeout),
		}
		if !b.resolve(id, v) {
			// A human decision raced the timer; honor it.
			v = <-p.verdict
		}
		return v, nil

	case <-ctx.Done():
		v := Verdict{Decision: DecisionCancelled, Reason: "run cancelled"}
		if !b.resolve(id, v) {
			v = <-p.verdict
		}
		return v, ctx.Err()
	}
}

// Approve resolves a pending request, running the command as submitted.
func (b *Broker) Approve(requestID string) error {
	if !b.resolve(requestID, Verdict{Decision: DecisionApproved}) {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	return nil
}

// ApproveWithEdits resolves a pending request with a replacement command.
func (b *Broker) ApproveWithEdits(requestID, command string) error {
	if command == "" {
		return ErrEmptyCommand
	}

	if !b.resolve(requestID, Verdict{Decision: DecisionEdited, Command: command}) {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	return nil
}

// Reject resolves a pending request negatively with the given reason.
func (b *Broker) Reject(requestID, reason string) error {
	if reason == "" {
		reason = "rejected by user"
	}

	if !b.resolve(requestID, Verdict{Decision: DecisionRejected, Reason: reason}) {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	return nil
}

// CancelSession resolves every pending request for the session with a
// negative verdict. Called on run cancellation so suspended tool calls
// unblock promptly.
func (b *Broker) CancelSession(sessionID string) {
	b.mu.Lock()
	var ids []string
	for id, p := range b.pending {
		if p.req.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.resolve(id, Verdict{Decision: DecisionCancelled, Reason: "session cancelled"})
	}
}

// Pending returns snapshots of all unresolved requests, for display.
func (b *Broker) Pending() []PendingApproval {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PendingApproval, 0, len(b.pending))
	for id, p := range b.pending {
		out = append(out, PendingApproval{
			RequestID:   id,
			SessionID:   p.req.SessionID,
			Command:     p.req.Command,
			Reason:      p.req.Reason,
			RequestedAt: p.requested,
		})
	}
	return out
}

// resolve delivers the verdict to the waiting request exactly once and
// removes it from the pending set. An approving verdict with no command
// runs the command as submitted. Returns false if the request was
// unknown or already resolved. The resolution event publishes outside
// the mutex.
func (b *Broker) resolve(requestID string, v Verdict) bool {
	b.mu.Lock()
	p, ok := b.pending[requestID]
	if ok {
		delete(b.pending, requestID)
		if v.Approved() && v.Command == "" {
			v.Command = p.req.Command
		}
		p.verdict <- v
	}
	b.mu.Unlock()

	if !ok {
		return false
	}

	b.publish(event.NewApprovalResolvedEvent(requestID, string(v.Decision), v.Command))
	b.logger.Info("approval resolved",
		"request_id", requestID, "decision", string(v.Decision))
	return true
}

// publish sends an event to the bus, if one is configured.
func (b *Broker) publish(e event.Event) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(e)
}
