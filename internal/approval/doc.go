// Package approval provides the human approval handshake for raw shell
// commands.
//
// When the agent wants to run a command the session policy does not
// auto-approve, the run suspends until a human resolves the request:
// approve as-is, approve with an edited replacement command, or reject.
// Unanswered requests resolve negatively after a configured timeout, and
// session cancellation resolves every pending request for that session
// so suspended tool calls unblock promptly.
//
// The core type is [Broker]. Each request resolves exactly once; a
// second resolution attempt returns [ErrUnknownRequest].
//
// # Usage
//
//	broker := approval.NewBroker(cfg, bus, logger)
//
//	// The run suspends here until a decision arrives.
//	verdict, err := broker.Request(ctx, approval.Request{
//		SessionID: sessionID,
//		Command:   "rm -rf build/",
//		Reason:    "command mutates the workspace",
//	})
//	if verdict.Approved() {
//		// run verdict.Command
//	}
//
//	// Elsewhere, driven by the UI:
//	err = broker.Approve(requestID)
//	err = broker.ApproveWithEdits(requestID, "rm -rf build/tmp/")
//	err = broker.Reject(requestID, "too broad")
//
// # Thread Safety
//
// All methods on [Broker] are safe for concurrent use via an internal
// mutex. Events are published outside the mutex.
package approval
