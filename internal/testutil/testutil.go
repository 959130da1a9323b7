// Package testutil provides testing utilities for termai tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TannerBurns/termai/internal/ai"
	"github.com/TannerBurns/termai/internal/event"
)

// SetupWorkspace creates a temporary agent workspace seeded with the
// given files. The files map contains relative paths to file contents.
// The workspace is automatically cleaned up when the test completes.
func SetupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
	return dir
}

// ReadWorkspaceFile reads a file from a workspace created with
// SetupWorkspace.
func ReadWorkspaceFile(t *testing.T, dir, path string) string {
	t.Helper()

	content, err := os.ReadFile(filepath.Join(dir, path))
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}

// ScriptedClient implements ai.Client with a script function, so tests
// can drive the agent loop without a model endpoint. Every user prompt
// is recorded for assertions.
type ScriptedClient struct {
	// Script maps one completion call to its response. A nil Script
	// answers every call with an empty string.
	Script func(system, user string) (string, error)

	mu      sync.Mutex
	prompts []string
}

var _ ai.Client = (*ScriptedClient)(nil)

func (c *ScriptedClient) CompleteOneShot(_ context.Context, system, user string, _ ai.ModelConfig) (ai.Completion, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, user)
	script := c.Script
	c.mu.Unlock()

	if script == nil {
		return ai.Completion{}, nil
	}
	text, err := script(system, user)
	if err != nil {
		return ai.Completion{}, err
	}
	return ai.Completion{Text: text}, nil
}

// Prompts returns every user prompt the client has answered.
func (c *ScriptedClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// EventLog records every event published on a bus.
type EventLog struct {
	mu     sync.Mutex
	events []event.Event
}

// CollectEvents subscribes a new EventLog to every event on the bus.
func CollectEvents(bus *event.Bus) *EventLog {
	log := &EventLog{}
	bus.SubscribeAll(func(e event.Event) {
		log.mu.Lock()
		log.events = append(log.events, e)
		log.mu.Unlock()
	})
	return log
}

// All returns every recorded event in publish order.
func (l *EventLog) All() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event.Event(nil), l.events...)
}

// ByType returns the recorded events with the given type, in order.
func (l *EventLog) ByType(eventType string) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []event.Event
	for _, e := range l.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the recorded event types in publish order.
func (l *EventLog) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.EventType()
	}
	return out
}

// WaitUntil polls cond until it reports true or the timeout elapses.
func WaitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
