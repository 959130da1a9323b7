package tool

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrMemoryFull indicates the memory store cannot accept a new key.
var ErrMemoryFull = errors.New("memory store is full")

// maxBufferEntries bounds the output buffer by entry count in addition
// to the byte cap from config.
const maxBufferEntries = 64

// OutputBuffer retains recent tool and command output for the
// search_output tool. It evicts oldest-first when either the byte or
// entry cap is exceeded, and is cleared at the start of each run.
type OutputBuffer struct {
	mu         sync.Mutex
	entries    []bufferEntry
	bytes      int
	maxBytes   int
	maxEntries int
}

type bufferEntry struct {
	source string
	text   string
	at     time.Time
}

// NewOutputBuffer creates a buffer capped at maxBytes of retained text.
func NewOutputBuffer(maxBytes int) *OutputBuffer {
	if maxBytes <= 0 {
		maxBytes = 200_000
	}
	return &OutputBuffer{maxBytes: maxBytes, maxEntries: maxBufferEntries}
}

// Record appends one output under its originating source name.
// Empty text is not recorded.
func (b *OutputBuffer) Record(source, text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, bufferEntry{source: source, text: text, at: time.Now()})
	b.bytes += len(text)
	for (b.bytes > b.maxBytes || len(b.entries) > b.maxEntries) && len(b.entries) > 1 {
		b.bytes -= len(b.entries[0].text)
		b.entries = slices.Delete(b.entries, 0, 1)
	}
}

// Search returns up to limit lines containing the query,
// case-insensitively, newest entries first. Each hit is prefixed with
// its source name.
func (b *OutputBuffer) Search(query string, limit int) []string {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)

	b.mu.Lock()
	defer b.mu.Unlock()

	var hits []string
	for i := len(b.entries) - 1; i >= 0 && len(hits) < limit; i-- {
		e := b.entries[i]
		for _, line := range strings.Split(e.text, "\n") {
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			hits = append(hits, fmt.Sprintf("[%s] %s", e.source, strings.TrimSpace(line)))
			if len(hits) >= limit {
				break
			}
		}
	}
	return hits
}

// Len reports the number of retained entries.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear discards all retained output.
func (b *OutputBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.bytes = 0
}

// MemoryStore is a bounded key-value scratchpad for the save_memory and
// recall_memory tools. Keys keep insertion order for listing. The store
// is cleared at the start of each run.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	order  []string
	limit  int
}

// NewMemoryStore creates a store holding at most limit keys.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryStore{values: make(map[string]string), limit: limit}
}

// Set stores a value. Updating an existing key always succeeds; a new
// key beyond the limit returns ErrMemoryFull.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[key]; !exists {
		if len(s.order) >= s.limit {
			return fmt.Errorf("%w: %d keys stored", ErrMemoryFull, len(s.order))
		}
		s.order = append(s.order, key)
	}
	s.values[key] = value
	return nil
}

// Get returns the value for key and whether it exists.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns all stored keys in insertion order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Clear discards all stored keys and values.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	s.order = nil
}
