package tool

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestOutputBufferSearch(t *testing.T) {
	buf := NewOutputBuffer(1000)
	buf.Record("run_command", "go test ./...\nok  pkg/a  0.3s\nFAIL pkg/b  0.1s")
	buf.Record("read_file", "   1 | package b\n   2 | func Fail() {}")

	hits := buf.Search("fail", 10)
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2: %v", len(hits), hits)
	}
	// Newest entry first.
	if !strings.HasPrefix(hits[0], "[read_file]") {
		t.Errorf("first hit = %q, want [read_file] prefix", hits[0])
	}
	if !strings.HasPrefix(hits[1], "[run_command]") {
		t.Errorf("second hit = %q, want [run_command] prefix", hits[1])
	}
	if !strings.Contains(hits[1], "FAIL pkg/b") {
		t.Errorf("second hit = %q, want the FAIL line", hits[1])
	}
}

func TestOutputBufferSearchLimit(t *testing.T) {
	buf := NewOutputBuffer(10_000)
	for i := range 10 {
		buf.Record("tool", fmt.Sprintf("match line %d", i))
	}

	hits := buf.Search("match", 3)
	if len(hits) != 3 {
		t.Fatalf("Search() returned %d hits, want 3", len(hits))
	}
	if !strings.Contains(hits[0], "line 9") {
		t.Errorf("first hit = %q, want newest entry (line 9)", hits[0])
	}
}

func TestOutputBufferEvictsByBytes(t *testing.T) {
	buf := NewOutputBuffer(100)
	buf.Record("a", strings.Repeat("x", 80))
	buf.Record("b", strings.Repeat("y", 80))

	if got := buf.Len(); got != 1 {
		t.Fatalf("Len() = %d after byte overflow, want 1", got)
	}
	if hits := buf.Search("x", 10); len(hits) != 0 {
		t.Errorf("evicted entry still searchable: %v", hits)
	}
	if hits := buf.Search("y", 10); len(hits) != 1 {
		t.Errorf("newest entry not searchable, got %v", hits)
	}
}

func TestOutputBufferKeepsOversizedNewestEntry(t *testing.T) {
	buf := NewOutputBuffer(10)
	buf.Record("a", strings.Repeat("x", 50))

	if got := buf.Len(); got != 1 {
		t.Fatalf("Len() = %d, want the oversized entry retained", got)
	}
}

func TestOutputBufferEvictsByEntries(t *testing.T) {
	buf := NewOutputBuffer(1 << 20)
	for i := range maxBufferEntries + 5 {
		buf.Record("tool", fmt.Sprintf("entry %d", i))
	}

	if got := buf.Len(); got != maxBufferEntries {
		t.Fatalf("Len() = %d, want %d", got, maxBufferEntries)
	}
	if hits := buf.Search("entry 0", 10); len(hits) != 0 {
		t.Errorf("oldest entry should be evicted, got %v", hits)
	}
}

func TestOutputBufferIgnoresEmpty(t *testing.T) {
	buf := NewOutputBuffer(100)
	buf.Record("tool", "")

	if got := buf.Len(); got != 0 {
		t.Fatalf("Len() = %d after empty record, want 0", got)
	}
}

func TestOutputBufferClear(t *testing.T) {
	buf := NewOutputBuffer(1000)
	buf.Record("tool", "some output")
	buf.Clear()

	if got := buf.Len(); got != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", got)
	}
	if hits := buf.Search("output", 10); len(hits) != 0 {
		t.Errorf("Search() after Clear = %v, want none", hits)
	}
}

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore(10)
	if err := store.Set("build", "use make all, not go build"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok := store.Get("build")
	if !ok || v != "use make all, not go build" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Get() found a key that was never set")
	}
}

func TestMemoryStoreLimit(t *testing.T) {
	store := NewMemoryStore(2)
	if err := store.Set("a", "1"); err != nil {
		t.Fatalf("Set(a) error = %v", err)
	}
	if err := store.Set("b", "2"); err != nil {
		t.Fatalf("Set(b) error = %v", err)
	}

	if err := store.Set("c", "3"); !errors.Is(err, ErrMemoryFull) {
		t.Fatalf("Set(c) error = %v, want ErrMemoryFull", err)
	}
	// Updating an existing key never counts against the limit.
	if err := store.Set("a", "updated"); err != nil {
		t.Fatalf("Set(a) update error = %v", err)
	}
	if v, _ := store.Get("a"); v != "updated" {
		t.Errorf("Get(a) = %q, want updated value", v)
	}
}

func TestMemoryStoreKeysOrder(t *testing.T) {
	store := NewMemoryStore(10)
	for _, k := range []string{"zeta", "alpha", "mid"} {
		if err := store.Set(k, "v"); err != nil {
			t.Fatalf("Set(%s) error = %v", k, err)
		}
	}
	// Re-setting must not move the key.
	_ = store.Set("zeta", "v2")

	got := store.Keys()
	want := []string{"zeta", "alpha", "mid"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(10)
	_ = store.Set("a", "1")
	store.Clear()

	if got := store.Len(); got != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", got)
	}
	if err := store.Set("b", "2"); err != nil {
		t.Fatalf("Set() after Clear error = %v", err)
	}
}
