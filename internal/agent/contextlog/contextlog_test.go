package contextlog

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestLog_RecordHelpers(t *testing.T) {
	l := New()
	l.Ran("ls -la")
	l.Output("total 8\nhello.txt")
	l.ExitCode(0)
	l.Tool("write_file", "path=hello.txt")
	l.Result("wrote 2 bytes")
	l.Feedback("also add a newline at the end")
	l.Adjustment("try the simpler approach first")

	entries := l.Entries()
	want := []string{
		"RAN: ls -la",
		"OUTPUT: total 8\nhello.txt",
		"EXIT_CODE: 0",
		"TOOL: write_file path=hello.txt",
		"RESULT: wrote 2 bytes",
		"USER FEEDBACK: also add a newline at the end",
		"STRATEGY ADJUSTMENT: try the simpler approach first",
	}

	if len(entries) != len(want) {
		t.Fatalf("Len = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Text != w {
			t.Errorf("entries[%d].Text = %q, want %q", i, entries[i].Text, w)
		}
		if entries[i].Summary {
			t.Errorf("entries[%d] marked as summary", i)
		}
	}
}

func TestLog_Tool_NoDetail(t *testing.T) {
	l := New()
	l.Tool("list_files", "")

	if got := l.Entries()[0].Text; got != "TOOL: list_files" {
		t.Errorf("Text = %q, want %q", got, "TOOL: list_files")
	}
}

func TestLog_AppendOrder(t *testing.T) {
	l := New()
	for i := range 50 {
		l.Append(fmt.Sprintf("record %d", i))
	}

	entries := l.Entries()
	for i, e := range entries {
		if e.Text != fmt.Sprintf("record %d", i) {
			t.Fatalf("entries[%d] = %q, appended order not preserved", i, e.Text)
		}
	}
}

func TestLog_Text(t *testing.T) {
	l := New()
	l.Ran("echo hi")
	l.ExitCode(0)

	want := "RAN: echo hi\nEXIT_CODE: 0"
	if got := l.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestLog_Chars(t *testing.T) {
	l := New()
	if l.Chars() != 0 {
		t.Errorf("Chars() on empty log = %d, want 0", l.Chars())
	}

	l.Append("abcde")
	l.Append("fgh")
	if l.Chars() != 8 {
		t.Errorf("Chars() = %d, want 8", l.Chars())
	}
}

func TestLog_Recent(t *testing.T) {
	l := New()
	for i := range 10 {
		l.Append(fmt.Sprintf("record %d", i))
	}

	recent := l.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) length = %d, want 3", len(recent))
	}
	if recent[0].Text != "record 7" || recent[2].Text != "record 9" {
		t.Errorf("Recent(3) = %q..%q, want record 7..record 9", recent[0].Text, recent[2].Text)
	}

	if got := l.Recent(100); len(got) != 10 {
		t.Errorf("Recent(100) length = %d, want all 10", len(got))
	}
	if got := l.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestLog_Compact(t *testing.T) {
	l := New()
	for i := range 20 {
		l.Append(fmt.Sprintf("record %d", i))
	}

	removed := l.Compact("ran 17 commands setting up the project", 12)
	if removed != 8 {
		t.Errorf("Compact removed %d entries, want 8", removed)
	}

	entries := l.Entries()
	if len(entries) != 13 {
		t.Fatalf("post-compaction length = %d, want 13 (summary + 12 kept)", len(entries))
	}

	if !entries[0].Summary {
		t.Error("first entry should be the summary record")
	}
	if !strings.HasPrefix(entries[0].Text, "SUMMARY: ") {
		t.Errorf("summary text = %q, want SUMMARY: prefix", entries[0].Text)
	}

	// The most recent entries survive verbatim, in order.
	for i := 1; i < len(entries); i++ {
		want := fmt.Sprintf("record %d", i+7)
		if entries[i].Text != want {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Text, want)
		}
	}

	if l.Compactions() != 1 {
		t.Errorf("Compactions() = %d, want 1", l.Compactions())
	}
	if l.LastCompaction().IsZero() {
		t.Error("LastCompaction() should be set after compaction")
	}
}

func TestLog_Compact_NothingToCompact(t *testing.T) {
	l := New()
	l.Append("a")
	l.Append("b")

	if removed := l.Compact("summary", 12); removed != 0 {
		t.Errorf("Compact on short log removed %d, want 0", removed)
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2 (untouched)", l.Len())
	}
	if l.Compactions() != 0 {
		t.Errorf("Compactions() = %d, want 0 for a no-op", l.Compactions())
	}
	if !l.LastCompaction().IsZero() {
		t.Error("LastCompaction() should stay zero for a no-op")
	}
}

func TestLog_Compact_KeepZero(t *testing.T) {
	l := New()
	l.Append("a")
	l.Append("b")

	removed := l.Compact("everything", 0)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	entries := l.Entries()
	if len(entries) != 1 || !entries[0].Summary {
		t.Errorf("entries = %+v, want single summary record", entries)
	}
}

func TestLog_Compact_Repeated(t *testing.T) {
	l := New()
	for i := range 30 {
		l.Append(fmt.Sprintf("record %d", i))
	}

	l.Compact("first pass", 10)
	for i := range 10 {
		l.Append(fmt.Sprintf("late %d", i))
	}
	l.Compact("second pass", 10)

	if l.Compactions() != 2 {
		t.Errorf("Compactions() = %d, want 2", l.Compactions())
	}

	entries := l.Entries()
	if len(entries) != 11 {
		t.Fatalf("length = %d, want 11", len(entries))
	}
	if entries[0].Text != "SUMMARY: second pass" {
		t.Errorf("head = %q, want second-pass summary", entries[0].Text)
	}
	if entries[len(entries)-1].Text != "late 9" {
		t.Errorf("tail = %q, want most recent record", entries[len(entries)-1].Text)
	}
}

func TestFromEntries(t *testing.T) {
	orig := New()
	orig.Ran("make build")
	orig.ExitCode(2)

	restored := FromEntries(orig.Entries())
	if restored.Len() != 2 {
		t.Fatalf("restored Len = %d, want 2", restored.Len())
	}
	if restored.Text() != orig.Text() {
		t.Errorf("restored Text = %q, want %q", restored.Text(), orig.Text())
	}

	// The restored log is independent of the source slice.
	restored.Append("new record")
	if orig.Len() != 2 {
		t.Error("appending to restored log affected the original")
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			l.Ran(fmt.Sprintf("command %d", i))
			_ = l.Text()
			_ = l.Chars()
		})
	}
	wg.Wait()

	if l.Len() != 20 {
		t.Errorf("Len = %d, want 20", l.Len())
	}
}
