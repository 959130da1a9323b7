package orchestrator

import (
	"strings"
	"testing"

	"github.com/TannerBurns/termai/internal/agent/checklist"
	"github.com/TannerBurns/termai/internal/agent/contextlog"
	"github.com/TannerBurns/termai/internal/tool"
)

// ===== renderChecklist =====

func TestRenderChecklist_StatusMarkers(t *testing.T) {
	list := checklist.New("ship it", []string{"first", "second", "third", "fourth", "fifth"})
	list.MarkCompleted(1, "")
	list.MarkInProgress(2)
	list.MarkFailed(3, "exit code 1")
	list.MarkSkipped(4, "")

	out := renderChecklist(list)
	for _, want := range []string{
		"## Checklist",
		"1. [x] first",
		"2. [>] second",
		"3. [!] third",
		"   note: exit code 1",
		"4. [-] fourth",
		"5. [ ] fifth",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("renderChecklist missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderChecklist_EmptyRendersNothing(t *testing.T) {
	if out := renderChecklist(checklist.New("goal", nil)); out != "" {
		t.Errorf("empty checklist rendered %q, want empty", out)
	}
	if out := renderChecklist(nil); out != "" {
		t.Errorf("nil checklist rendered %q, want empty", out)
	}
}

// ===== renderLog =====

func TestRenderLog_EmptyPlaceholder(t *testing.T) {
	if out := renderLog(contextlog.New(), 0); out != "(nothing yet)" {
		t.Errorf("empty log rendered %q", out)
	}
}

func TestRenderLog_TruncatesLongLogs(t *testing.T) {
	log := contextlog.New()
	log.Append("START MARKER")
	for i := 0; i < 200; i++ {
		log.Append(strings.Repeat("x", 100))
	}
	log.Append("END MARKER")

	out := renderLog(log, 500)
	if len(out) > 600 {
		t.Errorf("renderLog kept %d chars, want about 500", len(out))
	}
	if !strings.Contains(out, "START MARKER") || !strings.Contains(out, "END MARKER") {
		t.Error("renderLog should keep the head and the tail of the log")
	}
}

// ===== renderTools =====

func TestRenderTools_FormatsDefinitions(t *testing.T) {
	defs := []tool.Definition{
		{
			Name:        "read_file",
			Description: "Read a file.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":   map[string]any{"type": "string"},
					"offset": map[string]any{"type": "integer"},
				},
				"required": []string{"path"},
			},
		},
	}

	out := renderTools(defs)
	if !strings.Contains(out, "- read_file: Read a file.") {
		t.Errorf("renderTools missing the tool line:\n%s", out)
	}
	if !strings.Contains(out, "args: path (string) required, offset (integer)") {
		t.Errorf("renderTools should list required params first:\n%s", out)
	}
}

func TestRenderTools_Empty(t *testing.T) {
	if out := renderTools(nil); out != "(no tools available)" {
		t.Errorf("renderTools(nil) = %q", out)
	}
}

// ===== summaryLine =====

func TestSummaryLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single line", "Created hello.txt.", "Created hello.txt."},
		{"keeps first line", "Done.\nMore detail here.", "Done."},
		{"skips leading blanks", "\n\n  Created the file.  \nrest", "Created the file."},
		{"empty", "  \n \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summaryLine(tt.text); got != tt.want {
				t.Errorf("summaryLine(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

// ===== Prompt assembly =====

func TestNextActionPrompt_CarriesRunState(t *testing.T) {
	list := checklist.New("create hello.txt", []string{"write the file"})
	log := contextlog.New()
	log.Append("GOAL: create hello.txt")
	defs := []tool.Definition{{Name: "write_file", Description: "Write a file."}}

	out := nextActionPrompt("create hello.txt", list, log, defs)
	for _, want := range []string{
		"## Goal\ncreate hello.txt",
		"## Checklist",
		"1. [ ] write the file",
		"GOAL: create hello.txt",
		"- write_file: Write a file.",
		`"done": true`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("nextActionPrompt missing %q", want)
		}
	}
}

func TestPlanPrompt_CarriesBounds(t *testing.T) {
	out := planPrompt("tidy the repo", nil, 3, 10)
	if !strings.Contains(out, "Aim for 3 to 10 steps") {
		t.Errorf("planPrompt missing the step bounds:\n%s", out)
	}
	if !strings.Contains(out, "tidy the repo") {
		t.Error("planPrompt missing the goal")
	}
}

func TestFixPrompt_CarriesFailure(t *testing.T) {
	out := fixPrompt("cat missing.txt", 1, "cat: missing.txt: No such file or directory")
	for _, want := range []string{"$ cat missing.txt", "Exit code: 1", "No such file or directory"} {
		if !strings.Contains(out, want) {
			t.Errorf("fixPrompt missing %q", want)
		}
	}
}

func TestStuckPrompt_ListsCommands(t *testing.T) {
	out := stuckPrompt("fix the build", []string{"go build ./...", "go build ./..."})
	if strings.Count(out, "$ go build ./...") != 2 {
		t.Errorf("stuckPrompt should list each command:\n%s", out)
	}
	if !strings.Contains(out, "fix the build") {
		t.Error("stuckPrompt missing the goal")
	}
}
