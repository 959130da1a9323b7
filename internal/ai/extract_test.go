package ai

import (
	"testing"

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			text: `{"action":"run_command"}`,
			want: `{"action":"run_command"}`,
			ok:   true,
		},
		{
			name: "empty object",
			text: `{}`,
			want: `{}`,
			ok:   true,
		},
		{
			name: "markdown fences",
			text: "```json\n{\"done\": true}\n```",
			want: `{"done": true}`,
			ok:   true,
		},
		{
			name: "prose around object",
			text: `Sure! Here is the next step: {"tool":"read_file","args":{"path":"main.go"}} Let me know how it goes.`,
			want: `{"tool":"read_file","args":{"path":"main.go"}}`,
			ok:   true,
		},
		{
			name: "nested objects return outermost",
			text: `{"a":{"b":{"c":1}}}`,
			want: `{"a":{"b":{"c":1}}}`,
			ok:   true,
		},
		{
			name: "braces inside string values",
			text: `{"command":"awk '{print $1}' access.log"}`,
			want: `{"command":"awk '{print $1}' access.log"}`,
			ok:   true,
		},
		{
			name: "escaped quotes inside strings",
			text: `{"note":"she said \"hi {\" and left"}`,
			want: `{"note":"she said \"hi {\" and left"}`,
			ok:   true,
		},
		{
			name: "invalid candidate skipped for later valid object",
			text: `{not actually json} but then {"ok":true}`,
			want: `{"ok":true}`,
			ok:   true,
		},
		{
			name: "first of several objects wins",
			text: `{"a":1} {"b":2}`,
			want: `{"a":1}`,
			ok:   true,
		},
		{
			name: "no object at all",
			text: "I cannot determine the next action.",
			ok:   false,
		},
		{
			name: "unterminated object",
			text: `{"a": 1`,
			ok:   false,
		},
		{
			name: "array is not an object",
			text: `[1, 2, 3]`,
			ok:   false,
		},
		{
			name: "empty input",
			text: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.text)
			if ok != tt.ok {
				t.Fatalf("ExtractJSON() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type action struct {
		Tool    string `json:"tool"`
		Command string `json:"command"`
		Done    bool   `json:"done"`
	}

	t.Run("decodes fenced response", func(t *testing.T) {
		var a action
		err := Decode("```json\n{\"tool\":\"write_file\",\"done\":false}\n```", &a)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if a.Tool != "write_file" {
			t.Errorf("Tool = %q, want %q", a.Tool, "write_file")
		}
		if a.Done {
			t.Error("Done = true, want false")
		}
	})

	t.Run("missing fields keep zero values", func(t *testing.T) {
		var a action
		if err := Decode(`{"tool":"list_files"}`, &a); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if a.Command != "" || a.Done {
			t.Errorf("expected zero values for absent fields, got %+v", a)
		}
	})

	t.Run("no object is malformed", func(t *testing.T) {
		var a action
		err := Decode("thinking about it...", &a)
		if err == nil {
			t.Fatal("Decode() error = nil, want malformed response error")
		}
		if !apperrors.Is(err, apperrors.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("type mismatch is malformed", func(t *testing.T) {
		var a action
		err := Decode(`{"done":"yes"}`, &a)
		if err == nil {
			t.Fatal("Decode() error = nil, want malformed response error")
		}
		if !apperrors.Is(err, apperrors.ErrMalformedResponse) {
			t.Errorf("expected ErrMalformedResponse, got %v", err)
		}
	})
}
