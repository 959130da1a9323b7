package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// ExtractJSON returns the first valid top-level JSON object embedded in
// text. Model responses routinely wrap the object in markdown fences or
// surround it with prose; both are tolerated. Brace matching respects
// string literals and escapes, so braces inside values do not confuse
// the scan.
func ExtractJSON(text string) (string, bool) {
	for start := 0; start < len(text); {
		i := strings.IndexByte(text[start:], '{')
		if i < 0 {
			return "", false
		}
		i += start

		if end, ok := balancedEnd(text, i); ok {
			candidate := text[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		start = i + 1
	}
	return "", false
}

// balancedEnd scans from an opening brace and returns the index of the
// matching closing brace.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Decode extracts the outermost JSON object from a model response and
// unmarshals it into v. Fields the response omits keep their zero
// values; callers apply their own defaults.
func Decode(text string, v any) error {
	raw, ok := ExtractJSON(text)
	if !ok {
		return apperrors.NewLLMError("no JSON object in model response", apperrors.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperrors.NewLLMError(fmt.Sprintf("decode model response: %v", err), apperrors.ErrMalformedResponse)
	}
	return nil
}
