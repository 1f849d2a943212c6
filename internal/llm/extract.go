package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse failure kinds.
const (
	KindNoJSON      = "no_json"
	KindUnbalanced  = "unbalanced"
	KindInvalidJSON = "invalid_json"
	KindBadShape    = "bad_shape"
)

// ParseError explains why a model reply could not be used.
type ParseError struct {
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse model reply: " + e.Kind
	}
	return fmt.Sprintf("parse model reply: %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON returns the first JSON object or array embedded in raw.
// Prose before or after the value is ignored, as are Markdown fences.
// Brackets inside string literals do not count toward nesting.
func ExtractJSON(raw string) (json.RawMessage, error) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return nil, &ParseError{Kind: KindNoJSON}
	}

	end, ok := matchClose(raw, start)
	if !ok {
		return nil, &ParseError{Kind: KindUnbalanced, Err: fmt.Errorf("no closing bracket for %q at offset %d", raw[start], start)}
	}

	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		var v any
		err := json.Unmarshal([]byte(candidate), &v)
		return nil, &ParseError{Kind: KindInvalidJSON, Err: err}
	}
	return json.RawMessage(candidate), nil
}

// matchClose finds the bracket closing the one at start.
func matchClose(s string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
