package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare array", `[{"title":"a"}]`, `[{"title":"a"}]`},
		{"bare object", `{"tasks":[]}`, `{"tasks":[]}`},
		{"preamble", "Here are your tasks:\n[{\"title\":\"a\"}]\nGood luck!", `[{"title":"a"}]`},
		{"markdown fence", "```json\n[1, 2]\n```", `[1, 2]`},
		{"brackets in strings", `ok [{"title":"use ] and [ and \"quotes\""}] done`, `[{"title":"use ] and [ and \"quotes\""}]`},
		{"nested", `x {"a":[{"b":{}}]} y {"c":1}`, `{"a":[{"b":{}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind string
	}{
		{"non json", "I cannot help with that.", KindNoJSON},
		{"empty", "", KindNoJSON},
		{"truncated", `[{"title":"a"},{"title":"b"`, KindUnbalanced},
		{"mismatched", `[{"title":"a"]`, KindUnbalanced},
		{"trailing comma", `[{"title":"a"},]`, KindInvalidJSON},
		{"single quotes", `[{'title':'a'}]`, KindInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.raw)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", pe.Kind, tt.kind)
			}
		})
	}
}
