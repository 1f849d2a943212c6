package generator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dukerupert/prota/internal/llm"
)

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{"5-30 min", 18},
		{"10-20 min", 15},
		{"10 - 20", 15},
		{"20 min", 20},
		{"cerca de 10 a 15 minutos", 13},
		{"quick", 15},
		{"", 15},
		{nil, 15},
		{float64(12), 12},
		{float64(12.6), 13},
		{12, 12},
		{json.Number("25"), 25},
		{"2 min", 5},
		{"45-90 min", 30},
		{float64(0), 15},
		{true, 15},
		{"99999999999999999999-5 min", 15},
		{"99999999999999999999 min", 15},
	}
	for _, tt := range tests {
		if got := ParseMinutes(tt.in); got != tt.want {
			t.Errorf("ParseMinutes(%#v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDecodeReplyShapes(t *testing.T) {
	tasks, err := DecodeReply(`{"tasks":[{"title":"a","estimatedTime":"5-10 min"}]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].EstimatedTime != 8 {
		t.Errorf("tasks = %+v", tasks)
	}

	tasks, err = DecodeReply(`{"tarefas":[{"titulo":"b","descricao":"c"}]}`)
	if err != nil {
		t.Fatalf("decode tarefas: %v", err)
	}
	if tasks[0].Title != "b" || tasks[0].Description != "c" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestDecodeReplyErrors(t *testing.T) {
	tests := []struct {
		raw  string
		kind string
	}{
		{"no json here", llm.KindNoJSON},
		{`[{"title":"a"`, llm.KindUnbalanced},
		{`[{"title":"a",}]`, llm.KindInvalidJSON},
		{`{"foo":[]}`, llm.KindBadShape},
		{`[1, 2, 3]`, llm.KindBadShape},
		{`[{"title":""}]`, llm.KindBadShape},
		{`{"tasks":"none"}`, llm.KindBadShape},
	}
	for _, tt := range tests {
		_, err := DecodeReply(tt.raw)
		var pe *llm.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("DecodeReply(%q) err = %v, want *llm.ParseError", tt.raw, err)
			continue
		}
		if pe.Kind != tt.kind {
			t.Errorf("DecodeReply(%q) kind = %q, want %q", tt.raw, pe.Kind, tt.kind)
		}
	}
}
