package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/model"
)

const (
	DefaultMinutes = 15
	MinMinutes     = 5
	MaxMinutes     = 30
)

var (
	rangePattern  = regexp.MustCompile(`(\d+)\s*(?:-|–|a|to)\s*(\d+)`)
	numberPattern = regexp.MustCompile(`\d+`)
)

// ParseMinutes turns a model's time estimate into whole minutes. Ranges
// like "5-30 min" become their rounded average, a single number is taken
// as is, and anything unparsable becomes DefaultMinutes. The result is
// clamped to MinMinutes..MaxMinutes.
func ParseMinutes(v any) int {
	var minutes float64
	switch t := v.(type) {
	case float64:
		minutes = t
	case int:
		minutes = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return DefaultMinutes
		}
		minutes = f
	case string:
		m, ok := parseMinutesString(t)
		if !ok {
			return DefaultMinutes
		}
		minutes = m
	default:
		return DefaultMinutes
	}

	n := int(math.Round(minutes))
	if n <= 0 {
		return DefaultMinutes
	}
	return clampMinutes(n)
}

func parseMinutesString(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		hi, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, false
		}
		return float64(lo+hi) / 2, true
	}
	if m := numberPattern.FindString(s); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	return 0, false
}

func clampMinutes(n int) int {
	if n < MinMinutes {
		return MinMinutes
	}
	if n > MaxMinutes {
		return MaxMinutes
	}
	return n
}

// replyItem accepts English and Portuguese field names.
type replyItem struct {
	Title         string `json:"title"`
	Titulo        string `json:"titulo"`
	Description   string `json:"description"`
	Descricao     string `json:"descricao"`
	EstimatedTime any    `json:"estimatedTime"`
	Tempo         any    `json:"tempo"`
	Time          any    `json:"time"`
}

func (it replyItem) descriptor() (model.TaskDescriptor, bool) {
	title := strings.TrimSpace(firstNonEmpty(it.Title, it.Titulo))
	if title == "" {
		return model.TaskDescriptor{}, false
	}

	var est any
	for _, v := range []any{it.EstimatedTime, it.Tempo, it.Time} {
		if v != nil {
			est = v
			break
		}
	}

	return model.TaskDescriptor{
		Title:         title,
		Description:   strings.TrimSpace(firstNonEmpty(it.Description, it.Descricao)),
		EstimatedTime: ParseMinutes(est),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DecodeReply extracts and validates the task list in a model reply. The
// list may be a bare array or wrapped under "tasks", "tarefas" or
// "missoes". Any structural problem is a *llm.ParseError.
func DecodeReply(raw string) ([]model.TaskDescriptor, error) {
	value, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	items, err := itemsOf(value)
	if err != nil {
		return nil, &llm.ParseError{Kind: llm.KindBadShape, Err: err}
	}
	if len(items) == 0 {
		return nil, &llm.ParseError{Kind: llm.KindBadShape, Err: errors.New("empty task list")}
	}

	out := make([]model.TaskDescriptor, 0, len(items))
	for i, item := range items {
		d, ok := item.descriptor()
		if !ok {
			return nil, &llm.ParseError{Kind: llm.KindBadShape, Err: fmt.Errorf("item %d has no title", i)}
		}
		out = append(out, d)
	}
	return out, nil
}

func itemsOf(value json.RawMessage) ([]replyItem, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []replyItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode task array: %w", err)
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode reply object: %w", err)
	}
	for _, key := range []string{"tasks", "tarefas", "missoes"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		var items []replyItem
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		return items, nil
	}
	return nil, errors.New("object has no tasks, tarefas or missoes array")
}
