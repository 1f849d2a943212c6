package generator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/model"
)

// DefaultMaxTasks caps a generation when no energy level is known.
const DefaultMaxTasks = 7

// Completer is the chat completion endpoint used by the generator.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Request describes what to generate tasks for.
type Request struct {
	Goal        string
	Description string
	Category    string
	Energy      string
	Day         int
	MaxTasks    int
}

// Result is a generated task list. Source is model or fallback; Reason
// explains a fallback.
type Result struct {
	Tasks    []model.TaskDescriptor
	Source   string
	Reason   string
	Coaching string
}

// Generator turns goals into task lists.
type Generator struct {
	client Completer
	logger *slog.Logger
}

func New(client Completer, logger *slog.Logger) *Generator {
	return &Generator{client: client, logger: logger}
}

// Configured reports whether generations will try the model.
func (g *Generator) Configured() bool {
	return g.client != nil && g.client.Configured()
}

// TaskCap is the maximum number of tasks for an energy level. A tired user
// gets more, smaller tasks; a motivated one fewer, larger ones.
func TaskCap(energy string) int {
	switch energy {
	case model.EnergyTired:
		return 5
	case model.EnergyNormal:
		return 4
	case model.EnergyMotivated:
		return 3
	}
	return DefaultMaxTasks
}

// Generate never fails: any problem with the model yields the fallback list.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	limit := TaskCap(req.Energy)
	if req.MaxTasks > 0 && req.MaxTasks < limit {
		limit = req.MaxTasks
	}

	tasks, reason := g.fromModel(ctx, req, limit)
	source := model.SourceModel
	if tasks == nil {
		category := InferCategory(req.Category, req.Goal+" "+req.Description)
		tasks = Fallback(req.Goal, category)
		source = model.SourceFallback
		g.logger.Info("generated tasks", "source", source, "reason", reason, "category", category, "count", min(len(tasks), limit))
	} else {
		g.logger.Info("generated tasks", "source", source, "count", min(len(tasks), limit))
	}

	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return Result{
		Tasks:    tasks,
		Source:   source,
		Reason:   reason,
		Coaching: CoachingMessage(req.Energy),
	}
}

// fromModel returns nil tasks and a reason when the fallback must be used.
func (g *Generator) fromModel(ctx context.Context, req Request, count int) ([]model.TaskDescriptor, string) {
	if !g.Configured() {
		return nil, "model not configured"
	}

	reply, err := g.client.Complete(ctx, BuildMessages(req, count))
	if err != nil {
		var apiErr *llm.APIError
		switch {
		case errors.As(err, &apiErr):
			g.logger.Warn("model request rejected", "status", apiErr.Status, "body", truncate(apiErr.Body, 300))
		case errors.Is(err, context.DeadlineExceeded):
			g.logger.Warn("model request timed out", "error", err)
		default:
			g.logger.Warn("model request failed", "error", err)
		}
		return nil, "model request failed: " + err.Error()
	}

	tasks, err := DecodeReply(reply)
	if err != nil {
		g.logger.Warn("unusable model reply", "error", err, "raw", truncate(reply, 1000))
		return nil, err.Error()
	}
	return tasks, ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
