package generator

import (
	"fmt"
	"strings"

	"github.com/dukerupert/prota/internal/llm"
	"github.com/dukerupert/prota/internal/model"
)

const systemPrompt = "You turn goals into simple, practical and realistic micro-tasks. You answer with JSON only."

const rules = `You are a GENERATOR OF EXECUTABLE MICRO-TASKS.

Turn the goal below into actions so specific they can be started right
away, with no planning, no long research and no abstract decisions.

MANDATORY RULES:

1. EVERY task must:
- Start with a clear action verb (create, write, code, list, set up)
- Be startable without asking "where do I begin?"
- Produce something visible or measurable when done
- Be doable by ONE person alone
- Take between 5 and 30 minutes at most

2. Tasks MUST NOT contain words such as:
plan, analyze, research, define, think, study, organize, structure, review, evaluate

3. Tasks MUST NOT be vague or conceptual, such as:
"Define scope", "Plan next steps", "Think about the architecture", "Organize ideas"

4. If the goal is large or abstract, always break it down to the smallest
physical step, starting with actions that unblock progress immediately.

5. Tasks follow a logical order of execution, each one preparing the next.

OUTPUT FORMAT (MANDATORY):
Return ONLY valid JSON. No text before or after. Exact format:

[
  {
    "title": "short, direct title",
    "description": "concrete description of exactly what to do",
    "estimatedTime": "5-30 min"
  }
]`

func energyContext(energy string) string {
	switch energy {
	case model.EnergyTired:
		return "The user is very tired and needs SUPER simple tasks of about 5 minutes."
	case model.EnergyNormal:
		return "The user is in a normal state and can handle tasks of 10-15 minutes."
	case model.EnergyMotivated:
		return "The user is motivated and can handle tasks of 20-30 minutes."
	}
	return ""
}

// BuildMessages renders the chat messages for a generation request that
// should produce count tasks.
func BuildMessages(req Request, count int) []llm.Message {
	var b strings.Builder
	b.WriteString(rules)
	b.WriteString("\n\n")

	if ctx := energyContext(req.Energy); ctx != "" {
		fmt.Fprintf(&b, "Context: %s\n", ctx)
	}
	if req.Day > 0 {
		fmt.Fprintf(&b, "This is day %d of the user's program; build on what earlier days would have done.\n", req.Day)
	}
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}

	fmt.Fprintf(&b, "Generate %d micro-tasks.\n\n", count)
	fmt.Fprintf(&b, "Goal: %s\n", strings.TrimSpace(req.Goal))
	if d := strings.TrimSpace(req.Description); d != "" {
		fmt.Fprintf(&b, "Details: %s\n", d)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// CoachingMessage is a short encouragement shown after a generation.
func CoachingMessage(energy string) string {
	switch energy {
	case model.EnergyTired:
		return "One 5 minute task is already a win. Stop without guilt if you get tired."
	case model.EnergyNormal:
		return "Start with the first task. 15 minutes already make a difference."
	case model.EnergyMotivated:
		return "Great energy! Make the most of it, but do not burn out today."
	}
	return "Let's go! One step at a time."
}
