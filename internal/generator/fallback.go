package generator

import (
	"fmt"
	"strings"

	"github.com/dukerupert/prota/internal/model"
)

// Fallback returns the deterministic task list used when the model is
// unavailable or its reply is unusable. Category is one of body, mind or
// work; anything else selects the generic starter list.
func Fallback(goal, category string) []model.TaskDescriptor {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "your goal"
	}

	var table []fallbackTask
	switch NormalizeCategory(category) {
	case CategoryBody:
		table = bodyTasks
	case CategoryMind:
		table = mindTasks
	case CategoryWork:
		table = workTasks
	default:
		table = starterTasks
	}

	out := make([]model.TaskDescriptor, len(table))
	for i, t := range table {
		out[i] = model.TaskDescriptor{
			Title:         t.title,
			Description:   fmt.Sprintf(t.description, goal),
			EstimatedTime: t.minutes,
		}
	}
	return out
}

type fallbackTask struct {
	title       string
	description string // %s is replaced by the goal
	minutes     int
}

var starterTasks = []fallbackTask{
	{"Write the goal in one sentence", "Open a note and write \"%s\" as one concrete sentence with a finish line.", 5},
	{"List the first three actions", "Write three physical actions that move \"%s\" forward, each doable today.", 10},
	{"Do the first action", "Set a 15 minute timer and do the first action on your list for \"%s\".", 15},
	{"Record what you produced", "Save or photograph what you made and note the next action for \"%s\".", 5},
}

var bodyTasks = []fallbackTask{
	{"Measure your starting point", "Write down today's numbers that matter for \"%s\" (time, distance, weight or reps).", 10},
	{"Prepare your gear", "Put clothes, shoes and water for \"%s\" where you will see them tomorrow.", 5},
	{"Do a 15 minute session", "Start a timer and do 15 easy minutes of activity toward \"%s\".", 15},
	{"Schedule the next session", "Add the next session for \"%s\" to your calendar with a fixed time.", 5},
}

var mindTasks = []fallbackTask{
	{"Open a practice notebook", "Create a note titled \"%s\" and write today's date as the first entry.", 5},
	{"Practice for 15 minutes", "Set a timer and practice one concrete skill for \"%s\" without switching.", 15},
	{"Write three takeaways", "Write three things you learned or noticed while working on \"%s\".", 10},
}

var workTasks = []fallbackTask{
	{"Create the working file", "Create the folder or document where \"%s\" will live and give it a clear name.", 5},
	{"Write the first draft block", "Produce the smallest visible piece of \"%s\" in 20 minutes, ugly is fine.", 20},
	{"Send or save the first result", "Share the draft of \"%s\" with one person or commit it so progress is recorded.", 10},
}
