package model

import "time"

// PointsSummary is the derived view returned by GET /points.
type PointsSummary struct {
	Points            int           `json:"points"`
	CompletedTasks    int           `json:"completedTasks"`
	TotalTasks        int           `json:"totalTasks"`
	TotalTimeInvested int           `json:"totalTimeInvested"`
	TimePerTask       int           `json:"timePerTask"`
	Streak            int           `json:"streak"`
	Message           string        `json:"message"`
	Achievements      []Achievement `json:"achievements"`
}

type Achievement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Streak counts consecutive calendar days, in loc, with at least one
// completion. The run must include today or yesterday to count.
func Streak(completions []time.Time, now time.Time, loc *time.Location) int {
	days := make(map[string]bool, len(completions))
	for _, c := range completions {
		days[c.In(loc).Format(time.DateOnly)] = true
	}

	day := now.In(loc)
	if !days[day.Format(time.DateOnly)] {
		day = day.AddDate(0, 0, -1)
		if !days[day.Format(time.DateOnly)] {
			return 0
		}
	}

	streak := 0
	for days[day.Format(time.DateOnly)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// PointsMessage returns an encouragement line for the point total.
func PointsMessage(points int) string {
	switch {
	case points <= 0:
		return "First steps! Create your first objective."
	case points < 50:
		return "Good start! Keep going with small tasks."
	case points < 200:
		return "Nice pace! Consistent progress is the key."
	case points < 500:
		return "Impressive! You are building a habit."
	default:
		return "Excellent! You have mastered micro-progress."
	}
}

// Achievements lists the milestones reached so far.
func Achievements(points, completed, objectives, minutes int) []Achievement {
	out := []Achievement{}
	if points >= 10 {
		out = append(out, Achievement{ID: "first_points", Name: "First steps"})
	}
	if completed >= 5 {
		out = append(out, Achievement{ID: "five_tasks", Name: "5 tasks done"})
	}
	if objectives >= 3 {
		out = append(out, Achievement{ID: "three_objectives", Name: "3 objectives"})
	}
	if minutes >= 60 {
		out = append(out, Achievement{ID: "one_hour", Name: "1 hour invested"})
	}
	return out
}
