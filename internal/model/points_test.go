package model

import (
	"testing"
	"time"
)

func TestStreak(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, loc)
	day := func(offset int) time.Time { return now.AddDate(0, 0, -offset) }

	tests := []struct {
		name        string
		completions []time.Time
		want        int
	}{
		{"none", nil, 0},
		{"today only", []time.Time{day(0)}, 1},
		{"yesterday only", []time.Time{day(1)}, 1},
		{"three days running", []time.Time{day(0), day(1), day(1), day(2)}, 3},
		{"gap breaks run", []time.Time{day(0), day(2), day(3)}, 1},
		{"stale", []time.Time{day(2), day(3)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(tt.completions, now, loc); got != tt.want {
				t.Errorf("Streak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreakUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC) // 17th, 22:00 local
	completion := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	if got := Streak([]time.Time{completion}, now, loc); got != 1 {
		t.Errorf("Streak = %d, want 1", got)
	}
}

func TestPointsMessage(t *testing.T) {
	if PointsMessage(0) == PointsMessage(10) {
		t.Error("zero and ten points should get different messages")
	}
	if PointsMessage(600) != PointsMessage(1000) {
		t.Error("top tier should share a message")
	}
}

func TestAchievements(t *testing.T) {
	if got := Achievements(0, 0, 0, 0); len(got) != 0 {
		t.Errorf("achievements = %v, want none", got)
	}
	if got := Achievements(50, 5, 3, 60); len(got) != 4 {
		t.Errorf("achievements = %d, want 4", len(got))
	}
}
