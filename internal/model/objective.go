package model

import (
	"strings"
	"time"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Objective struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	EnergyLevel string    `json:"energyLevel,omitempty"`
	Active      bool      `json:"active"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizePriority maps the accepted spellings onto low, medium or high.
// The second return value is false for anything unrecognised.
func NormalizePriority(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", PriorityMedium, "media", "média":
		return PriorityMedium, true
	case PriorityLow, "baixa":
		return PriorityLow, true
	case PriorityHigh, "alta":
		return PriorityHigh, true
	}
	return "", false
}
