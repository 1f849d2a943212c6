package model

import "time"

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// GenerationJob tracks one background task generation for an objective.
type GenerationJob struct {
	ID          string     `json:"id"`
	ObjectiveID int64      `json:"objectiveId"`
	EnergyLevel string     `json:"energyLevel,omitempty"`
	Status      string     `json:"status"`
	Source      string     `json:"source,omitempty"`
	TaskCount   int        `json:"taskCount"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *GenerationJob) Done() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
