package model

import "time"

const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
)

// Task sources record where a task came from.
const (
	SourceManual   = "manual"
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Task struct {
	ID            int64      `json:"id"`
	ObjectiveID   int64      `json:"objectiveId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	EstimatedTime int        `json:"estimatedTime"`
	Position      int        `json:"position"`
	Status        string     `json:"status"`
	Source        string     `json:"source"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt"`
}

// TaskDescriptor is a task that has not been persisted yet.
type TaskDescriptor struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime int    `json:"estimatedTime"`
}

// TaskFilter narrows a task listing. Zero values mean "any".
type TaskFilter struct {
	Status      string
	ObjectiveID int64
	Priority    string
	Limit       int
}

type TaskStats struct {
	Pending            int `json:"pending"`
	Done               int `json:"done"`
	EstimatedTimeTotal int `json:"estimatedTimeTotal"`
}
