package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/model"
)

// legacyData is the data.json written by the first version of the service.
// Ids are millisecond timestamps.
type legacyData struct {
	Objectives []legacyObjective `json:"objectives"`
	Tasks      []legacyTask      `json:"tasks"`
	Points     json.RawMessage   `json:"points"`
	UserStats  struct {
		EnergyLevel string `json:"energyLevel"`
	} `json:"userStats"`
	UserSettings struct {
		DefaultEnergyLevel string `json:"defaultEnergyLevel"`
	} `json:"userSettings"`
}

type legacyObjective struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	EnergyLevel string  `json:"energyLevel"`
	Active      *bool   `json:"active"`
	Progress    float64 `json:"progress"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type legacyTask struct {
	ID            int64  `json:"id"`
	ObjectiveID   int64  `json:"objectiveId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime any    `json:"estimatedTime"`
	Status        string `json:"status"`
	Priority      int    `json:"priority"`
	CreatedAt     string `json:"createdAt"`
	CompletedAt   string `json:"completedAt"`
}

// ImportLegacy converts a legacy data.json into a Document.
func ImportLegacy(raw []byte) (*Document, error) {
	var data legacyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc := &Document{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Points:     legacyPoints(data.Points),
		Objectives: make([]model.Objective, 0, len(data.Objectives)),
		Tasks:      make([]model.Task, 0, len(data.Tasks)),
		Reminders:  []model.Reminder{},
	}

	energy := data.UserStats.EnergyLevel
	if energy == "" {
		energy = data.UserSettings.DefaultEnergyLevel
	}
	if level, ok := model.NormalizeEnergy(energy); ok {
		doc.EnergyLevel = level
	}

	for _, lo := range data.Objectives {
		if lo.ID == 0 || strings.TrimSpace(lo.Title) == "" {
			continue
		}
		o := model.Objective{
			ID:          lo.ID,
			Title:       strings.TrimSpace(lo.Title),
			Description: lo.Description,
			Category:    generator.NormalizeCategory(lo.Category),
			Active:      lo.Active == nil || *lo.Active,
			Progress:    int(lo.Progress + 0.5),
			CreatedAt:   legacyTime(lo.CreatedAt, lo.ID),
		}
		o.Priority, _ = model.NormalizePriority(lo.Priority)
		if o.Priority == "" {
			o.Priority = model.PriorityMedium
		}
		o.EnergyLevel, _ = model.NormalizeEnergy(lo.EnergyLevel)
		o.UpdatedAt = o.CreatedAt
		if lo.UpdatedAt != "" {
			o.UpdatedAt = legacyTime(lo.UpdatedAt, lo.ID)
		}
		doc.Objectives = append(doc.Objectives, o)
	}

	positions := make(map[int64]int)
	for _, lt := range data.Tasks {
		if lt.ID == 0 || strings.TrimSpace(lt.Title) == "" {
			continue
		}
		positions[lt.ObjectiveID]++
		t := model.Task{
			ID:            lt.ID,
			ObjectiveID:   lt.ObjectiveID,
			Title:         strings.TrimSpace(lt.Title),
			Description:   lt.Description,
			EstimatedTime: generator.ParseMinutes(lt.EstimatedTime),
			Position:      positions[lt.ObjectiveID],
			Status:        model.TaskStatusPending,
			Source:        model.SourceManual,
			CreatedAt:     legacyTime(lt.CreatedAt, lt.ID),
		}
		if lt.Priority > 0 {
			t.Position = lt.Priority
		}
		if lt.Status == model.TaskStatusDone || lt.Status == "completed" || lt.Status == "concluida" {
			t.Status = model.TaskStatusDone
			done := t.CreatedAt
			if lt.CompletedAt != "" {
				done = legacyTime(lt.CompletedAt, lt.ID)
			}
			t.CompletedAt = &done
		}
		doc.Tasks = append(doc.Tasks, t)
	}
	return doc, nil
}

// legacyPoints accepts either a bare number or {"total": n}.
func legacyPoints(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return max(int(n), 0)
	}
	var obj struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return max(int(obj.Total), 0)
	}
	return 0
}

// legacyTime parses an ISO timestamp, falling back to the millisecond id.
func legacyTime(s string, id int64) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if id > 1e12 {
		return time.UnixMilli(id).UTC()
	}
	return time.Now().UTC()
}
