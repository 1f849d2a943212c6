package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
)

// Version is the current Document format.
const Version = 1

// Document is a flat export of everything the service persists.
type Document struct {
	Version     int               `json:"version"`
	ExportedAt  time.Time         `json:"exportedAt"`
	EnergyLevel string            `json:"energyLevel"`
	Points      int               `json:"points"`
	Objectives  []model.Objective `json:"objectives"`
	Tasks       []model.Task      `json:"tasks"`
	Reminders   []model.Reminder  `json:"reminders"`
}

// Stores groups the stores a Document is read from and written to.
type Stores struct {
	Objectives *store.ObjectiveStore
	Tasks      *store.TaskStore
	Points     *store.PointsStore
	Reminders  *store.ReminderStore
	Settings   *store.SettingsStore
}

// ImportStats counts what Import wrote.
type ImportStats struct {
	Objectives   int `json:"objectives"`
	Tasks        int `json:"tasks"`
	Reminders    int `json:"reminders"`
	SkippedTasks int `json:"skippedTasks"`
}

func Export(s Stores) (*Document, error) {
	objectives, err := s.Objectives.List(true)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks.List(model.TaskFilter{})
	if err != nil {
		return nil, err
	}
	reminders, err := s.Reminders.List()
	if err != nil {
		return nil, err
	}
	points, err := s.Points.Total()
	if err != nil {
		return nil, err
	}
	energy, err := s.Settings.EnergyLevel()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:     Version,
		ExportedAt:  time.Now().UTC(),
		EnergyLevel: energy,
		Points:      points,
		Objectives:  objectives,
		Tasks:       tasks,
		Reminders:   reminders,
	}
	if doc.Objectives == nil {
		doc.Objectives = []model.Objective{}
	}
	if doc.Tasks == nil {
		doc.Tasks = []model.Task{}
	}
	if doc.Reminders == nil {
		doc.Reminders = []model.Reminder{}
	}
	return doc, nil
}

// Import writes doc into the stores, keeping ids. Existing rows with the
// same id are overwritten. Tasks whose objective is not present are
// skipped.
func Import(s Stores, doc *Document) (ImportStats, error) {
	var stats ImportStats

	known := make(map[int64]bool, len(doc.Objectives))
	for _, o := range doc.Objectives {
		if err := s.Objectives.Restore(o); err != nil {
			return stats, err
		}
		known[o.ID] = true
		stats.Objectives++
	}

	for _, t := range doc.Tasks {
		if !known[t.ObjectiveID] {
			existing, err := s.Objectives.GetByID(t.ObjectiveID)
			if err != nil {
				return stats, err
			}
			if existing == nil {
				stats.SkippedTasks++
				continue
			}
			known[t.ObjectiveID] = true
		}
		if err := s.Tasks.Restore(t); err != nil {
			return stats, err
		}
		stats.Tasks++
	}

	for id := range known {
		if err := s.Objectives.RefreshProgress(id); err != nil {
			return stats, err
		}
	}

	for _, r := range doc.Reminders {
		if _, err := s.Reminders.UpsertByName(r); err != nil {
			return stats, err
		}
		stats.Reminders++
	}

	if err := s.Points.Set(doc.Points); err != nil {
		return stats, err
	}
	if doc.EnergyLevel != "" {
		if _, err := s.Settings.SetEnergyLevel(doc.EnergyLevel); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Decode accepts either a Document or a legacy data.json file.
func Decode(raw []byte) (*Document, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if probe.Version == 0 {
		return ImportLegacy(raw)
	}
	if probe.Version > Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", probe.Version)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &doc, nil
}
