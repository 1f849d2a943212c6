package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/prota/internal/model"
)

type ObjectiveStore struct {
	db *sql.DB
}

func NewObjectiveStore(db *sql.DB) *ObjectiveStore {
	return &ObjectiveStore{db: db}
}

func scanObjective(scanner interface{ Scan(...any) error }) (*model.Objective, error) {
	var o model.Objective
	var active int

	err := scanner.Scan(
		&o.ID, &o.Title, &o.Description, &o.Category, &o.Priority,
		&o.EnergyLevel, &active, &o.Progress, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Active = active != 0
	return &o, nil
}

const objectiveCols = `id, title, description, category, priority, energy, active, progress, created_at, updated_at`

func (s *ObjectiveStore) Create(title, description, category, priority, energy string) (*model.Objective, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO objectives (title, description, category, priority, energy, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title, description, category, priority, energy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert objective: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ObjectiveStore) GetByID(id int64) (*model.Objective, error) {
	return getObjective(s.db, id)
}

func getObjective(q querier, id int64) (*model.Objective, error) {
	row := q.QueryRow(`SELECT `+objectiveCols+` FROM objectives WHERE id = ?`, id)
	o, err := scanObjective(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get objective: %w", err)
	}
	return o, nil
}

// List returns objectives in creation order. Soft-deleted objectives are
// skipped unless includeInactive is set.
func (s *ObjectiveStore) List(includeInactive bool) ([]model.Objective, error) {
	query := `SELECT ` + objectiveCols + ` FROM objectives`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	defer rows.Close()

	var objectives []model.Objective
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		objectives = append(objectives, *o)
	}
	return objectives, rows.Err()
}

func (s *ObjectiveStore) Update(id int64, title, description, category, priority string) (*model.Objective, error) {
	_, err := s.db.Exec(
		`UPDATE objectives SET title = ?, description = ?, category = ?, priority = ?, updated_at = ? WHERE id = ?`,
		title, description, category, priority, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update objective: %w", err)
	}
	return s.GetByID(id)
}

func (s *ObjectiveStore) SetEnergy(id int64, energy string) error {
	_, err := s.db.Exec(`UPDATE objectives SET energy = ?, updated_at = ? WHERE id = ?`, energy, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set objective energy: %w", err)
	}
	return nil
}

// SoftDelete marks the objective inactive. Its tasks are kept.
func (s *ObjectiveStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(`UPDATE objectives SET active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete objective: %w", err)
	}
	return nil
}

// RefreshProgress recomputes the completion percentage from the objective's tasks.
func (s *ObjectiveStore) RefreshProgress(id int64) error {
	return refreshProgress(s.db, id)
}

func refreshProgress(q querier, objectiveID int64) error {
	_, err := q.Exec(
		`UPDATE objectives SET progress = COALESCE((
			SELECT CAST(ROUND(100.0 * SUM(status = 'done') / COUNT(*)) AS INTEGER)
			FROM tasks WHERE objective_id = ?
		), 0), updated_at = ? WHERE id = ?`,
		objectiveID, time.Now().UTC(), objectiveID,
	)
	if err != nil {
		return fmt.Errorf("refresh progress: %w", err)
	}
	return nil
}

// Restore inserts an objective with its original id and timestamps.
func (s *ObjectiveStore) Restore(o model.Objective) error {
	_, err := s.db.Exec(
		`INSERT INTO objectives (`+objectiveCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
		 category = excluded.category, priority = excluded.priority, energy = excluded.energy,
		 active = excluded.active, progress = excluded.progress, created_at = excluded.created_at,
		 updated_at = excluded.updated_at`,
		o.ID, o.Title, o.Description, o.Category, o.Priority, o.EnergyLevel,
		boolToInt(o.Active), o.Progress, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("restore objective %d: %w", o.ID, err)
	}
	return nil
}
