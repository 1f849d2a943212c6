package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/prota/internal/model"
)

// JobStore persists background generation jobs so their status survives
// the request that started them.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func scanJob(scanner interface{ Scan(...any) error }) (*model.GenerationJob, error) {
	var j model.GenerationJob
	var startedAt, finishedAt sql.NullTime

	err := scanner.Scan(
		&j.ID, &j.ObjectiveID, &j.EnergyLevel, &j.Status, &j.Source,
		&j.TaskCount, &j.Error, &j.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Time
	}
	return &j, nil
}

const jobCols = `id, objective_id, energy, status, source, task_count, error, created_at, started_at, finished_at`

func (s *JobStore) Create(objectiveID int64, energy string) (*model.GenerationJob, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO generation_jobs (id, objective_id, energy, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, objectiveID, energy, model.JobStatusPending, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert generation job: %w", err)
	}
	return s.GetByID(id)
}

func (s *JobStore) GetByID(id string) (*model.GenerationJob, error) {
	row := s.db.QueryRow(`SELECT `+jobCols+` FROM generation_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	return j, nil
}

// LatestForObjective returns the most recently created job, or nil when
// the objective never had one.
func (s *JobStore) LatestForObjective(objectiveID int64) (*model.GenerationJob, error) {
	row := s.db.QueryRow(
		`SELECT `+jobCols+` FROM generation_jobs WHERE objective_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		objectiveID,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest generation job: %w", err)
	}
	return j, nil
}

func (s *JobStore) MarkRunning(id string) error {
	_, err := s.db.Exec(
		`UPDATE generation_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		model.JobStatusRunning, time.Now().UTC(), id, model.JobStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

func (s *JobStore) MarkSucceeded(id, source string, taskCount int) error {
	_, err := s.db.Exec(
		`UPDATE generation_jobs SET status = ?, source = ?, task_count = ?, finished_at = ? WHERE id = ?`,
		model.JobStatusSucceeded, source, taskCount, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark job succeeded: %w", err)
	}
	return nil
}

func (s *JobStore) MarkFailed(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.Exec(
		`UPDATE generation_jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		model.JobStatusFailed, msg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// FailUnfinished marks jobs left pending or running by a previous process
// as failed. Called once at startup.
func (s *JobStore) FailUnfinished() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE generation_jobs SET status = ?, error = 'interrupted by restart', finished_at = ? WHERE status IN (?, ?)`,
		model.JobStatusFailed, time.Now().UTC(), model.JobStatusPending, model.JobStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished jobs: %w", err)
	}
	return result.RowsAffected()
}
