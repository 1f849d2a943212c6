package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/prota/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var completedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.ObjectiveID, &t.Title, &t.Description, &t.EstimatedTime,
		&t.Position, &t.Status, &t.Source, &t.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

const taskCols = `t.id, t.objective_id, t.title, t.description, t.estimated_time, t.position, t.status, t.source, t.created_at, t.completed_at`

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func getTask(q querier, id int64) (*model.Task, error) {
	row := q.QueryRow(`SELECT `+taskCols+` FROM tasks t WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	return getTask(s.db, id)
}

// Create appends a single task to the end of the objective's list.
func (s *TaskStore) Create(objectiveID int64, d model.TaskDescriptor, source string) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	obj, err := getObjective(tx, objectiveID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}

	var position int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE objective_id = ?`, objectiveID,
	).Scan(&position); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	id, err := insertTask(tx, objectiveID, d, position, source)
	if err != nil {
		return nil, err
	}
	if err := refreshProgress(tx, objectiveID); err != nil {
		return nil, err
	}

	t, err := getTask(tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// CreateBatch stores a freshly generated task list. It fails with
// ErrTasksExist when the objective already has tasks, so a generation
// never runs twice for the same objective.
func (s *TaskStore) CreateBatch(objectiveID int64, descriptors []model.TaskDescriptor, source string) ([]model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	obj, err := getObjective(tx, objectiveID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE objective_id = ?`, objectiveID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	if existing > 0 {
		return nil, ErrTasksExist
	}

	for i, d := range descriptors {
		if _, err := insertTask(tx, objectiveID, d, i+1, source); err != nil {
			return nil, err
		}
	}
	if err := refreshProgress(tx, objectiveID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(`SELECT `+taskCols+` FROM tasks t WHERE t.objective_id = ? ORDER BY t.position ASC, t.id ASC`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list created tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tasks, nil
}

func insertTask(q querier, objectiveID int64, d model.TaskDescriptor, position int, source string) (int64, error) {
	result, err := q.Exec(
		`INSERT INTO tasks (objective_id, title, description, estimated_time, position, status, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		objectiveID, d.Title, d.Description, d.EstimatedTime, position, model.TaskStatusPending, source, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns tasks matching the filter: pending first, then grouped by
// objective in generation order.
func (s *TaskStore) List(f model.TaskFilter) ([]model.Task, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, `t.status = ?`)
		args = append(args, f.Status)
	}
	if f.ObjectiveID != 0 {
		where = append(where, `t.objective_id = ?`)
		args = append(args, f.ObjectiveID)
	}
	if f.Priority != "" {
		where = append(where, `o.priority = ?`)
		args = append(args, f.Priority)
	}

	query := `SELECT ` + taskCols + ` FROM tasks t JOIN objectives o ON o.id = t.objective_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY CASE t.status WHEN 'pending' THEN 0 ELSE 1 END, t.objective_id ASC, t.position ASC, t.id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *TaskStore) ListByObjective(objectiveID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks t WHERE t.objective_id = ? ORDER BY t.position ASC, t.id ASC`,
		objectiveID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by objective: %w", err)
	}
	return collectTasks(rows)
}

func (s *TaskStore) CountByObjective(objectiveID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE objective_id = ?`, objectiveID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// Complete moves a pending task to done and awards points in one
// transaction. It returns the updated task and the new point total.
func (s *TaskStore) Complete(id int64, award int) (*model.Task, int, error) {
	return s.transition(id, model.TaskStatusPending, model.TaskStatusDone, award)
}

// Undo moves a done task back to pending and takes the award back.
func (s *TaskStore) Undo(id int64, award int) (*model.Task, int, error) {
	return s.transition(id, model.TaskStatusDone, model.TaskStatusPending, -award)
}

func (s *TaskStore) transition(id int64, from, to string, delta int) (*model.Task, int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getTask(tx, id)
	if err != nil {
		return nil, 0, err
	}
	if current == nil {
		return nil, 0, ErrNotFound
	}
	if current.Status != from {
		if to == model.TaskStatusDone {
			return nil, 0, ErrAlreadyDone
		}
		return nil, 0, ErrAlreadyPending
	}

	var completedAt any
	if to == model.TaskStatusDone {
		completedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		to, completedAt, id, from,
	); err != nil {
		return nil, 0, fmt.Errorf("update task status: %w", err)
	}

	total, err := addPoints(tx, delta)
	if err != nil {
		return nil, 0, err
	}
	if err := refreshProgress(tx, current.ObjectiveID); err != nil {
		return nil, 0, err
	}

	t, err := getTask(tx, id)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return t, total, nil
}

// Stats counts tasks by status. The estimated time total covers the
// tasks matched by f.
func (s *TaskStore) Stats(f model.TaskFilter) (model.TaskStats, error) {
	var st model.TaskStats
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(status = 'pending'), 0), COALESCE(SUM(status = 'done'), 0) FROM tasks`,
	).Scan(&st.Pending, &st.Done)
	if err != nil {
		return st, fmt.Errorf("task stats: %w", err)
	}

	tasks, err := s.List(model.TaskFilter{Status: f.Status, ObjectiveID: f.ObjectiveID, Priority: f.Priority})
	if err != nil {
		return st, err
	}
	for _, t := range tasks {
		st.EstimatedTimeTotal += t.EstimatedTime
	}
	return st, nil
}

// CompletionTimes returns the completion timestamps of all done tasks,
// newest first.
func (s *TaskStore) CompletionTimes() ([]time.Time, error) {
	rows, err := s.db.Query(`SELECT completed_at FROM tasks WHERE status = 'done' AND completed_at IS NOT NULL ORDER BY completed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list completion times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan completion time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// Totals returns the number of tasks, how many are done, and the minutes
// invested in done tasks.
func (s *TaskStore) Totals() (total, done, minutes int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(status = 'done'), 0),
		 COALESCE(SUM(CASE WHEN status = 'done' THEN estimated_time ELSE 0 END), 0) FROM tasks`,
	).Scan(&total, &done, &minutes)
	if err != nil {
		err = fmt.Errorf("task totals: %w", err)
	}
	return
}

// Restore inserts a task with its original id, status and timestamps.
func (s *TaskStore) Restore(t model.Task) error {
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UTC()
	}
	source := t.Source
	if source == "" {
		source = model.SourceManual
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, objective_id, title, description, estimated_time, position, status, source, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET objective_id = excluded.objective_id, title = excluded.title,
		 description = excluded.description, estimated_time = excluded.estimated_time, position = excluded.position,
		 status = excluded.status, source = excluded.source, created_at = excluded.created_at,
		 completed_at = excluded.completed_at`,
		t.ID, t.ObjectiveID, t.Title, t.Description, t.EstimatedTime, t.Position, t.Status, source, t.CreatedAt.UTC(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("restore task %d: %w", t.ID, err)
	}
	return nil
}
