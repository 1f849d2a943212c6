package store

import (
	"database/sql"
	"fmt"
	"time"
)

// PointsStore holds the single global points counter.
type PointsStore struct {
	db *sql.DB
}

func NewPointsStore(db *sql.DB) *PointsStore {
	return &PointsStore{db: db}
}

func (s *PointsStore) Total() (int, error) {
	return pointsTotal(s.db)
}

// Add applies delta to the counter and returns the new total. The counter
// never drops below zero.
func (s *PointsStore) Add(delta int) (int, error) {
	return addPoints(s.db, delta)
}

// Set overwrites the counter, used when restoring a snapshot.
func (s *PointsStore) Set(total int) error {
	if total < 0 {
		total = 0
	}
	_, err := s.db.Exec(`UPDATE points SET total = ?, updated_at = ? WHERE id = 1`, total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}
	return nil
}

func pointsTotal(q querier) (int, error) {
	var total int
	if err := q.QueryRow(`SELECT total FROM points WHERE id = 1`).Scan(&total); err != nil {
		return 0, fmt.Errorf("get points: %w", err)
	}
	return total, nil
}

func addPoints(q querier, delta int) (int, error) {
	_, err := q.Exec(
		`UPDATE points SET total = MAX(total + ?, 0), updated_at = ? WHERE id = 1`,
		delta, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return pointsTotal(q)
}
