package store

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyDone    = errors.New("task already done")
	ErrAlreadyPending = errors.New("task already pending")
	ErrTasksExist     = errors.New("objective already has tasks")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
