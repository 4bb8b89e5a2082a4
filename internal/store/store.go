// Package store holds the SQL queries behind the library. Functions take a
// Querier so the borrow engine can run several of them in one transaction.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// formatTime serializes a timestamp the way it is stored: RFC 3339 in UTC,
// which also sorts lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// statusIn returns "(?, ?, ...)" and the matching arguments.
func statusIn(statuses []model.BorrowStatus) (string, []any) {
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
