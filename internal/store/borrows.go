package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

const borrowColumns = `br.id, br.student_id, br.book_id, br.borrow_date, br.due_date,
	br.pickup_time, br.pickup_expiry, br.status`

func scanBorrow(row interface{ Scan(...any) error }, extra ...any) (*model.Borrow, error) {
	b := &model.Borrow{}
	var pickupTime, pickupExpiry, status string
	dest := append([]any{&b.ID, &b.StudentID, &b.BookID, &b.BorrowDate, &b.DueDate,
		&pickupTime, &pickupExpiry, &status}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if b.PickupTime, err = parseTime(pickupTime); err != nil {
		return nil, fmt.Errorf("parsing pickup time: %w", err)
	}
	if b.PickupExpiry, err = parseTime(pickupExpiry); err != nil {
		return nil, fmt.Errorf("parsing pickup expiry: %w", err)
	}
	b.Status = model.BorrowStatus(status)
	return b, nil
}

func scanBorrows(rows *sql.Rows) ([]model.Borrow, error) {
	var borrows []model.Borrow
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow: %w", err)
		}
		borrows = append(borrows, *b)
	}
	return borrows, rows.Err()
}

// HasActiveBorrow reports whether the student already has an open borrow
// record (pending, approved, borrowed or overdue) for the book.
func HasActiveBorrow(ctx context.Context, q Querier, studentID, bookID string) (bool, error) {
	in, args := statusIn(model.ActiveBorrowStatuses)
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrows WHERE student_id = ? AND book_id = ? AND status IN `+in,
		append([]any{studentID, bookID}, args...)...,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking active borrows: %w", err)
	}
	return count > 0, nil
}

// InsertBorrow records a new borrow request.
func InsertBorrow(ctx context.Context, q Querier, b *model.Borrow) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO borrows (id, student_id, book_id, borrow_date, due_date, pickup_time, pickup_expiry, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StudentID, b.BookID, b.BorrowDate, b.DueDate,
		formatTime(b.PickupTime), formatTime(b.PickupExpiry), string(b.Status),
	)
	if err != nil {
		return fmt.Errorf("inserting borrow: %w", err)
	}
	return nil
}

// GetBorrow returns a borrow record by ID.
func GetBorrow(ctx context.Context, q Querier, id string) (*model.Borrow, error) {
	b, err := scanBorrow(q.QueryRowContext(ctx,
		`SELECT `+borrowColumns+` FROM borrows br WHERE br.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow: %w", err)
	}
	return b, nil
}

// UpdateBorrowStatus moves a record from one status to another. The write
// only applies if the record is still in the expected status; it reports
// whether it did.
func UpdateBorrowStatus(ctx context.Context, q Querier, id string, from, to model.BorrowStatus) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE borrows SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("updating borrow status: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("updating borrow status: %w", err)
	}
	return ok, nil
}

// DeleteBorrow removes a borrow record. It reports whether a row was deleted.
func DeleteBorrow(ctx context.Context, q Querier, id string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM borrows WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting borrow: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("deleting borrow: %w", err)
	}
	return ok, nil
}

// ListBorrowsByStudent returns every borrow record of a student, newest
// borrow date first, with the book's name and author joined in.
func ListBorrowsByStudent(ctx context.Context, q Querier, studentID string) ([]model.Borrow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+borrowColumns+`, COALESCE(bk.name, ''), COALESCE(bk.author, '')
		 FROM borrows br
		 LEFT JOIN books bk ON bk.id = br.book_id
		 WHERE br.student_id = ?
		 ORDER BY br.borrow_date DESC, br.created_at DESC`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing student borrows: %w", err)
	}
	defer rows.Close()

	var borrows []model.Borrow
	for rows.Next() {
		var name, author string
		b, err := scanBorrow(rows, &name, &author)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow: %w", err)
		}
		b.BookName = name
		b.BookAuthor = author
		borrows = append(borrows, *b)
	}
	return borrows, rows.Err()
}

// ListBorrows returns all borrow records, newest borrow date first,
// optionally restricted to one status.
func ListBorrows(ctx context.Context, q Querier, status model.BorrowStatus) ([]model.Borrow, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrows br`
	var args []any
	if status != "" {
		query += ` WHERE br.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY br.borrow_date DESC, br.created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrows: %w", err)
	}
	defer rows.Close()

	return scanBorrows(rows)
}

// ListPickupExpired returns pending or approved records whose pickup window
// closed before now.
func ListPickupExpired(ctx context.Context, q Querier, now time.Time) ([]model.Borrow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+borrowColumns+` FROM borrows br
		 WHERE br.status IN (?, ?) AND br.pickup_expiry < ?
		 ORDER BY br.pickup_expiry`,
		string(model.BorrowPending), string(model.BorrowApproved), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expired pickups: %w", err)
	}
	defer rows.Close()

	return scanBorrows(rows)
}

// ListPastDue returns borrowed records whose due date is before today.
func ListPastDue(ctx context.Context, q Querier, today string) ([]model.Borrow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+borrowColumns+` FROM borrows br
		 WHERE br.status = ? AND br.due_date < ?
		 ORDER BY br.due_date`,
		string(model.BorrowBorrowed), today,
	)
	if err != nil {
		return nil, fmt.Errorf("listing past-due borrows: %w", err)
	}
	defer rows.Close()

	return scanBorrows(rows)
}
