package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// ErrQuantityBelowReserved is returned when a book's quantity would drop below
// the number of copies currently held by borrow records.
var ErrQuantityBelowReserved = errors.New("quantity is below the number of copies currently reserved")

const bookColumns = `id, name, author, category, campus, quantity, available, cover_mime, created_at, updated_at, deleted_at`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	b := &model.Book{}
	var coverMime sql.NullString
	err := row.Scan(&b.ID, &b.Name, &b.Author, &b.Category, &b.Campus, &b.Quantity, &b.Available,
		&coverMime, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	if err != nil {
		return nil, err
	}
	b.CoverMime = coverMime.String
	return b, nil
}

// CreateBook inserts a catalog entry. All copies start out available.
func CreateBook(ctx context.Context, q Querier, b *model.Book) (*model.Book, error) {
	if b.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO books (id, name, author, category, campus, quantity, available)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Author, b.Category, b.Campus, b.Quantity, b.Quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	return GetBook(ctx, q, b.ID)
}

// GetBook returns a book by ID, including soft-deleted ones.
func GetBook(ctx context.Context, q Querier, id string) (*model.Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ListBooks returns all non-deleted books matching the filter, by name.
func ListBooks(ctx context.Context, q Querier, f model.BookFilter) ([]model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE deleted_at IS NULL`
	var args []any

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Campus != "" {
		query += ` AND campus = ?`
		args = append(args, f.Campus)
	}
	if f.Query != "" {
		query += ` AND (name LIKE ? OR author LIKE ?)`
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}

	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// UpdateBook updates a book's metadata and total quantity. The available
// counter moves by the same delta as the quantity, so copies held by borrow
// records stay reserved; the update is refused if that would leave available
// below zero. Callers check that the book exists first.
func UpdateBook(ctx context.Context, q Querier, id string, b *model.Book) error {
	if b.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}

	result, err := q.ExecContext(ctx,
		`UPDATE books
		 SET name = ?, author = ?, category = ?, campus = ?,
		     available = available + (? - quantity), quantity = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND available + (? - quantity) >= 0`,
		b.Name, b.Author, b.Category, b.Campus, b.Quantity, b.Quantity, id, b.Quantity,
	)
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}

	ok, err := affected(result)
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}
	if !ok {
		return ErrQuantityBelowReserved
	}
	return nil
}

// DeleteBook soft-deletes a book unless a borrow record still holds one of
// its copies. It reports whether the book was deleted.
func DeleteBook(ctx context.Context, q Querier, id string) (bool, error) {
	in, args := statusIn(model.ActiveBorrowStatuses)
	result, err := q.ExecContext(ctx,
		`UPDATE books SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL
		   AND NOT EXISTS (SELECT 1 FROM borrows WHERE book_id = ? AND status IN `+in+`)`,
		append([]any{id, id}, args...)...,
	)
	if err != nil {
		return false, fmt.Errorf("deleting book: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("deleting book: %w", err)
	}
	return ok, nil
}

// DecrementAvailable reserves one copy of a book. The update only applies
// while the counter is positive, so concurrent callers can never drive it
// below zero. It reports whether a copy was reserved.
func DecrementAvailable(ctx context.Context, q Querier, bookID string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET available = available - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND available > 0`,
		bookID,
	)
	if err != nil {
		return false, fmt.Errorf("reserving copy: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("reserving copy: %w", err)
	}
	return ok, nil
}

// IncrementAvailable releases one reserved copy, never past the quantity.
// It reports whether the counter changed.
func IncrementAvailable(ctx context.Context, q Querier, bookID string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET available = available + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND available < quantity`,
		bookID,
	)
	if err != nil {
		return false, fmt.Errorf("releasing copy: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("releasing copy: %w", err)
	}
	return ok, nil
}

// SetBookCover sets a book's cover image.
func SetBookCover(ctx context.Context, q Querier, id string, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	return nil
}

// GetBookCover returns a book's cover image and MIME type.
func GetBookCover(ctx context.Context, q Querier, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return image, mime.String, nil
}
