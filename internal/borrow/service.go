// Package borrow implements the borrow lifecycle: requesting a copy,
// librarian review, pickup, return, and the periodic expiry sweep. All
// state lives in the database; every operation is a self-contained
// transaction.
package borrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Service runs borrow operations against the database.
type Service struct {
	db       *sql.DB
	now      func() time.Time
	loc      *time.Location
	tracer   trace.Tracer
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone the library's opening hours and calendar
// dates are interpreted in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a Service backed by db.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		now:      time.Now,
		loc:      time.Local,
		tracer:   otel.Tracer("knjiznica/borrow"),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request is a borrow request as submitted by a borrower. Dates are
// YYYY-MM-DD, times are RFC 3339.
type Request struct {
	StudentID    string `json:"studentId" validate:"required"`
	BookID       string `json:"bookId" validate:"required"`
	BorrowDate   string `json:"borrowDate" validate:"required"`
	DueDate      string `json:"dueDate" validate:"required"`
	PickupTime   string `json:"pickupTime" validate:"required"`
	PickupExpiry string `json:"pickupExpiry" validate:"required"`

	// Role of the borrower, used for the loan limit. Empty means student.
	Role string `json:"-"`
}

// SweepResult reports what a sweep changed.
type SweepResult struct {
	Cancelled    int
	Overdue      int
	TokensPurged int64
}

// reviewStatuses are the targets a librarian may set through SetStatus.
var reviewStatuses = map[model.BorrowStatus]bool{
	model.BorrowApproved: true,
	model.BorrowDenied:   true,
	model.BorrowBorrowed: true,
}

// Submit validates a request, reserves a copy of the book and records a
// PENDING borrow. It returns the new borrow ID.
func (s *Service) Submit(ctx context.Context, req Request) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.submit",
		trace.WithAttributes(
			attribute.String("student.id", req.StudentID),
			attribute.String("book.id", req.BookID),
		),
	)
	defer func() { endSpan(span, err) }()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.BookID = strings.TrimSpace(req.BookID)
	if err := s.validate.Struct(req); err != nil {
		return "", newError(ErrValidation, "missing required fields")
	}

	policy, err := store.GetLoanPolicy(ctx, s.db)
	if err != nil {
		return "", persistence(err)
	}

	b, err := s.buildBorrow(req, policy)
	if err != nil {
		return "", err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		active, err := store.HasActiveBorrow(ctx, tx, b.StudentID, b.BookID)
		if err != nil {
			return persistence(err)
		}
		if active {
			return newError(ErrConflict, "already borrowed, not yet returned")
		}

		book, err := store.GetBook(ctx, tx, b.BookID)
		if err != nil {
			return persistence(err)
		}
		if book == nil || book.DeletedAt != nil {
			return newError(ErrNotFound, "book not found")
		}

		if err := store.InsertBorrow(ctx, tx, b); err != nil {
			return persistence(err)
		}

		// Rolling back discards the insert above.
		reserved, err := store.DecrementAvailable(ctx, tx, b.BookID)
		if err != nil {
			return persistence(err)
		}
		if !reserved {
			return newError(ErrUnavailable, "book is not available")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	span.SetAttributes(attribute.String("borrow.id", b.ID))
	slog.Info("borrow submitted", "borrow_id", b.ID, "student", b.StudentID, "book", b.BookID,
		"borrow_date", b.BorrowDate, "due_date", b.DueDate)
	return b.ID, nil
}

// buildBorrow checks the request's dates against the loan policy and
// returns the record to insert. The pickup time is clamped into opening
// hours and the expiry is derived from it.
func (s *Service) buildBorrow(req Request, policy model.LoanPolicy) (*model.Borrow, error) {
	borrowDate, err := time.Parse(model.DateLayout, req.BorrowDate)
	if err != nil {
		return nil, newError(ErrValidation, "invalid borrowDate")
	}
	dueDate, err := time.Parse(model.DateLayout, req.DueDate)
	if err != nil {
		return nil, newError(ErrValidation, "invalid dueDate")
	}
	pickup, err := time.Parse(time.RFC3339, req.PickupTime)
	if err != nil {
		return nil, newError(ErrValidation, "invalid pickupTime")
	}
	if _, err := time.Parse(time.RFC3339, req.PickupExpiry); err != nil {
		return nil, newError(ErrValidation, "invalid pickupExpiry")
	}

	if dueDate.Before(borrowDate) {
		return nil, newError(ErrValidation, "dueDate must not be before borrowDate")
	}
	loanDays := policy.LoanDays(req.Role)
	if dueDate.Sub(borrowDate) > time.Duration(loanDays)*24*time.Hour {
		return nil, newError(ErrValidation, fmt.Sprintf("dueDate must be within %d days of borrowDate", loanDays))
	}

	pickup = pickup.In(s.loc)
	if pickup.Format(model.DateLayout) != borrowDate.Format(model.DateLayout) {
		return nil, newError(ErrValidation, "pickupTime must be on borrowDate")
	}
	pickup = clampPickup(pickup, policy)
	expiry := pickup.Add(policy.PickupWindow())
	if !expiry.After(s.now()) {
		return nil, newError(ErrValidation, "pickup window has already closed")
	}

	return &model.Borrow{
		ID:           uuid.NewString(),
		StudentID:    req.StudentID,
		BookID:       req.BookID,
		BorrowDate:   borrowDate.Format(model.DateLayout),
		DueDate:      dueDate.Format(model.DateLayout),
		PickupTime:   pickup,
		PickupExpiry: expiry,
		Status:       model.BorrowPending,
	}, nil
}

func clampPickup(t time.Time, policy model.LoanPolicy) time.Time {
	y, m, d := t.Date()
	open := time.Date(y, m, d, policy.PickupOpenHour, 0, 0, 0, t.Location())
	closing := time.Date(y, m, d, policy.PickupCloseHour, 0, 0, 0, t.Location())
	switch {
	case t.Before(open):
		return open
	case t.After(closing):
		return closing
	}
	return t
}

// SetStatus moves a borrow record to APPROVED, DENIED or BORROWED on behalf
// of a librarian. Setting the status a record already has is a no-op.
func (s *Service) SetStatus(ctx context.Context, borrowID, status string) (err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.set_status",
		trace.WithAttributes(
			attribute.String("borrow.id", borrowID),
			attribute.String("borrow.status", status),
		),
	)
	defer func() { endSpan(span, err) }()

	to := model.BorrowStatus(status)
	if borrowID == "" || !reviewStatuses[to] {
		return newError(ErrValidation, "missing or invalid borrowId or status")
	}

	var from model.BorrowStatus
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.load(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		from = b.Status
		if from == to {
			return nil
		}
		return s.transition(ctx, tx, b, to)
	})
	if err != nil {
		return err
	}

	if from != to {
		slog.Info("borrow status changed", "borrow_id", borrowID, "from", from, "to", to)
	}
	return nil
}

// Cancel withdraws a borrower's own request before pickup.
func (s *Service) Cancel(ctx context.Context, borrowID, studentID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.cancel",
		trace.WithAttributes(attribute.String("borrow.id", borrowID)),
	)
	defer func() { endSpan(span, err) }()

	if borrowID == "" || studentID == "" {
		return newError(ErrValidation, "missing borrowId or studentId")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.load(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if b.StudentID != studentID {
			return newError(ErrNotFound, "borrow record not found")
		}
		return s.transition(ctx, tx, b, model.BorrowCancelled)
	})
	if err != nil {
		return err
	}

	slog.Info("borrow cancelled", "borrow_id", borrowID, "student", studentID)
	return nil
}

// Return marks a borrowed or overdue copy as returned and restocks it.
func (s *Service) Return(ctx context.Context, borrowID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.return",
		trace.WithAttributes(attribute.String("borrow.id", borrowID)),
	)
	defer func() { endSpan(span, err) }()

	if borrowID == "" {
		return newError(ErrValidation, "missing borrowId")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.load(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		return s.transition(ctx, tx, b, model.BorrowReturned)
	})
	if err != nil {
		return err
	}

	slog.Info("borrow returned", "borrow_id", borrowID)
	return nil
}

// Delete removes a borrow record, releasing its copy if it still held one.
func (s *Service) Delete(ctx context.Context, borrowID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.delete",
		trace.WithAttributes(attribute.String("borrow.id", borrowID)),
	)
	defer func() { endSpan(span, err) }()

	if borrowID == "" {
		return newError(ErrValidation, "missing borrowId")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.load(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if _, err := store.DeleteBorrow(ctx, tx, borrowID); err != nil {
			return persistence(err)
		}
		if b.Status.HoldsCopy() {
			if _, err := store.IncrementAvailable(ctx, tx, b.BookID); err != nil {
				return persistence(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("borrow deleted", "borrow_id", borrowID)
	return nil
}

// ListForStudent returns every borrow record of a student, newest first.
func (s *Service) ListForStudent(ctx context.Context, studentID string) (borrows []model.Borrow, err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.list_for_student")
	defer func() { endSpan(span, err) }()

	if studentID == "" {
		return nil, newError(ErrValidation, "missing studentId")
	}

	borrows, err = store.ListBorrowsByStudent(ctx, s.db, studentID)
	if err != nil {
		return nil, persistence(err)
	}
	if borrows == nil {
		borrows = []model.Borrow{}
	}
	span.SetAttributes(attribute.Int("borrows.count", len(borrows)))
	return borrows, nil
}

// ListAll returns all borrow records, newest first, optionally restricted to
// one status.
func (s *Service) ListAll(ctx context.Context, status string) (borrows []model.Borrow, err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.list_all",
		trace.WithAttributes(attribute.String("borrow.status", status)),
	)
	defer func() { endSpan(span, err) }()

	var filter model.BorrowStatus
	if status != "" {
		filter, err = model.ParseBorrowStatus(status)
		if err != nil {
			return nil, newError(ErrValidation, "invalid status")
		}
	}

	borrows, err = store.ListBorrows(ctx, s.db, filter)
	if err != nil {
		return nil, persistence(err)
	}
	if borrows == nil {
		borrows = []model.Borrow{}
	}
	span.SetAttributes(attribute.Int("borrows.count", len(borrows)))
	return borrows, nil
}

// Sweep cancels requests whose pickup window has closed, marks borrowed
// copies past their due date as overdue, and purges expired revoked tokens.
func (s *Service) Sweep(ctx context.Context) (res SweepResult, err error) {
	ctx, span := s.tracer.Start(ctx, "borrow.sweep")
	defer func() { endSpan(span, err) }()

	now := s.now()
	today := now.In(s.loc).Format(model.DateLayout)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		expired, err := store.ListPickupExpired(ctx, tx, now)
		if err != nil {
			return persistence(err)
		}
		for i := range expired {
			if err := s.transition(ctx, tx, &expired[i], model.BorrowCancelled); err != nil {
				return err
			}
			res.Cancelled++
		}

		pastDue, err := store.ListPastDue(ctx, tx, today)
		if err != nil {
			return persistence(err)
		}
		for i := range pastDue {
			if err := s.transition(ctx, tx, &pastDue[i], model.BorrowOverdue); err != nil {
				return err
			}
			res.Overdue++
		}

		res.TokensPurged, err = store.PurgeRevokedTokens(ctx, tx, now)
		if err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	span.SetAttributes(
		attribute.Int("sweep.cancelled", res.Cancelled),
		attribute.Int("sweep.overdue", res.Overdue),
	)
	if res.Cancelled > 0 || res.Overdue > 0 {
		slog.Info("borrow sweep", "cancelled", res.Cancelled, "overdue", res.Overdue)
	}
	return res, nil
}

// load fetches a borrow record inside tx.
func (s *Service) load(ctx context.Context, tx *sql.Tx, borrowID string) (*model.Borrow, error) {
	b, err := store.GetBorrow(ctx, tx, borrowID)
	if err != nil {
		return nil, persistence(err)
	}
	if b == nil {
		return nil, newError(ErrNotFound, "borrow record not found")
	}
	return b, nil
}

// transition moves b to the given status if the transition table allows it,
// releasing the reserved copy when the new status no longer holds one.
func (s *Service) transition(ctx context.Context, tx *sql.Tx, b *model.Borrow, to model.BorrowStatus) error {
	if !b.Status.CanTransitionTo(to) {
		return newError(ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", b.Status, to))
	}

	ok, err := store.UpdateBorrowStatus(ctx, tx, b.ID, b.Status, to)
	if err != nil {
		return persistence(err)
	}
	if !ok {
		return newError(ErrInvalidTransition, "borrow record changed concurrently")
	}

	if b.Status.HoldsCopy() && !to.HoldsCopy() {
		if _, err := store.IncrementAvailable(ctx, tx, b.BookID); err != nil {
			return persistence(err)
		}
	}
	b.Status = to
	return nil
}

// withTx runs fn in a transaction, committing if it returns nil. The
// database opens transactions with BEGIN IMMEDIATE, so fn holds the write
// lock for its whole duration.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence(fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Message(err))
		if errors.Is(err, ErrPersistence) {
			slog.Error("borrow operation failed", "error", err)
		}
	}
	span.End()
}
