package model

import (
	"fmt"
	"time"
)

// BorrowStatus is the lifecycle state of a borrow record.
type BorrowStatus string

// Borrow statuses.
const (
	BorrowPending   BorrowStatus = "PENDING"
	BorrowApproved  BorrowStatus = "APPROVED"
	BorrowDenied    BorrowStatus = "DENIED"
	BorrowBorrowed  BorrowStatus = "BORROWED"
	BorrowReturned  BorrowStatus = "RETURNED"
	BorrowOverdue   BorrowStatus = "OVERDUE"
	BorrowCancelled BorrowStatus = "CANCELLED"
)

// Date layout for borrow and due dates.
const DateLayout = "2006-01-02"

var borrowTransitions = map[BorrowStatus][]BorrowStatus{
	BorrowPending:  {BorrowApproved, BorrowDenied, BorrowBorrowed, BorrowCancelled},
	BorrowApproved: {BorrowBorrowed, BorrowDenied, BorrowCancelled},
	BorrowBorrowed: {BorrowReturned, BorrowOverdue},
	BorrowOverdue:  {BorrowReturned},
}

// ParseBorrowStatus converts s to a BorrowStatus, rejecting unknown values.
func ParseBorrowStatus(s string) (BorrowStatus, error) {
	switch st := BorrowStatus(s); st {
	case BorrowPending, BorrowApproved, BorrowDenied, BorrowBorrowed,
		BorrowReturned, BorrowOverdue, BorrowCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown borrow status %q", s)
}

// CanTransitionTo reports whether a record in status s may move to next.
func (s BorrowStatus) CanTransitionTo(next BorrowStatus) bool {
	for _, allowed := range borrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsCopy reports whether a record in this status has a copy reserved
// against the book's available counter.
func (s BorrowStatus) HoldsCopy() bool {
	switch s {
	case BorrowPending, BorrowApproved, BorrowBorrowed, BorrowOverdue:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s BorrowStatus) Terminal() bool {
	return len(borrowTransitions[s]) == 0
}

// ActiveBorrowStatuses blocks a second request for the same (student, book).
// APPROVED is included on purpose: an approved copy awaiting pickup is as
// much an open claim as a pending or borrowed one.
var ActiveBorrowStatuses = []BorrowStatus{BorrowPending, BorrowApproved, BorrowBorrowed, BorrowOverdue}

// Borrow is one student's claim on one copy of one book.
type Borrow struct {
	ID           string       `json:"borrowId"`
	StudentID    string       `json:"studentId"`
	BookID       string       `json:"bookId"`
	BorrowDate   string       `json:"borrowDate"`
	DueDate      string       `json:"dueDate"`
	PickupTime   time.Time    `json:"pickupTime"`
	PickupExpiry time.Time    `json:"pickupExpiry"`
	Status       BorrowStatus `json:"status"`

	// Joined fields (student listing only).
	BookName   string `json:"bookName,omitempty"`
	BookAuthor string `json:"bookAuthor,omitempty"`
}
