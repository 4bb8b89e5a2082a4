package model

import (
	"errors"
	"time"
)

// LoanPolicy holds the tunable rules applied to borrow requests.
type LoanPolicy struct {
	StudentLoanDays     int `json:"student_loan_days"`
	FacultyLoanDays     int `json:"faculty_loan_days"`
	PickupWindowMinutes int `json:"pickup_window_minutes"`
	PickupOpenHour      int `json:"pickup_open_hour"`
	PickupCloseHour     int `json:"pickup_close_hour"`
}

// DefaultLoanPolicy returns the policy used until an admin changes it.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		StudentLoanDays:     7,
		FacultyLoanDays:     14,
		PickupWindowMinutes: 30,
		PickupOpenHour:      8,
		PickupCloseHour:     17,
	}
}

// LoanDays returns the longest loan allowed for role. Staff borrowing on
// someone's behalf get the student limit.
func (p LoanPolicy) LoanDays(role string) int {
	if role == RoleFaculty {
		return p.FacultyLoanDays
	}
	return p.StudentLoanDays
}

// PickupWindow returns the length of the pickup window.
func (p LoanPolicy) PickupWindow() time.Duration {
	return time.Duration(p.PickupWindowMinutes) * time.Minute
}

// Validate checks that the policy is usable.
func (p LoanPolicy) Validate() error {
	if p.StudentLoanDays <= 0 || p.FacultyLoanDays <= 0 {
		return errors.New("loan days must be positive")
	}
	if p.PickupWindowMinutes <= 0 {
		return errors.New("pickup window must be positive")
	}
	if p.PickupOpenHour < 0 || p.PickupCloseHour > 24 || p.PickupOpenHour >= p.PickupCloseHour {
		return errors.New("pickup hours must satisfy 0 <= open < close <= 24")
	}
	return nil
}
