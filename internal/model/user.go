package model

import (
	"errors"
	"time"
)

// User represents an account in one of the role portals. For students and
// faculty the username is their school ID, which is also the studentId
// recorded on borrow requests.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleFaculty   = "faculty"
	RoleStudent   = "student"
)

var roleLevels = map[string]int{
	RoleAdmin:     4,
	RoleLibrarian: 3,
	RoleFaculty:   2,
	RoleStudent:   1,
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	level, ok := roleLevels[role]
	if !ok {
		return false
	}
	return level >= roleLevels[minimum] && roleLevels[minimum] > 0
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// IsBorrower reports whether the role borrows books for itself.
func IsBorrower(role string) bool {
	return role == RoleStudent || role == RoleFaculty
}

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
