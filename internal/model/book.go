package model

import "time"

// Book is a catalog title. Quantity is the number of copies owned; Available
// is the on-hand counter reserved by borrow requests. 0 <= Available <= Quantity.
type Book struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Author    string     `json:"author"`
	Category  string     `json:"category,omitempty"`
	Campus    string     `json:"campus,omitempty"`
	Quantity  int        `json:"quantity"`
	Available int        `json:"available"`
	CoverMime string     `json:"cover_mime,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// BookFilter narrows a catalog listing. Empty fields match everything.
type BookFilter struct {
	Category string
	Campus   string
	Query    string
}
