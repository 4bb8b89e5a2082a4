package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('admin', 'librarian', 'faculty', 'student')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS books (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    author     TEXT NOT NULL DEFAULT '',
    category   TEXT NOT NULL DEFAULT '',
    campus     TEXT NOT NULL DEFAULT '',
    quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    available  INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0 AND available <= quantity),
    cover      BLOB,
    cover_mime TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS borrows (
    id            TEXT PRIMARY KEY,
    student_id    TEXT NOT NULL,
    book_id       TEXT NOT NULL REFERENCES books(id),
    borrow_date   TEXT NOT NULL,
    due_date      TEXT NOT NULL,
    pickup_time   TEXT NOT NULL,
    pickup_expiry TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'PENDING'
                  CHECK (status IN ('PENDING', 'APPROVED', 'DENIED', 'BORROWED', 'RETURNED', 'OVERDUE', 'CANCELLED')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_borrows_student
    ON borrows(student_id, borrow_date DESC);

CREATE INDEX IF NOT EXISTS idx_borrows_status
    ON borrows(status, borrow_date DESC);

CREATE UNIQUE INDEX IF NOT EXISTS idx_borrows_active
    ON borrows(student_id, book_id) WHERE status IN ('PENDING', 'APPROVED', 'BORROWED', 'OVERDUE');

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: the sweeper scans open requests by pickup expiry.
	`CREATE INDEX IF NOT EXISTS idx_borrows_pickup_expiry
	     ON borrows(pickup_expiry) WHERE status IN ('PENDING', 'APPROVED')`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
