package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const (
	settingJWTSecret  = "jwt_secret"
	settingLoanPolicy = "loan_policy"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, q Querier) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		settingJWTSecret, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	secret, err := getSetting(ctx, q, settingJWTSecret)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// GetLoanPolicy returns the stored loan policy, or the default policy if an
// admin has never changed it.
func GetLoanPolicy(ctx context.Context, q Querier) (model.LoanPolicy, error) {
	raw, err := getSetting(ctx, q, settingLoanPolicy)
	if err != nil {
		return model.LoanPolicy{}, err
	}
	if raw == "" {
		return model.DefaultLoanPolicy(), nil
	}

	var p model.LoanPolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.LoanPolicy{}, fmt.Errorf("decoding loan policy: %w", err)
	}
	return p, nil
}

// SetLoanPolicy validates and stores the loan policy.
func SetLoanPolicy(ctx context.Context, q Querier, p model.LoanPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding loan policy: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		settingLoanPolicy, string(raw),
	)
	if err != nil {
		return fmt.Errorf("storing loan policy: %w", err)
	}
	return nil
}

// getSetting returns a setting's value, or "" if it is not set.
func getSetting(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}
