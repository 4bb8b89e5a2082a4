package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestLoanPolicyDefaultsAndUpdates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := GetLoanPolicy(ctx, database)
	if err != nil {
		t.Fatalf("GetLoanPolicy: %v", err)
	}
	if p != model.DefaultLoanPolicy() {
		t.Errorf("expected default policy, got %+v", p)
	}

	p.StudentLoanDays = 5
	if err := SetLoanPolicy(ctx, database, p); err != nil {
		t.Fatalf("SetLoanPolicy: %v", err)
	}

	got, _ := GetLoanPolicy(ctx, database)
	if got.StudentLoanDays != 5 {
		t.Errorf("expected 5 student loan days, got %d", got.StudentLoanDays)
	}

	p.PickupWindowMinutes = 0
	if err := SetLoanPolicy(ctx, database, p); err == nil {
		t.Error("expected invalid policy to be rejected")
	}
}
