package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func newUser(username, role string) *model.User {
	return &model.User{Username: username, PasswordHash: "hash", Role: role}
}

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, &model.User{
		Username: "2021-0001", Name: "Ana Novak", Email: "ana@example.com",
		PasswordHash: "hash123", Role: model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "2021-0001" {
		t.Errorf("expected username '2021-0001', got %q", user.Username)
	}
	if user.Role != model.RoleStudent {
		t.Errorf("expected role 'student', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ana Novak" || got.Email != "ana@example.com" {
		t.Errorf("unexpected profile: %+v", got)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateUser(context.Background(), database, newUser("x", "manager")); err == nil {
		t.Error("expected unknown role to violate the schema check")
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, newUser("alice", model.RoleAdmin))

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsersByRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, newUser("a", model.RoleStudent))
	CreateUser(ctx, database, newUser("b", model.RoleLibrarian))
	CreateUser(ctx, database, newUser("c", model.RoleStudent))

	all, err := ListUsers(ctx, database, "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}

	students, _ := ListUsers(ctx, database, model.RoleStudent)
	if len(students) != 2 {
		t.Errorf("expected 2 students, got %d", len(students))
	}
}

func TestDeleteUserFreesUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, newUser("deleteme", model.RoleStudent))
	DeleteUser(ctx, database, user.ID)

	users, _ := ListUsers(ctx, database, "")
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}

	if gone, _ := GetUserByUsername(ctx, database, "deleteme"); gone != nil {
		t.Error("expected deleted user to be hidden from username lookup")
	}

	if _, err := CreateUser(ctx, database, newUser("deleteme", model.RoleStudent)); err != nil {
		t.Errorf("expected username to be reusable after delete: %v", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, newUser("pwuser", model.RoleStudent))
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}
