package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func seedBook(t *testing.T, database *sql.DB, id string, quantity int) *model.Book {
	t.Helper()
	b, err := CreateBook(context.Background(), database, &model.Book{
		ID: id, Name: "Book " + id, Author: "Author", Category: "Fiction", Campus: "Main", Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return b
}

func TestCreateBookStartsFullyAvailable(t *testing.T) {
	database := db.NewTestDB(t)

	b := seedBook(t, database, "B1", 3)
	if b.Available != 3 || b.Quantity != 3 {
		t.Errorf("expected 3/3, got %d/%d", b.Available, b.Quantity)
	}
}

func TestGetBookMissing(t *testing.T) {
	database := db.NewTestDB(t)

	b, err := GetBook(context.Background(), database, "nope")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if b != nil {
		t.Error("expected nil for missing book")
	}
}

func TestListBooksFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateBook(ctx, database, &model.Book{ID: "1", Name: "Dune", Author: "Herbert", Category: "SciFi", Campus: "North", Quantity: 1})
	CreateBook(ctx, database, &model.Book{ID: "2", Name: "Emma", Author: "Austen", Category: "Classic", Campus: "Main", Quantity: 1})
	CreateBook(ctx, database, &model.Book{ID: "3", Name: "Persuasion", Author: "Austen", Category: "Classic", Campus: "North", Quantity: 1})

	all, err := ListBooks(ctx, database, model.BookFilter{})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Dune" {
		t.Errorf("expected 3 books ordered by name, got %+v", all)
	}

	classics, _ := ListBooks(ctx, database, model.BookFilter{Category: "Classic"})
	if len(classics) != 2 {
		t.Errorf("expected 2 classics, got %d", len(classics))
	}

	north, _ := ListBooks(ctx, database, model.BookFilter{Campus: "North", Query: "austen"})
	if len(north) != 1 || north[0].ID != "3" {
		t.Errorf("expected only Persuasion, got %+v", north)
	}
}

func TestDecrementAvailableStopsAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedBook(t, database, "B1", 1)

	ok, err := DecrementAvailable(ctx, database, "B1")
	if err != nil || !ok {
		t.Fatalf("first decrement: ok=%v err=%v", ok, err)
	}

	ok, err = DecrementAvailable(ctx, database, "B1")
	if err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	if ok {
		t.Error("expected decrement at zero to be refused")
	}

	b, _ := GetBook(ctx, database, "B1")
	if b.Available != 0 {
		t.Errorf("expected 0 available, got %d", b.Available)
	}
}

func TestDecrementAvailableMissingBook(t *testing.T) {
	database := db.NewTestDB(t)

	ok, err := DecrementAvailable(context.Background(), database, "ghost")
	if err != nil {
		t.Fatalf("DecrementAvailable: %v", err)
	}
	if ok {
		t.Error("expected no copy reserved for a missing book")
	}
}

func TestIncrementAvailableStopsAtQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedBook(t, database, "B1", 2)

	ok, _ := IncrementAvailable(ctx, database, "B1")
	if ok {
		t.Error("expected increment past quantity to be refused")
	}

	DecrementAvailable(ctx, database, "B1")
	ok, _ = IncrementAvailable(ctx, database, "B1")
	if !ok {
		t.Error("expected increment to succeed after a decrement")
	}
}

func TestUpdateBookKeepsReservedCopies(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedBook(t, database, "B1", 3)

	DecrementAvailable(ctx, database, "B1")
	DecrementAvailable(ctx, database, "B1")

	err := UpdateBook(ctx, database, "B1", &model.Book{Name: "Renamed", Quantity: 5})
	if err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	b, _ := GetBook(ctx, database, "B1")
	if b.Name != "Renamed" || b.Quantity != 5 || b.Available != 3 {
		t.Errorf("expected Renamed 3/5, got %s %d/%d", b.Name, b.Available, b.Quantity)
	}

	err = UpdateBook(ctx, database, "B1", &model.Book{Name: "Renamed", Quantity: 1})
	if !errors.Is(err, ErrQuantityBelowReserved) {
		t.Errorf("expected ErrQuantityBelowReserved, got %v", err)
	}
}

func TestDeleteBookRefusedWhileBorrowed(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedBook(t, database, "B1", 1)

	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	InsertBorrow(ctx, database, &model.Borrow{
		ID: "r1", StudentID: "S1", BookID: "B1", BorrowDate: "2024-01-10", DueDate: "2024-01-15",
		PickupTime: now, PickupExpiry: now.Add(30 * time.Minute), Status: model.BorrowBorrowed,
	})

	ok, err := DeleteBook(ctx, database, "B1")
	if err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if ok {
		t.Error("expected delete to be refused while a copy is held")
	}

	UpdateBorrowStatus(ctx, database, "r1", model.BorrowBorrowed, model.BorrowReturned)

	ok, _ = DeleteBook(ctx, database, "B1")
	if !ok {
		t.Error("expected delete to succeed once the copy is returned")
	}

	books, _ := ListBooks(ctx, database, model.BookFilter{})
	if len(books) != 0 {
		t.Errorf("expected deleted book to be hidden, got %d", len(books))
	}
}

func TestBookCover(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedBook(t, database, "B1", 1)

	if err := SetBookCover(ctx, database, "B1", []byte{1, 2, 3}, "image/jpeg"); err != nil {
		t.Fatalf("SetBookCover: %v", err)
	}

	img, mime, err := GetBookCover(ctx, database, "B1")
	if err != nil {
		t.Fatalf("GetBookCover: %v", err)
	}
	if len(img) != 3 || mime != "image/jpeg" {
		t.Errorf("unexpected cover: %v %q", img, mime)
	}
}
