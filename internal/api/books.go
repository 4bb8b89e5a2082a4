package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles catalog endpoints.
type BooksHandler struct {
	DB *sql.DB
}

type bookRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Campus   string `json:"campus"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (req bookRequest) book() *model.Book {
	return &model.Book{
		ID:       req.ID,
		Name:     req.Name,
		Author:   req.Author,
		Category: req.Category,
		Campus:   req.Campus,
		Quantity: req.Quantity,
	}
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := store.ListBooks(r.Context(), h.DB, model.BookFilter{
		Category: q.Get("category"),
		Campus:   q.Get("campus"),
		Query:    q.Get("q"),
	})
	if err != nil {
		slog.Error("failed to list books", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books. A random ID is assigned when none is given.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeValid(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "name required and quantity must not be negative")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	existing, err := store.GetBook(r.Context(), h.DB, req.ID)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "book id already exists")
		return
	}

	book, err := store.CreateBook(r.Context(), h.DB, req.book())
	if err != nil {
		slog.Error("failed to create book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("book created", "user", claims.Username, "book", book.ID, "name", book.Name, "quantity", book.Quantity)
	jsonResponse(w, http.StatusCreated, book)
}

// get loads an existing book or writes a 404.
func (h *BooksHandler) get(w http.ResponseWriter, r *http.Request) *model.Book {
	book, err := store.GetBook(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return nil
	}
	if book == nil || book.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return nil
	}
	return book
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	if book := h.get(w, r); book != nil {
		jsonResponse(w, http.StatusOK, book)
	}
}

// Update handles PUT /api/books/{id}.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeValid(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "name required and quantity must not be negative")
		return
	}

	book := h.get(w, r)
	if book == nil {
		return
	}

	err := store.UpdateBook(r.Context(), h.DB, book.ID, req.book())
	if errors.Is(err, store.ErrQuantityBelowReserved) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to update book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update book")
		return
	}

	updated, _ := store.GetBook(r.Context(), h.DB, book.ID)
	claims := GetClaims(r.Context())
	slog.Info("book updated", "user", claims.Username, "book", book.ID, "quantity", req.Quantity)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	book := h.get(w, r)
	if book == nil {
		return
	}

	deleted, err := store.DeleteBook(r.Context(), h.DB, book.ID)
	if err != nil {
		slog.Error("failed to delete book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}
	if !deleted {
		jsonError(w, http.StatusConflict, "book has open borrow records")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("book deleted", "user", claims.Username, "book", book.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// UploadCover handles PUT /api/books/{id}/cover.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	book := h.get(w, r)
	if book == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	cover, err := imaging.ProcessCover(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover must be a JPEG or PNG image")
		return
	}

	if err := store.SetBookCover(r.Context(), h.DB, book.ID, cover.Data, cover.MIME); err != nil {
		slog.Error("failed to save cover", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save cover")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("book cover uploaded", "user", claims.Username, "book", book.ID, "width", cover.Width, "height", cover.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "cover uploaded"})
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetBookCover(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get cover", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
