package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/borrow"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BorrowsHandler exposes the borrow lifecycle to borrowers and librarians.
type BorrowsHandler struct {
	DB      *sql.DB
	Borrows *borrow.Service
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// borrowError maps a borrow.Service error to a failure envelope.
func borrowError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, borrow.ErrValidation), errors.Is(err, borrow.ErrUnavailable):
		status = http.StatusBadRequest
	case errors.Is(err, borrow.ErrConflict), errors.Is(err, borrow.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, borrow.ErrNotFound):
		status = http.StatusNotFound
	}
	jsonMessage(w, status, borrow.Message(err))
}

// mayActFor reports whether the caller may act on studentID's records.
// Borrowers only act for themselves; librarians and admins for anyone.
func mayActFor(r *http.Request, studentID string) bool {
	claims := GetClaims(r.Context())
	if model.RoleAtLeast(claims.Role, model.RoleLibrarian) {
		return true
	}
	return claims.StudentID() == studentID
}

// Submit handles POST /api/borrow.
func (h *BorrowsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req borrow.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if req.StudentID != "" && !mayActFor(r, req.StudentID) {
		jsonMessage(w, http.StatusForbidden, "cannot borrow on behalf of another user")
		return
	}

	req.Role = claims.Role
	if !model.IsBorrower(claims.Role) && req.StudentID != "" {
		// Staff submitting for someone get that borrower's loan limit.
		borrower, err := store.GetUserByUsername(r.Context(), h.DB, req.StudentID)
		if err != nil {
			slog.Error("failed to look up borrower", "error", err)
			jsonMessage(w, http.StatusInternalServerError, "internal error")
			return
		}
		if borrower == nil {
			jsonMessage(w, http.StatusNotFound, "borrower not found")
			return
		}
		req.Role = borrower.Role
	}

	id, err := h.Borrows.Submit(r.Context(), req)
	if err != nil {
		borrowError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, messageResponse{
		Success:  true,
		Message:  "borrow request submitted",
		BorrowID: id,
	})
}

// ListForStudent handles GET /api/borrows?studentId=.
func (h *BorrowsHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID != "" && !mayActFor(r, studentID) {
		jsonMessage(w, http.StatusForbidden, "cannot view another user's borrows")
		return
	}

	borrows, err := h.Borrows.ListForStudent(r.Context(), studentID)
	if err != nil {
		borrowError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, borrowsResponse{Success: true, Borrows: borrows})
}

// Cancel handles POST /api/borrows/{borrowId}/cancel.
func (h *BorrowsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Borrows.Cancel(r.Context(), r.PathValue("borrowId"), claims.StudentID()); err != nil {
		borrowError(w, err)
		return
	}
	jsonMessage(w, http.StatusOK, "borrow request cancelled")
}

// ListAll handles GET /api/librarian/borrows?status=.
func (h *BorrowsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	borrows, err := h.Borrows.ListAll(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		borrowError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, borrowsResponse{Success: true, Borrows: borrows})
}

// SetStatus handles PUT /api/librarian/borrows/{borrowId}/status.
func (h *BorrowsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("borrowId")
	if err := h.Borrows.SetStatus(r.Context(), id, req.Status); err != nil {
		borrowError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("borrow reviewed", "user", claims.Username, "borrow_id", id, "status", req.Status)
	jsonMessage(w, http.StatusOK, "borrow status updated")
}

// Return handles POST /api/librarian/borrows/{borrowId}/return.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("borrowId")
	if err := h.Borrows.Return(r.Context(), id); err != nil {
		borrowError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("borrow return recorded", "user", claims.Username, "borrow_id", id)
	jsonMessage(w, http.StatusOK, "book returned")
}

// Delete handles DELETE /api/admin/borrows/{borrowId}.
func (h *BorrowsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("borrowId")
	if err := h.Borrows.Delete(r.Context(), id); err != nil {
		borrowError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("borrow record deleted", "user", claims.Username, "borrow_id", id)
	jsonMessage(w, http.StatusOK, "borrow record deleted")
}
