package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// SettingsHandler handles library-wide settings.
type SettingsHandler struct {
	DB *sql.DB
}

// GetLoanPolicy handles GET /api/settings/loan-policy.
func (h *SettingsHandler) GetLoanPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := store.GetLoanPolicy(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to get loan policy", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get loan policy")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// SetLoanPolicy handles PUT /api/settings/loan-policy.
func (h *SettingsHandler) SetLoanPolicy(w http.ResponseWriter, r *http.Request) {
	var p model.LoanPolicy
	if err := decodeJSON(r, &p); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetLoanPolicy(r.Context(), h.DB, p); err != nil {
		slog.Error("failed to store loan policy", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store loan policy")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("loan policy updated", "user", claims.Username,
		"student_days", p.StudentLoanDays, "faculty_days", p.FacultyLoanDays)
	jsonResponse(w, http.StatusOK, p)
}
