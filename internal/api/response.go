package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/knjiznica/internal/model"
)

var validate = validator.New()

// messageResponse is the envelope returned by borrow endpoints.
type messageResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	BorrowID string `json:"borrowId,omitempty"`
}

type borrowsResponse struct {
	Success bool           `json:"success"`
	Borrows []model.Borrow `json:"borrows"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonMessage writes a success or failure envelope.
func jsonMessage(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, messageResponse{Success: status < 400, Message: message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// decodeValid decodes the body into target and runs its validate tags.
func decodeValid(r *http.Request, target any) error {
	if err := decodeJSON(r, target); err != nil {
		return err
	}
	return validate.Struct(target)
}
