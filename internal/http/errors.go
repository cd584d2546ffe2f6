package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/gastcinema/seat-reservations/internal/domain"
)

type errorBody struct {
	Error string   `json:"error"`
	Seats []string `json:"seats,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string, seats []string) {
	writeJSON(w, status, errorBody{Error: msg, Seats: seats})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Conflicts
// carry the offending seat list when derivable so the client can deselect.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, domain.ErrConflict):
		writeJSONError(w, http.StatusConflict, "seat conflict", domain.ConflictSeats(err))
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrPaymentFailed):
		writeJSONError(w, http.StatusPaymentRequired, "payment failed", nil)
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSONError(w, http.StatusConflict, "conflict, try again", nil)
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
