package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/power"
	"github.com/MrSnakeDoc/pimon/internal/provision"
	"github.com/MrSnakeDoc/pimon/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps validation sentinels to client errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, power.ErrNegativeDelay),
		errors.Is(err, provision.ErrMissingField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
