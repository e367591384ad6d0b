package common

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDomainError renders err with the status its kind maps to.
// Internal and dependency faults never leak their cause to the client.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	code := HTTPStatusFromError(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	}
	switch {
	case code == http.StatusInternalServerError:
		RespondWithError(w, code, ErrInternalServer.Error())
	case errors.Is(err, ErrStoreUnavailable):
		RespondWithError(w, code, ErrStoreUnavailable.Error())
	case errors.Is(err, ErrValidatorUnavailable):
		RespondWithError(w, code, ErrValidatorUnavailable.Error())
	default:
		RespondWithError(w, code, err.Error())
	}
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
