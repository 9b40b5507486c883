package handler

// RESPONSE HELPERS:
// Every JSON response and error goes through these two functions so the
// whole API speaks one shape. Error responses are always:
//
//	{"message": "<human-readable>"}
//
// which is what the family's front-ends and subordinate services parse.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cns-studios/auth-service/internal/apperror"
)

// MessageResponse is the standard envelope for errors and simple acks.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body; once Encode writes,
// the headers are on the wire.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent — all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeRawJSON sends pre-encoded JSON verbatim. Service slices are stored
// as raw bytes and must come back byte-identical, so they bypass Encode.
func writeRawJSON(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write JSON response", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to its HTTP status and renders it.
//
// The service layer returns apperror sentinels wrapped in context; this is
// the single place they become status codes:
//
//	ErrValidation         → 400
//	ErrInvalidCredentials → 401 (unknown user and wrong PIN, merged)
//	ErrUnauthenticated    → 401
//	ErrForbidden          → 403
//	ErrNotFound           → 404
//	ErrConflict           → 409
//	anything else         → 500, detail logged, generic message to caller
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrInvalidCredentials),
			errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}

		writeJSON(w, status, MessageResponse{Message: appErr.Message})
		return
	}

	// Unknown error — the raw message might carry SQL text or file paths,
	// so the caller gets a generic line and the detail stays in the log.
	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: "An internal error occurred"})
}
