package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cns-studios/auth-service/internal/auth"
	"github.com/cns-studios/auth-service/internal/service"
)

// maxSliceBytes caps an individual service slice. Documents are loaded
// whole on every read, so an unbounded slice would let one property bloat
// every request for the user.
const maxSliceBytes = 256 * 1024

// DataHandler serves the namespaced per-service data endpoints.
//
// The {service} URL parameter is taken verbatim and used only as a map key
// into the user's document — each property reads and writes its own slice
// and can never observe another's.
type DataHandler struct {
	dataSvc *service.UserDataService
	logger  *slog.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(dataSvc *service.UserDataService, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		dataSvc: dataSvc,
		logger:  logger,
	}
}

// HandleGet returns the calling property's stored slice, byte-for-byte as
// it was written.
//
// HTTP: GET /api/data/{service}
// Auth: RequireSession
// 404 if the slice was never written.
func (h *DataHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "Authentication required"})
		return
	}

	serviceName := chi.URLParam(r, "service")

	value, err := h.dataSvc.GetServiceData(r.Context(), sess.UserID, serviceName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeRawJSON(w, http.StatusOK, value)
}

// HandlePut replaces the calling property's slice with the request body.
//
// HTTP: POST /api/data/{service}
// Auth: RequireSession
//
// The body must be non-empty, valid JSON. REPLACE semantics: the previous
// slice is gone after this call; there is no merge.
func (h *DataHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "Authentication required"})
		return
	}

	serviceName := chi.URLParam(r, "service")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSliceBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Could not read request body"})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Request body cannot be empty."})
		return
	}
	if len(body) > maxSliceBytes {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Request body too large"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Request body must be valid JSON"})
		return
	}

	if err := h.dataSvc.PutServiceData(r.Context(), sess.UserID, serviceName, json.RawMessage(body)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Data for %s updated successfully.", serviceName),
	})
}
