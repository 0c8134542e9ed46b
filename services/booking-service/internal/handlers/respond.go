package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/storage"
)

// Identity headers injected by the gateway after JWT verification. The
// gateway strips inbound copies, so these are trusted inside the mesh.
const (
	headerUserID   = "X-User-Id"
	headerVendorID = "X-Vendor-Id"
	headerRole     = "X-Role"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// dataResponse wraps mutation results. Read endpoints return raw JSON
// instead; clients must handle both shapes.
type dataResponse struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeData(w http.ResponseWriter, status int, body any) {
	writeJSON(w, status, dataResponse{Data: body})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeDomainError maps lifecycle and storage failures onto the error body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case lifecycle.IsValidation(err):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case lifecycle.IsNotFound(err) || storage.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "booking not found")
	case lifecycle.IsInvalidState(err):
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case storage.IsConflict(err):
		writeError(w, http.StatusConflict, "VERSION_CONFLICT", "booking was modified concurrently, reload and retry")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
