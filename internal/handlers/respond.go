package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"human-api/internal/contextutil"
	"human-api/internal/service"
)

// maxBodyBytes bounds request bodies. Imports carry whole vaults.
const maxBodyBytes = 32 << 20

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Human readable error message
	Error string `json:"error"`

	// Stable machine readable error kind, e.g. "locked" or "not_found"
	Code string `json:"code,omitempty"`
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &service.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps service errors to HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		logger.WarnContext(ctx, "validation failed", "field", validationErr.Field, "error", err)
		writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("Validation error: %s", validationErr.Error()))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, service.ErrAuthentication):
		logger.WarnContext(ctx, "authentication failed")
		writeError(w, http.StatusUnauthorized, "authentication", "Invalid master password")
	case errors.Is(err, service.ErrLocked):
		writeError(w, http.StatusLocked, "locked", "Vault is locked")
	case errors.Is(err, service.ErrNotInitialized):
		writeError(w, http.StatusConflict, "not_initialized", "Vault is not initialized")
	case errors.Is(err, service.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, "already_initialized", "Vault is already initialized")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Resource already exists")
	case errors.Is(err, service.ErrExternalService):
		logger.ErrorContext(ctx, "external service error", "error", err)
		writeError(w, http.StatusBadGateway, "external_service", "External service error")
	case errors.Is(err, service.ErrCorrupted):
		logger.ErrorContext(ctx, "vault data failed authentication", "error", err)
		writeError(w, http.StatusInternalServerError, "corrupted", "Vault data is corrupted")
	default:
		logger.ErrorContext(ctx, "service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", defaultMsg)
	}
}
