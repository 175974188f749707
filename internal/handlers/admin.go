package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"human-api/internal/memory"
	"human-api/internal/service"
)

// Insights reports tag usage and daily memory creation for a period.
//
// swagger:route GET /api/insights insights getInsights
//
// # Memory insights
//
// period is one of daily, weekly or monthly and defaults to weekly.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Insights for the period
//	'400':
//	  description: Unknown period
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *MemoryHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = string(memory.Weekly)
	}
	period, err := memory.ParsePeriod(raw)
	if err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	insights, err := h.memories.Insights(ctx, period)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute insights")
		return
	}
	writeJSON(ctx, w, http.StatusOK, insights)
}

// Export downloads every memory of the vault, as plain JSON or sealed with
// the vault key.
func (h *MemoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format := r.URL.Query().Get("format")
	if format == "" {
		format = memory.FormatJSON
	}

	data, err := h.memories.Export(ctx, format)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to export memories")
		return
	}

	filename := fmt.Sprintf("memories-%s-%s.json", format, time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import adds memories from an export document posted as the request body.
// Memories whose id already exists are skipped.
func (h *MemoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		handleServiceError(ctx, w, &service.ValidationError{Field: "body", Message: "unreadable"}, "")
		return
	}

	result, err := h.memories.Import(ctx, data, r.URL.Query().Get("format"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to import memories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

// SyncEmbeddings reports chunks still waiting for an embedding.
func (h *MemoryHandler) SyncEmbeddings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.memories.SyncEmbeddings(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to sync embeddings")
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

// SystemHandler reports process and platform information.
type SystemHandler struct {
	version string
	dbPath  string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(version, dbPath string) *SystemHandler {
	return &SystemHandler{version: version, dbPath: dbPath}
}

// ServeHTTP handles GET /api/system.
func (h *SystemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, memory.CollectSystemInfo(h.version, h.dbPath))
}
