package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_memory_service.go -package=mocks human-api/internal/handlers MemoryService

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"human-api/internal/memory"
	"human-api/internal/service"
)

// MemoryService is the memory store as seen by the HTTP layer.
type MemoryService interface {
	Add(ctx context.Context, entry memory.Entry) (string, error)
	Update(ctx context.Context, id string, entry memory.Entry) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (memory.Entry, error)
	Search(ctx context.Context, req memory.SearchRequest) ([]memory.Entry, error)
	Query(ctx context.Context, req memory.QueryRequest) (memory.QueryResult, error)
	GetCitations(ctx context.Context, memoryID string) ([]memory.Citation, error)
	Stats(ctx context.Context) (memory.Stats, error)
	Tags(ctx context.Context) ([]memory.Tag, error)
	Insights(ctx context.Context, period memory.Period) (memory.Insights, error)
	Export(ctx context.Context, format string) ([]byte, error)
	Import(ctx context.Context, data []byte, format string) (memory.ImportResult, error)
	SyncEmbeddings(ctx context.Context) (memory.SyncResult, error)
}

// MemoryHandler handles HTTP requests for memories of the unlocked vault.
type MemoryHandler struct {
	memories MemoryService
}

// NewMemoryHandler creates a new MemoryHandler.
func NewMemoryHandler(memories MemoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

// AddMemoryResponse carries the id of a stored memory.
//
// swagger:model AddMemoryResponse
type AddMemoryResponse struct {
	ID string `json:"id"`
}

// Add stores a new memory.
//
// swagger:route POST /api/memories memories addMemory
//
// # Add memory
//
// The content is chunked and stored together with its tags in one transaction.
// A title is inferred from the first markdown heading when none is given.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'201':
//	  description: Memory stored
//	  schema:
//	    "$ref": "#/definitions/AddMemoryResponse"
//	'400':
//	  description: Invalid request
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'423':
//	  description: Vault is locked
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *MemoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var entry memory.Entry
	if err := decodeJSON(r, &entry); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	id, err := h.memories.Add(ctx, entry)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to add memory")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, AddMemoryResponse{ID: id})
}

// Get returns one memory.
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entry, err := h.memories.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get memory")
		return
	}
	writeJSON(ctx, w, http.StatusOK, entry)
}

// Update replaces a memory's content, title, source and tags.
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var entry memory.Entry
	if err := decodeJSON(r, &entry); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.memories.Update(ctx, id, entry); err != nil {
		handleServiceError(ctx, w, err, "Failed to update memory")
		return
	}

	updated, err := h.memories.Get(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get memory")
		return
	}
	writeJSON(ctx, w, http.StatusOK, updated)
}

// Delete removes a memory and everything derived from it.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.memories.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err, "Failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search lists memories matching q, or carrying any of the repeated tag
// parameters.
//
// swagger:route GET /api/memories/search memories searchMemories
//
// # Search memories
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Matching memories, most recently updated first
//	'400':
//	  description: Invalid limit
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	results, err := h.memories.Search(ctx, memory.SearchRequest{
		Query: q.Get("q"),
		Limit: limit,
		Tags:  q["tag"],
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to search memories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, results)
}

// Query answers a question from stored memories and records citations.
func (h *MemoryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req memory.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	result, err := h.memories.Query(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to query memories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

// Citations lists the citations recorded against a memory.
func (h *MemoryHandler) Citations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citations, err := h.memories.GetCitations(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list citations")
		return
	}
	writeJSON(ctx, w, http.StatusOK, citations)
}

// Stats reports memory, chunk and embedding counts for the vault.
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.memories.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to collect stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

// Tags lists the tags in use by the vault with their memory counts.
func (h *MemoryHandler) Tags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tags, err := h.memories.Tags(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list tags")
		return
	}
	writeJSON(ctx, w, http.StatusOK, tags)
}

// parseLimit treats an empty value as "use the default".
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: "limit", Message: "must be an integer"}
	}
	return n, nil
}
