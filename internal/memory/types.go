package memory

import "time"

const (
	// DefaultQueryLimit caps query results when no limit is given.
	DefaultQueryLimit = 10
	// DefaultSearchLimit caps search results when no limit is given.
	DefaultSearchLimit = 20
	// MaxLimit is the largest accepted query or search limit.
	MaxLimit = 100

	// lexicalRelevance is the relevance assigned to every lexical match.
	lexicalRelevance = 0.8
	// lexicalConfidence is reported when a query produced any citation.
	lexicalConfidence = 0.8

	topTagsLimit = 10
)

// Entry is a memory as accepted from and returned to callers.
type Entry struct {
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// QueryRequest asks for chunks matching a free-text query.
type QueryRequest struct {
	Query            string `json:"query"`
	Limit            int    `json:"limit,omitempty"`
	IncludeCitations bool   `json:"include_citations"`
}

// Citation points from a query answer back to the chunk that supported it.
type Citation struct {
	ID             string    `json:"id"`
	MemoryID       string    `json:"memory_id"`
	ChunkID        string    `json:"chunk_id"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	RelevanceScore float64   `json:"relevance_score"`
	Source         string    `json:"source,omitempty"`
	StartPos       int       `json:"start_pos"`
	EndPos         int       `json:"end_pos"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// QueryResult is the answer to a QueryRequest.
type QueryResult struct {
	Answer           string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	Confidence       float64    `json:"confidence"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
}

// SearchRequest finds memories by content or by tag.
type SearchRequest struct {
	Query string   `json:"query"`
	Limit int      `json:"limit,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Stats summarizes the active vault.
type Stats struct {
	TotalMemories    int       `json:"total_memories"`
	TotalChunks      int       `json:"total_chunks"`
	TotalEmbeddings  int       `json:"total_embeddings"`
	StorageSizeBytes int64     `json:"storage_size_bytes"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Period selects the window an Insights report covers.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// TagUsage is a tag with the number of memories that carry it.
type TagUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Tag is a tag in use by the active vault.
type Tag struct {
	Name        string    `json:"name"`
	Color       string    `json:"color,omitempty"`
	MemoryCount int       `json:"memory_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrendPoint is the number of memories created on one day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Insights is an activity report for a period.
type Insights struct {
	Period        Period       `json:"period"`
	TotalMemories int          `json:"total_memories"`
	NewMemories   int          `json:"new_memories"`
	TopTags       []TagUsage   `json:"top_tags"`
	MemoryTrends  []TrendPoint `json:"memory_trends"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

// Export formats.
const (
	FormatJSON      = "json"
	FormatEncrypted = "encrypted"
)

// ExportDocument is the plaintext export envelope.
type ExportDocument struct {
	Format     string    `json:"format"`
	ExportedAt time.Time `json:"exported_at"`
	Data       []Entry   `json:"data"`
}

// EncryptedExport wraps an ExportDocument sealed with the vault key.
type EncryptedExport struct {
	Format     string    `json:"format"`
	ExportedAt time.Time `json:"exported_at"`
	Ciphertext string    `json:"ciphertext"` // base64(nonce || AES-GCM(document))
}

// ImportResult reports what an Import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// SyncResult reports the embedding backlog.
type SyncResult struct {
	PendingChunks int `json:"pending_chunks"`
	Embedded      int `json:"embedded"`
}

// SystemInfo describes the running process and its database.
type SystemInfo struct {
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Arch        string `json:"arch"`
	GoVersion   string `json:"go_version"`
	MemoryUsage uint64 `json:"memory_usage"`
	DiskUsage   int64  `json:"disk_usage"`
}
