// Package memory ingests, retrieves and maintains the memories of the active
// vault. Every operation requires the vault to be unlocked.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"human-api/internal/contextutil"
	"human-api/internal/indexer"
	"human-api/internal/service"
	"human-api/internal/storage"
)

// VaultSession exposes the active vault to memory operations.
type VaultSession interface {
	// ActiveVaultID returns the unlocked vault's ID, or service.ErrLocked /
	// service.ErrNotInitialized.
	ActiveVaultID() (string, error)
	// WithKey runs fn with the unlocked vault's ID and key.
	WithKey(fn func(vaultID string, key []byte) error) error
}

// Store implements the memory operations on top of the storage repos.
type Store struct {
	vaults    VaultSession
	memories  storage.MemoryStore
	chunks    storage.ChunkStore
	tags      storage.TagStore
	citations storage.CitationStore
	titles    *indexer.TitleExtractor
	now       func() time.Time

	embeddings storage.EmbeddingStore
	embedder   Embedder
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Option configures a Store.
type Option func(*Store)

// WithEmbeddings makes SyncEmbeddings compute and store vectors for chunks
// that have none. Without it SyncEmbeddings only reports the backlog.
func WithEmbeddings(store storage.EmbeddingStore, embedder Embedder) Option {
	return func(s *Store) {
		s.embeddings = store
		s.embedder = embedder
	}
}

// NewStore creates a new memory Store.
func NewStore(
	vaults VaultSession,
	memories storage.MemoryStore,
	chunks storage.ChunkStore,
	tags storage.TagStore,
	citations storage.CitationStore,
	opts ...Option,
) *Store {
	s := &Store{
		vaults:    vaults,
		memories:  memories,
		chunks:    chunks,
		tags:      tags,
		citations: citations,
		titles:    indexer.NewTitleExtractor(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add ingests a memory: it assigns an ID when none is given, infers a title
// from the first markdown heading when none is given, chunks the content and
// persists memory, tags and chunks in one transaction. It returns the ID.
func (s *Store) Add(ctx context.Context, entry Entry) (string, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return "", err
	}

	now := s.now()
	entry.CreatedAt, entry.UpdatedAt = time.Time{}, time.Time{}
	return s.add(ctx, vaultID, entry, now)
}

// add writes entry under vaultID. Zero timestamps on entry default to now.
func (s *Store) add(ctx context.Context, vaultID string, entry Entry, now time.Time) (string, error) {
	m, err := s.prepare(vaultID, entry, now)
	if err != nil {
		return "", err
	}

	if err := s.memories.Create(ctx, m.Memory, m.Tags, m.Chunks); err != nil {
		return "", storageErr("add memory", err)
	}

	contextutil.LoggerFromContext(ctx).Info("memory added",
		"memory_id", m.Memory.ID,
		"content_bytes", len(entry.Content),
		"chunks", len(m.Chunks),
	)
	return m.Memory.ID, nil
}

// prepare validates entry and builds its memory row, tags and chunks.
func (s *Store) prepare(vaultID string, entry Entry, now time.Time) (storage.NewMemory, error) {
	if err := validateEntry(entry); err != nil {
		return storage.NewMemory{}, err
	}

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.New().String()
	}

	return storage.NewMemory{
		Memory: &storage.MemoryRecord{
			ID:        id,
			VaultID:   vaultID,
			Title:     s.title(entry),
			Content:   entry.Content,
			Source:    strings.TrimSpace(entry.Source),
			CreatedAt: orNow(entry.CreatedAt, now),
			UpdatedAt: orNow(entry.UpdatedAt, now),
		},
		Tags:   normalizeTags(entry.Tags),
		Chunks: buildChunks(id, entry.Content, now),
	}, nil
}

// Update replaces a memory's title, content, source and tags, and re-chunks
// the new content. Citations and embeddings of the old chunks are dropped.
func (s *Store) Update(ctx context.Context, id string, entry Entry) error {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	existing, err := s.memories.Get(ctx, vaultID, id)
	if err != nil {
		return storageErr("get memory", err)
	}

	now := s.now()
	record := &storage.MemoryRecord{
		ID:        existing.ID,
		VaultID:   vaultID,
		Title:     s.title(entry),
		Content:   entry.Content,
		Source:    strings.TrimSpace(entry.Source),
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now,
	}
	chunks := buildChunks(existing.ID, entry.Content, now)

	if err := s.memories.Replace(ctx, record, normalizeTags(entry.Tags), chunks); err != nil {
		return storageErr("update memory", err)
	}

	contextutil.LoggerFromContext(ctx).Info("memory updated",
		"memory_id", id,
		"content_bytes", len(entry.Content),
		"chunks", len(chunks),
	)
	return nil
}

// Delete removes a memory with its chunks, citations, embeddings and tag
// links. Tags themselves are kept for reuse.
func (s *Store) Delete(ctx context.Context, id string) error {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return err
	}

	if err := s.memories.Delete(ctx, vaultID, id); err != nil {
		return storageErr("delete memory", err)
	}

	contextutil.LoggerFromContext(ctx).Info("memory deleted", "memory_id", id)
	return nil
}

// Get returns a single memory with its tags.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return Entry{}, err
	}

	record, err := s.memories.Get(ctx, vaultID, id)
	if err != nil {
		return Entry{}, storageErr("get memory", err)
	}
	return s.toEntry(ctx, *record)
}

// Search returns memories carrying any of req.Tags or, with no tags, memories
// whose content contains req.Query. Results are most recently updated first.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]Entry, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return nil, err
	}

	limit, err := resolveLimit(req.Limit, DefaultSearchLimit)
	if err != nil {
		return nil, err
	}

	var records []storage.MemoryRecord
	if tags := normalizeTags(req.Tags); len(tags) > 0 {
		records, err = s.memories.SearchByTags(ctx, vaultID, tags, limit)
	} else {
		records, err = s.memories.SearchByContent(ctx, vaultID, req.Query, limit)
	}
	if err != nil {
		return nil, storageErr("search memories", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e, err := s.toEntry(ctx, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Query matches req.Query against memory and chunk content and assembles an
// answer from the matching chunks, newest memory first. With
// IncludeCitations each matched chunk is returned and recorded as a citation.
func (s *Store) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	start := time.Now()

	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return QueryResult{}, err
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return QueryResult{}, &service.ValidationError{Field: "query", Message: "cannot be empty"}
	}
	limit, err := resolveLimit(req.Limit, DefaultQueryLimit)
	if err != nil {
		return QueryResult{}, err
	}

	matches, err := s.chunks.Match(ctx, vaultID, query, limit)
	if err != nil {
		return QueryResult{}, storageErr("match chunks", err)
	}

	citations := []Citation{}
	if req.IncludeCitations && len(matches) > 0 {
		now := s.now()
		candidates := make([]Citation, 0, len(matches))
		records := make([]storage.CitationRecord, 0, len(matches))
		for _, m := range matches {
			c := Citation{
				ID:             uuid.New().String(),
				MemoryID:       m.MemoryID,
				ChunkID:        m.ChunkID,
				Title:          m.Title,
				Content:        m.Content,
				RelevanceScore: lexicalRelevance,
				Source:         m.Source,
				StartPos:       m.StartPos,
				EndPos:         m.EndPos,
				CreatedAt:      now,
			}
			candidates = append(candidates, c)
			records = append(records, storage.CitationRecord{
				ID:             c.ID,
				MemoryID:       c.MemoryID,
				ChunkID:        c.ChunkID,
				RelevanceScore: c.RelevanceScore,
				CreatedAt:      now,
			})
		}
		written, err := s.citations.InsertBatch(ctx, records)
		if err != nil {
			return QueryResult{}, storageErr("record citations", err)
		}
		// Chunks removed by a concurrent update or delete are not cited.
		recorded := make(map[string]bool, len(written))
		for _, id := range written {
			recorded[id] = true
		}
		for _, c := range candidates {
			if recorded[c.ID] {
				citations = append(citations, c)
			}
		}
	}

	parts := make([]string, 0, len(matches))
	if req.IncludeCitations {
		for _, c := range citations {
			parts = append(parts, c.Content)
		}
	} else {
		for _, m := range matches {
			parts = append(parts, m.Content)
		}
	}

	confidence := 0.0
	if len(citations) > 0 {
		confidence = lexicalConfidence
	}

	result := QueryResult{
		Answer:           strings.Join(parts, "\n\n"),
		Citations:        citations,
		Confidence:       confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	contextutil.LoggerFromContext(ctx).Debug("memory query",
		"query_bytes", len(query),
		"matches", len(matches),
		"citations", len(citations),
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

// GetCitations returns the recorded citations of a memory, most relevant first.
func (s *Store) GetCitations(ctx context.Context, memoryID string) ([]Citation, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return nil, err
	}

	if _, err := s.memories.Get(ctx, vaultID, memoryID); err != nil {
		return nil, storageErr("get memory", err)
	}

	details, err := s.citations.ListByMemory(ctx, vaultID, memoryID)
	if err != nil {
		return nil, storageErr("list citations", err)
	}

	citations := make([]Citation, 0, len(details))
	for _, d := range details {
		citations = append(citations, Citation{
			ID:             d.ID,
			MemoryID:       d.MemoryID,
			ChunkID:        d.ChunkID,
			Title:          d.Title,
			Content:        d.ChunkContent,
			RelevanceScore: d.RelevanceScore,
			Source:         d.Source,
			CreatedAt:      d.CreatedAt,
		})
	}
	return citations, nil
}

func (s *Store) toEntry(ctx context.Context, r storage.MemoryRecord) (Entry, error) {
	tags, err := s.tags.ListForMemory(ctx, r.ID)
	if err != nil {
		return Entry{}, storageErr("list tags", err)
	}
	return Entry{
		ID:        r.ID,
		Content:   r.Content,
		Title:     r.Title,
		Tags:      tags,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func (s *Store) title(entry Entry) string {
	if t := strings.TrimSpace(entry.Title); t != "" {
		return t
	}
	return s.titles.InferTitle(entry.Content)
}

func buildChunks(memoryID, content string, now time.Time) []storage.ChunkRecord {
	pieces := indexer.ChunkWords(content, indexer.WordsPerChunk)
	chunks := make([]storage.ChunkRecord, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, storage.ChunkRecord{
			ID:         uuid.New().String(),
			MemoryID:   memoryID,
			ChunkIndex: p.Index,
			Content:    p.Content,
			StartPos:   p.StartPos,
			EndPos:     p.EndPos,
			CreatedAt:  now,
		})
	}
	return chunks
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.Content) == "" {
		return &service.ValidationError{Field: "content", Message: "cannot be empty"}
	}
	return nil
}

// normalizeTags trims tag names and drops empty ones. Case is preserved.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func resolveLimit(limit, def int) (int, error) {
	switch {
	case limit < 0:
		return 0, &service.ValidationError{Field: "limit", Message: "must be positive"}
	case limit == 0:
		return def, nil
	case limit > MaxLimit:
		return MaxLimit, nil
	default:
		return limit, nil
	}
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC()
}

// storageErr maps storage errors onto the service error kinds.
func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return service.ErrConflict
	default:
		return service.Persistence(op, err)
	}
}
