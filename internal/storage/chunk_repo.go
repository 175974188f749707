package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkStore defines the interface for chunk read operations. Chunks are
// written together with their memory by MemoryStore.
type ChunkStore interface {
	// ListByMemory returns the chunks of a memory ordered by chunk_index.
	ListByMemory(ctx context.Context, memoryID string) ([]ChunkRecord, error)
	// Match returns chunks whose memory content or own content contains
	// needle, ordered by memory recency then chunk position.
	Match(ctx context.Context, vaultID, needle string, limit int) ([]ChunkMatch, error)
	// Count returns the number of chunks in the vault.
	Count(ctx context.Context, vaultID string) (int, error)
	// CountEmbeddings returns the number of embeddings in the vault.
	CountEmbeddings(ctx context.Context, vaultID string) (int, error)
	// CountWithoutEmbeddings returns the number of chunks that have no embedding row.
	CountWithoutEmbeddings(ctx context.Context, vaultID string) (int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// insertChunks inserts chunk rows. The chunk IDs must be set before calling.
func insertChunks(ctx context.Context, q querier, chunks []ChunkRecord) error {
	for _, c := range chunks {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO chunks (id, memory_id, chunk_index, content, start_pos, end_pos, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.MemoryID, c.ChunkIndex, c.Content, c.StartPos, c.EndPos, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// ListByMemory returns the chunks of a memory ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListByMemory(ctx context.Context, memoryID string) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, memory_id, chunk_index, content, start_pos, end_pos, created_at
		 FROM chunks WHERE memory_id = ? ORDER BY chunk_index`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := []ChunkRecord{}
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ID, &c.MemoryID, &c.ChunkIndex, &c.Content, &c.StartPos, &c.EndPos, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// Match performs the lexical "contains" match used by memory queries.
func (r *ChunkRepo) Match(ctx context.Context, vaultID, needle string, limit int) ([]ChunkMatch, error) {
	pattern := likePattern(needle)
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.title, m.source, c.id, c.content, c.start_pos, c.end_pos
		 FROM memories m
		 JOIN chunks c ON m.id = c.memory_id
		 WHERE m.vault_id = ? AND (m.content LIKE ? ESCAPE '\' OR c.content LIKE ? ESCAPE '\')
		 ORDER BY m.updated_at DESC, m.rowid DESC, c.chunk_index ASC
		 LIMIT ?`,
		vaultID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	matches := []ChunkMatch{}
	for rows.Next() {
		var m ChunkMatch
		var title, source sql.NullString
		if err := rows.Scan(&m.MemoryID, &title, &source, &m.ChunkID, &m.Content, &m.StartPos, &m.EndPos); err != nil {
			return nil, fmt.Errorf("failed to scan chunk match: %w", err)
		}
		m.Title = title.String
		m.Source = source.String
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return matches, nil
}

// Count returns the number of chunks in the vault.
func (r *ChunkRepo) Count(ctx context.Context, vaultID string) (int, error) {
	return r.count(ctx,
		"SELECT COUNT(*) FROM chunks c JOIN memories m ON m.id = c.memory_id WHERE m.vault_id = ?",
		vaultID)
}

// CountEmbeddings returns the number of embeddings in the vault.
func (r *ChunkRepo) CountEmbeddings(ctx context.Context, vaultID string) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM embeddings e
		 JOIN chunks c ON c.id = e.chunk_id
		 JOIN memories m ON m.id = c.memory_id
		 WHERE m.vault_id = ?`,
		vaultID)
}

// CountWithoutEmbeddings returns the number of chunks with no embedding row.
func (r *ChunkRepo) CountWithoutEmbeddings(ctx context.Context, vaultID string) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM chunks c
		 JOIN memories m ON m.id = c.memory_id
		 WHERE m.vault_id = ? AND NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.chunk_id = c.id)`,
		vaultID)
}

func (r *ChunkRepo) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
