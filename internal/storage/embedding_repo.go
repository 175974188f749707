package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// EmbeddingStore defines the interface for embedding storage operations.
type EmbeddingStore interface {
	// ListPending returns up to limit chunks of the vault that have no
	// embedding yet, oldest first.
	ListPending(ctx context.Context, vaultID string, limit int) ([]ChunkRecord, error)
	// InsertBatch stores embeddings in one transaction and returns how many
	// were written. Rows for chunks that no longer exist or already have an
	// embedding are skipped.
	InsertBatch(ctx context.Context, embeddings []EmbeddingRecord) (int, error)
}

// EmbeddingRepo provides methods for embedding operations.
// It implements the EmbeddingStore interface.
type EmbeddingRepo struct {
	db *sql.DB
}

// NewEmbeddingRepo creates a new EmbeddingRepo.
func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// ListPending returns chunks without an embedding row.
func (r *EmbeddingRepo) ListPending(ctx context.Context, vaultID string, limit int) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.memory_id, c.chunk_index, c.content, c.start_pos, c.end_pos, c.created_at
		 FROM chunks c
		 JOIN memories m ON m.id = c.memory_id
		 WHERE m.vault_id = ? AND NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.chunk_id = c.id)
		 ORDER BY c.created_at, c.memory_id, c.chunk_index
		 LIMIT ?`,
		vaultID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending chunks: %w", err)
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

// InsertBatch stores embeddings. A chunk replaced by a concurrent update is
// skipped rather than failing the batch.
func (r *EmbeddingRepo) InsertBatch(ctx context.Context, embeddings []EmbeddingRecord) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	written := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, e := range embeddings {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO embeddings (id, chunk_id, vector, model_name, created_at)
				 SELECT ?, ?, ?, ?, ?
				 WHERE EXISTS (SELECT 1 FROM chunks WHERE id = ?)
				   AND NOT EXISTS (SELECT 1 FROM embeddings WHERE chunk_id = ?)`,
				e.ID, e.ChunkID, e.Vector, e.ModelName, e.CreatedAt, e.ChunkID, e.ChunkID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert embedding: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
