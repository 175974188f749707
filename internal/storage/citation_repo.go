package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// CitationStore defines the interface for citation storage operations.
type CitationStore interface {
	// InsertBatch records citations produced by a query in one transaction,
	// skipping those whose chunk no longer exists, and returns the written IDs.
	InsertBatch(ctx context.Context, citations []CitationRecord) ([]string, error)
	// ListByMemory returns a memory's citations by descending relevance,
	// joined with memory and chunk context.
	ListByMemory(ctx context.Context, vaultID, memoryID string) ([]CitationDetail, error)
}

// CitationRepo provides methods for citation operations.
// It implements the CitationStore interface.
type CitationRepo struct {
	db *sql.DB
}

// NewCitationRepo creates a new CitationRepo.
func NewCitationRepo(db *sql.DB) *CitationRepo {
	return &CitationRepo{db: db}
}

// InsertBatch records citations in one transaction and returns the IDs it
// wrote. A citation whose chunk was deleted or replaced since it was matched is
// skipped. The citation IDs must be set.
func (r *CitationRepo) InsertBatch(ctx context.Context, citations []CitationRecord) ([]string, error) {
	if len(citations) == 0 {
		return nil, nil
	}

	var written []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, c := range citations {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO citations (id, memory_id, chunk_id, relevance_score, created_at)
				 SELECT ?, ?, ?, ?, ?
				 WHERE EXISTS (SELECT 1 FROM chunks WHERE id = ? AND memory_id = ?)`,
				c.ID, c.MemoryID, c.ChunkID, c.RelevanceScore, c.CreatedAt, c.ChunkID, c.MemoryID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert citation: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n > 0 {
				written = append(written, c.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// ListByMemory returns a memory's citations by descending relevance.
func (r *CitationRepo) ListByMemory(ctx context.Context, vaultID, memoryID string) ([]CitationDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.memory_id, c.chunk_id, c.relevance_score, c.created_at, m.title, m.source, ch.content
		 FROM citations c
		 JOIN chunks ch ON c.chunk_id = ch.id
		 JOIN memories m ON c.memory_id = m.id
		 WHERE c.memory_id = ? AND m.vault_id = ?
		 ORDER BY c.relevance_score DESC, c.created_at DESC`,
		memoryID, vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	citations := []CitationDetail{}
	for rows.Next() {
		var d CitationDetail
		var title, source sql.NullString
		if err := rows.Scan(&d.ID, &d.MemoryID, &d.ChunkID, &d.RelevanceScore, &d.CreatedAt,
			&title, &source, &d.ChunkContent); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		d.Title = title.String
		d.Source = source.String
		citations = append(citations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return citations, nil
}
