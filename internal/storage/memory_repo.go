package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MemoryStore defines the interface for memory storage operations.
// Writes that touch several tables run in a single transaction.
type MemoryStore interface {
	// Create inserts the memory, links its tags and inserts its chunks atomically.
	// Returns ErrConflict if a memory with the same ID already exists.
	Create(ctx context.Context, memory *MemoryRecord, tags []string, chunks []ChunkRecord) error
	// CreateBatch inserts several memories in one transaction. Memories whose ID
	// already exists are skipped; any other failure rolls the whole batch back.
	// It returns the IDs that were inserted.
	CreateBatch(ctx context.Context, batch []NewMemory) ([]string, error)
	// Replace overwrites title/content/source, replaces the tag set and the chunks.
	// Returns ErrNotFound if the memory does not exist in the vault.
	Replace(ctx context.Context, memory *MemoryRecord, tags []string, chunks []ChunkRecord) error
	// Delete removes the memory with its citations, embeddings, chunks and tag links.
	// Tag rows are kept. Returns ErrNotFound if the memory does not exist in the vault.
	Delete(ctx context.Context, vaultID, id string) error
	// Get returns a single memory. Returns ErrNotFound if not found.
	Get(ctx context.Context, vaultID, id string) (*MemoryRecord, error)
	// SearchByContent returns memories whose content contains needle, newest first.
	SearchByContent(ctx context.Context, vaultID, needle string, limit int) ([]MemoryRecord, error)
	// SearchByTags returns memories linked to any of the tag names, newest first.
	SearchByTags(ctx context.Context, vaultID string, tags []string, limit int) ([]MemoryRecord, error)
	// ListAll returns every memory in the vault, oldest first.
	ListAll(ctx context.Context, vaultID string) ([]MemoryRecord, error)
	// Count returns the number of memories in the vault.
	Count(ctx context.Context, vaultID string) (int, error)
	// CountCreatedSince returns the number of memories created at or after since.
	CountCreatedSince(ctx context.Context, vaultID string, since time.Time) (int, error)
}

// MemoryRepo provides methods for memory operations.
// It implements the MemoryStore interface.
type MemoryRepo struct {
	db *sql.DB
}

// NewMemoryRepo creates a new MemoryRepo.
func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

const memoryColumns = "m.id, m.vault_id, m.title, m.content, m.source, m.created_at, m.updated_at"

// Create inserts the memory row first, then its tag links and chunks, all in
// one transaction so a failure cannot leave orphaned chunks behind.
func (r *MemoryRepo) Create(ctx context.Context, memory *MemoryRecord, tags []string, chunks []ChunkRecord) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertMemory(ctx, tx, memory, tags, chunks)
	})
}

// CreateBatch inserts every memory of batch in one transaction. A duplicate
// ID fails only its own INSERT statement, so the transaction carries on.
func (r *MemoryRepo) CreateBatch(ctx context.Context, batch []NewMemory) ([]string, error) {
	var created []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, m := range batch {
			err := insertMemory(ctx, tx, m.Memory, m.Tags, m.Chunks)
			switch {
			case errors.Is(err, ErrConflict):
			case err != nil:
				return err
			default:
				created = append(created, m.Memory.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertMemory(ctx context.Context, tx *sql.Tx, memory *MemoryRecord, tags []string, chunks []ChunkRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memories (id, vault_id, title, content, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.VaultID, nullString(memory.Title), memory.Content,
		nullString(memory.Source), memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	if err := linkTags(ctx, tx, memory.ID, tags, memory.UpdatedAt); err != nil {
		return err
	}
	return insertChunks(ctx, tx, chunks)
}

// Replace updates the memory and swaps its tags and chunks in one transaction.
// Citations and embeddings that point at the old chunks are removed with them.
func (r *MemoryRepo) Replace(ctx context.Context, memory *MemoryRecord, tags []string, chunks []ChunkRecord) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE memories SET title = ?, content = ?, source = ?, updated_at = ? WHERE id = ? AND vault_id = ?",
			nullString(memory.Title), memory.Content, nullString(memory.Source), memory.UpdatedAt,
			memory.ID, memory.VaultID,
		)
		if err != nil {
			return fmt.Errorf("failed to update memory: %w", err)
		}
		if err := expectOneRow(result); err != nil {
			return err
		}

		if err := deleteDependents(ctx, tx, memory.ID); err != nil {
			return err
		}
		if err := linkTags(ctx, tx, memory.ID, tags, memory.UpdatedAt); err != nil {
			return err
		}
		return insertChunks(ctx, tx, chunks)
	})
}

// Delete cascades in dependency order: citations, embeddings, chunks,
// memory_tags, then the memory itself.
func (r *MemoryRepo) Delete(ctx context.Context, vaultID, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM memories WHERE id = ? AND vault_id = ?", id, vaultID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check memory: %w", err)
		}

		if err := deleteDependents(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		return nil
	})
}

// deleteDependents removes every row that references the memory or its chunks.
func deleteDependents(ctx context.Context, tx *sql.Tx, memoryID string) error {
	stmts := []struct {
		what  string
		query string
	}{
		{"citations", "DELETE FROM citations WHERE memory_id = ?"},
		{"embeddings", "DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE memory_id = ?)"},
		{"chunks", "DELETE FROM chunks WHERE memory_id = ?"},
		{"memory tags", "DELETE FROM memory_tags WHERE memory_id = ?"},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, memoryID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
	}
	return nil
}

// Get returns a single memory scoped to a vault.
func (r *MemoryRepo) Get(ctx context.Context, vaultID, id string) (*MemoryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+memoryColumns+" FROM memories m WHERE m.id = ? AND m.vault_id = ?",
		id, vaultID,
	)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	return m, nil
}

// SearchByContent returns memories whose content contains needle
// (case-insensitive for ASCII), most recently updated first.
func (r *MemoryRepo) SearchByContent(ctx context.Context, vaultID, needle string, limit int) ([]MemoryRecord, error) {
	return r.list(ctx,
		"SELECT "+memoryColumns+` FROM memories m
		 WHERE m.vault_id = ? AND m.content LIKE ? ESCAPE '\'
		 ORDER BY m.updated_at DESC, m.rowid DESC
		 LIMIT ?`,
		vaultID, likePattern(needle), limit,
	)
}

// SearchByTags returns memories linked to any of the given tag names,
// de-duplicated, most recently updated first.
func (r *MemoryRepo) SearchByTags(ctx context.Context, vaultID string, tags []string, limit int) ([]MemoryRecord, error) {
	if len(tags) == 0 {
		return []MemoryRecord{}, nil
	}

	args := make([]any, 0, len(tags)+2)
	args = append(args, vaultID)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, limit)

	return r.list(ctx,
		"SELECT "+memoryColumns+` FROM memories m
		 WHERE m.vault_id = ? AND m.id IN (
			SELECT mt.memory_id FROM memory_tags mt
			JOIN tags t ON mt.tag_id = t.id
			WHERE t.name IN (`+placeholders(len(tags))+`)
		 )
		 ORDER BY m.updated_at DESC, m.rowid DESC
		 LIMIT ?`,
		args...,
	)
}

// ListAll returns every memory in the vault in creation order.
func (r *MemoryRepo) ListAll(ctx context.Context, vaultID string) ([]MemoryRecord, error) {
	return r.list(ctx,
		"SELECT "+memoryColumns+" FROM memories m WHERE m.vault_id = ? ORDER BY m.created_at, m.rowid",
		vaultID,
	)
}

// Count returns the number of memories in the vault.
func (r *MemoryRepo) Count(ctx context.Context, vaultID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE vault_id = ?", vaultID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return n, nil
}

// CountCreatedSince returns the number of memories created at or after since.
func (r *MemoryRepo) CountCreatedSince(ctx context.Context, vaultID string, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE vault_id = ? AND created_at >= ?", vaultID, since.UTC(),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent memories: %w", err)
	}
	return n, nil
}

func (r *MemoryRepo) list(ctx context.Context, query string, args ...any) ([]MemoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	memories := []MemoryRecord{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return memories, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (*MemoryRecord, error) {
	var m MemoryRecord
	var title, source sql.NullString
	if err := s.Scan(&m.ID, &m.VaultID, &title, &m.Content, &source, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Title = title.String
	m.Source = source.String
	return &m, nil
}
