package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TagStore defines the interface for tag read operations. Tags are created
// implicitly when memories are written.
type TagStore interface {
	// List returns the tags used by a vault's memories, ordered by name.
	List(ctx context.Context, vaultID string) ([]TagUsage, error)
	// ListForMemory returns the tag names linked to a memory, ordered by name.
	ListForMemory(ctx context.Context, memoryID string) ([]string, error)
	// TopTags returns the most used tags within a vault.
	TopTags(ctx context.Context, vaultID string, limit int) ([]TagCount, error)
}

// TagRepo provides methods for tag operations.
// It implements the TagStore interface.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo creates a new TagRepo.
func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

// List returns the tags used by a vault's memories, ordered by name. Tags
// left behind by deleted memories are not included.
func (r *TagRepo) List(ctx context.Context, vaultID string) ([]TagUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.color, t.created_at, COUNT(*) FROM tags t
		 JOIN memory_tags mt ON t.id = mt.tag_id
		 JOIN memories m ON m.id = mt.memory_id
		 WHERE m.vault_id = ?
		 GROUP BY t.id, t.name, t.color, t.created_at
		 ORDER BY t.name`,
		vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	tags := []TagUsage{}
	for rows.Next() {
		var t TagUsage
		var color sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &color, &t.CreatedAt, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		t.Color = color.String
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tags, nil
}

// ListForMemory returns the tag names linked to a memory, ordered by name.
func (r *TagRepo) ListForMemory(ctx context.Context, memoryID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.name FROM tags t
		 JOIN memory_tags mt ON t.id = mt.tag_id
		 WHERE mt.memory_id = ?
		 ORDER BY t.name`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return names, nil
}

// TopTags returns the tags linked to the most memories in a vault.
func (r *TagRepo) TopTags(ctx context.Context, vaultID string, limit int) ([]TagCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.name, COUNT(*) AS uses FROM tags t
		 JOIN memory_tags mt ON t.id = mt.tag_id
		 JOIN memories m ON m.id = mt.memory_id
		 WHERE m.vault_id = ?
		 GROUP BY t.id, t.name
		 ORDER BY uses DESC, t.name
		 LIMIT ?`,
		vaultID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// linkTags resolves each tag name to a row (creating it if needed) and links
// it to the memory. Duplicate names are linked once.
func linkTags(ctx context.Context, q querier, memoryID string, names []string, now time.Time) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		tagID, err := getOrCreateTag(ctx, q, name, now)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO memory_tags (memory_id, tag_id) VALUES (?, ?)",
			memoryID, tagID,
		); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

// getOrCreateTag is insert-or-get: the insert is a no-op when the name is
// taken, so concurrent writers converge on the same row.
func getOrCreateTag(ctx context.Context, q querier, name string, now time.Time) (string, error) {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING",
		uuid.New().String(), name, now,
	); err != nil {
		return "", fmt.Errorf("failed to insert tag %q: %w", name, err)
	}

	var id string
	if err := q.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to query tag %q: %w", name, err)
	}
	return id, nil
}
