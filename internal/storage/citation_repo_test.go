package storage

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestCitationRepo_InsertBatchAndList(t *testing.T) {
	db := newTestDB(t)
	memories := NewMemoryRepo(db)
	repo := NewCitationRepo(db)
	ctx := context.Background()
	seedVault(t, db, "vault-1")

	m := newMemory("m1", "vault-1", "first second")
	m.Title = "Doc"
	m.Source = "manual"
	if err := memories.Create(ctx, m, nil, newChunks("m1", "first", "second")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	now := time.Now().UTC()
	written, err := repo.InsertBatch(ctx, []CitationRecord{
		{ID: "c-low", MemoryID: "m1", ChunkID: "m1-c0", RelevanceScore: 0.2, CreatedAt: now},
		{ID: "c-high", MemoryID: "m1", ChunkID: "m1-c1", RelevanceScore: 0.9, CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if len(written) != 2 {
		t.Errorf("InsertBatch() written = %v, want both", written)
	}

	got, err := repo.ListByMemory(ctx, "vault-1", "m1")
	if err != nil {
		t.Fatalf("ListByMemory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByMemory() returned %d, want 2", len(got))
	}
	if got[0].ID != "c-high" || got[1].ID != "c-low" {
		t.Errorf("ListByMemory() order = [%s %s], want [c-high c-low]", got[0].ID, got[1].ID)
	}
	if got[0].Title != "Doc" || got[0].Source != "manual" || got[0].ChunkContent != "second" {
		t.Errorf("ListByMemory() context = %+v", got[0])
	}

	other, err := repo.ListByMemory(ctx, "vault-2", "m1")
	if err != nil {
		t.Fatalf("ListByMemory() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ListByMemory() other vault = %d rows, want 0", len(other))
	}
}

func TestCitationRepo_InsertBatch_SkipsVanishedChunks(t *testing.T) {
	db := newTestDB(t)
	memories := NewMemoryRepo(db)
	repo := NewCitationRepo(db)
	ctx := context.Background()
	seedVault(t, db, "vault-1")

	if err := memories.Create(ctx, newMemory("m1", "vault-1", "a b"), nil, newChunks("m1", "a", "b")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := memories.Create(ctx, newMemory("m2", "vault-1", "c"), nil, newChunks("m2", "c")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// m2 is deleted between matching and recording.
	if err := memories.Delete(ctx, "vault-1", "m2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	now := time.Now().UTC()
	tests := []struct {
		name      string
		citations []CitationRecord
		want      []string
	}{
		{name: "empty batch", citations: nil, want: nil},
		{
			name: "deleted memory and unknown chunk are skipped",
			citations: []CitationRecord{
				{ID: "c1", MemoryID: "m1", ChunkID: "m1-c0", RelevanceScore: 0.8, CreatedAt: now},
				{ID: "c2", MemoryID: "m2", ChunkID: "m2-c0", RelevanceScore: 0.8, CreatedAt: now},
				{ID: "c3", MemoryID: "missing", ChunkID: "missing", RelevanceScore: 0.8, CreatedAt: now},
				{ID: "c4", MemoryID: "m2", ChunkID: "m1-c1", RelevanceScore: 0.8, CreatedAt: now},
			},
			want: []string{"c1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.InsertBatch(ctx, tt.citations)
			if err != nil {
				t.Fatalf("InsertBatch() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("InsertBatch() written = %v, want %v", got, tt.want)
			}
		})
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM citations"); n != 1 {
		t.Errorf("citation rows = %d, want 1", n)
	}
}
