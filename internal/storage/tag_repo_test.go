package storage

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestTagRepo_ListForMemory(t *testing.T) {
	db := newTestDB(t)
	memories := NewMemoryRepo(db)
	repo := NewTagRepo(db)
	ctx := context.Background()
	seedVault(t, db, "vault-1")

	if err := memories.Create(ctx, newMemory("m1", "vault-1", "x"), []string{"work", "idea"}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := memories.Create(ctx, newMemory("m2", "vault-1", "y"), nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		memoryID string
		want     string
	}{
		{memoryID: "m1", want: "[idea work]"},
		{memoryID: "m2", want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.memoryID, func(t *testing.T) {
			got, err := repo.ListForMemory(ctx, tt.memoryID)
			if err != nil {
				t.Fatalf("ListForMemory() error = %v", err)
			}
			if fmt.Sprint(got) != tt.want {
				t.Errorf("ListForMemory() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestTagRepo_List(t *testing.T) {
	db := newTestDB(t)
	memories := NewMemoryRepo(db)
	repo := NewTagRepo(db)
	ctx := context.Background()
	seedVault(t, db, "vault-1")
	seedVault(t, db, "vault-2")

	fixtures := []struct {
		id, vaultID string
		tags        []string
	}{
		{id: "m1", vaultID: "vault-1", tags: []string{"work", "Work"}},
		{id: "m2", vaultID: "vault-1", tags: []string{"work"}},
		{id: "m3", vaultID: "vault-2", tags: []string{"travel", "work"}},
		{id: "m4", vaultID: "vault-1", tags: []string{"gone"}},
	}
	for _, f := range fixtures {
		if err := memories.Create(ctx, newMemory(f.id, f.vaultID, "x"), f.tags, nil); err != nil {
			t.Fatalf("Create(%s) error = %v", f.id, err)
		}
	}
	if err := memories.Delete(ctx, "vault-1", "m4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	tests := []struct {
		vaultID string
		want    string
	}{
		// Names are case-sensitive and sort by byte order.
		{vaultID: "vault-1", want: "[Work:1 work:2]"},
		{vaultID: "vault-2", want: "[travel:1 work:1]"},
		{vaultID: "vault-3", want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.vaultID, func(t *testing.T) {
			tags, err := repo.List(ctx, tt.vaultID)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := make([]string, len(tags))
			for i, tag := range tags {
				if tag.ID == "" || tag.CreatedAt.IsZero() {
					t.Errorf("tag %+v missing id or created_at", tag)
				}
				got[i] = fmt.Sprintf("%s:%d", tag.Name, tag.Count)
			}
			if fmt.Sprint(got) != tt.want {
				t.Errorf("List() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestTagRepo_TopTags(t *testing.T) {
	db := newTestDB(t)
	memories := NewMemoryRepo(db)
	repo := NewTagRepo(db)
	ctx := context.Background()
	seedVault(t, db, "vault-1")
	seedVault(t, db, "vault-2")

	fixtures := map[string][]string{
		"m1": {"work", "idea"},
		"m2": {"work"},
		"m3": {"work", "home"},
		"m4": {"home"},
	}
	for id, tags := range fixtures {
		if err := memories.Create(ctx, newMemory(id, "vault-1", id), tags, nil); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if err := memories.Create(ctx, newMemory("f1", "vault-2", "f"), []string{"idea", "idea2"}, nil); err != nil {
		t.Fatalf("Create(f1) error = %v", err)
	}

	got, err := repo.TopTags(ctx, "vault-1", 2)
	if err != nil {
		t.Fatalf("TopTags() error = %v", err)
	}
	want := []TagCount{{Name: "work", Count: 3}, {Name: "home", Count: 2}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("TopTags() = %v, want %v", got, want)
	}
}

func TestGetOrCreateTag_ReturnsExistingID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := getOrCreateTag(ctx, db, "work", time.Now().UTC())
	if err != nil {
		t.Fatalf("getOrCreateTag() error = %v", err)
	}
	second, err := getOrCreateTag(ctx, db, "work", time.Now().UTC())
	if err != nil {
		t.Fatalf("getOrCreateTag() error = %v", err)
	}

	if first != second {
		t.Errorf("getOrCreateTag() ids differ: %q vs %q", first, second)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM tags"); n != 1 {
		t.Errorf("tag rows = %d, want 1", n)
	}
}
