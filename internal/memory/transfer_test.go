package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"human-api/internal/service"
)

func TestStore_ExportJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.Add(ctx, Entry{ID: "m1", Title: "First", Content: "first note", Tags: []string{"work"}, Source: "manual"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := f.store.Add(ctx, Entry{ID: "m2", Content: "second note"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	out, err := f.store.Export(ctx, FormatJSON)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc ExportDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Export() is not valid JSON: %v", err)
	}
	if doc.Format != FormatJSON || doc.ExportedAt.IsZero() {
		t.Errorf("envelope = %+v", doc)
	}
	if len(doc.Data) != 2 || doc.Data[0].ID != "m1" || doc.Data[1].ID != "m2" {
		t.Fatalf("Data = %+v", doc.Data)
	}
	first := doc.Data[0]
	if first.Title != "First" || first.Source != "manual" || len(first.Tags) != 1 || first.Tags[0] != "work" {
		t.Errorf("Data[0] = %+v", first)
	}

	// Importing into the same vault skips existing IDs.
	result, err := f.store.Import(ctx, out, FormatJSON)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result != (ImportResult{Imported: 0, Skipped: 2}) {
		t.Errorf("Import() = %+v, want all skipped", result)
	}
}

func TestStore_ExportImport_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{name: "json", format: FormatJSON},
		{name: "encrypted", format: FormatEncrypted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			id, err := f.store.Add(ctx, Entry{Content: alphaBeta(), Tags: []string{"work", "idea"}})
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			before, err := f.store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}

			out, err := f.store.Export(ctx, tt.format)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if tt.format == FormatEncrypted && strings.Contains(string(out), "alpha beta") {
				t.Fatal("encrypted export leaks plaintext")
			}

			if err := f.store.Delete(ctx, id); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			result, err := f.store.Import(ctx, out, tt.format)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if result.Imported != 1 {
				t.Fatalf("Import() = %+v, want 1 imported", result)
			}

			after, err := f.store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get() after Import() error = %v", err)
			}
			if after.Content != before.Content || strings.Join(after.Tags, ",") != strings.Join(before.Tags, ",") {
				t.Errorf("imported memory = %+v, want %+v", after, before)
			}
			if !after.CreatedAt.Equal(before.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", after.CreatedAt, before.CreatedAt)
			}
			if n := f.count("SELECT COUNT(*) FROM chunks WHERE memory_id = ?", id); n != 3 {
				t.Errorf("chunks after Import() = %d, want 3", n)
			}
		})
	}
}

func TestStore_Import_Invalid(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	ctx := context.Background()

	if _, err := other.store.Add(ctx, Entry{Content: "secret"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	foreign, err := other.store.Export(ctx, FormatEncrypted)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	tests := []struct {
		name   string
		data   string
		format string
		field  string
	}{
		{name: "empty", data: "  ", format: FormatJSON, field: "data"},
		{name: "not json", data: "{not json", format: FormatJSON, field: "data"},
		{name: "unknown envelope format", data: `{"format":"xml","data":[]}`, format: FormatJSON, field: "format"},
		{name: "unknown format argument", data: `[]`, format: "csv", field: "format"},
		{name: "entry without content", data: `[{"content":"ok"},{"content":""}]`, format: FormatJSON, field: "data[1].content"},
		{name: "bad base64", data: `{"format":"encrypted","ciphertext":"***"}`, format: FormatEncrypted, field: "ciphertext"},
		{name: "sealed by another vault", data: string(foreign), format: FormatEncrypted, field: "ciphertext"},
		{name: "encrypted export imported as json", data: string(foreign), format: FormatJSON, field: "format"},
		{name: "bare array imported as encrypted", data: `[{"content":"ok"}]`, format: FormatEncrypted, field: "format"},
		{name: "json envelope imported as encrypted", data: `{"format":"json","data":[{"content":"ok"}]}`, format: FormatEncrypted, field: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.Import(ctx, []byte(tt.data), tt.format)
			var ve *service.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Import() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}

	if n := f.count("SELECT COUNT(*) FROM memories"); n != 0 {
		t.Errorf("memories after invalid imports = %d, want 0", n)
	}
}

func TestStore_Import_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.Add(ctx, Entry{ID: "kept", Content: "already here"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	// Any row with this content fails to insert.
	if _, err := f.db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON memories
		WHEN NEW.content = 'boom' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	data := `[{"content":"first"},{"id":"kept","content":"dup"},{"content":"boom"},{"content":"last"}]`
	_, err := f.store.Import(ctx, []byte(data), FormatJSON)
	var pe *service.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Import() error = %v, want PersistenceError", err)
	}
	if n := f.count("SELECT COUNT(*) FROM memories"); n != 1 {
		t.Errorf("memories after failed Import() = %d, want only the existing one", n)
	}
	if n := f.count("SELECT COUNT(*) FROM chunks"); n != 1 {
		t.Errorf("chunks after failed Import() = %d, want 1", n)
	}

	if _, err := f.db.Exec("DROP TRIGGER reject_boom"); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	result, err := f.store.Import(ctx, []byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 3 || result.Skipped != 1 {
		t.Errorf("Import() = %+v, want 3 imported and 1 skipped", result)
	}
}

func TestStore_Import_BareArray(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.store.Import(ctx, []byte(`[{"content":"one"},{"content":"# Two\n\nbody","tags":["x"]}]`), "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("Import() = %+v, want 2 imported", result)
	}

	found, err := f.store.Search(ctx, SearchRequest{Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].Title != "Two" {
		t.Errorf("Search() = %+v", found)
	}
}

func TestStore_Export_InvalidFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Export(context.Background(), "xml")
	var ve *service.ValidationError
	if !errors.As(err, &ve) || ve.Field != "format" {
		t.Errorf("Export(xml) error = %v, want ValidationError on format", err)
	}
}
