package memory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"human-api/internal/contextutil"
	"human-api/internal/crypto"
	"human-api/internal/service"
	"human-api/internal/storage"
)

// Export serializes every memory of the active vault. FormatJSON returns an
// ExportDocument; FormatEncrypted returns an EncryptedExport whose ciphertext
// is that document sealed with the vault key.
func (s *Store) Export(ctx context.Context, format string) ([]byte, error) {
	if format != FormatJSON && format != FormatEncrypted {
		return nil, &service.ValidationError{Field: "format", Message: "must be json or encrypted"}
	}

	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return nil, err
	}

	records, err := s.memories.ListAll(ctx, vaultID)
	if err != nil {
		return nil, storageErr("list memories", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e, err := s.toEntry(ctx, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	now := s.now()
	doc, err := json.Marshal(ExportDocument{Format: FormatJSON, ExportedAt: now, Data: entries})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	if format == FormatJSON {
		contextutil.LoggerFromContext(ctx).Info("memories exported", "format", format, "count", len(entries))
		return doc, nil
	}

	var sealed []byte
	err = s.vaults.WithKey(func(activeID string, key []byte) error {
		if activeID != vaultID {
			return service.ErrLocked
		}
		var err error
		sealed, err = crypto.Encrypt(doc, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("seal export: %w", err)
	}

	out, err := json.Marshal(EncryptedExport{
		Format:     FormatEncrypted,
		ExportedAt: now,
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	contextutil.LoggerFromContext(ctx).Info("memories exported", "format", format, "count", len(entries))
	return out, nil
}

// Import adds the memories in data to the active vault. data may be an
// ExportDocument, an EncryptedExport sealed with this vault's key, or a bare
// JSON array of entries; a non-empty format must match what data holds.
// Entries whose ID already exists are skipped. The import is all or nothing:
// malformed input yields a ValidationError and a storage failure rolls back
// every entry.
func (s *Store) Import(ctx context.Context, data []byte, format string) (ImportResult, error) {
	if format != "" && format != FormatJSON && format != FormatEncrypted {
		return ImportResult{}, &service.ValidationError{Field: "format", Message: "must be json or encrypted"}
	}

	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return ImportResult{}, err
	}

	entries, err := s.decodeImport(data, format)
	if err != nil {
		return ImportResult{}, err
	}

	now := s.now()
	batch := make([]storage.NewMemory, 0, len(entries))
	for i, e := range entries {
		m, err := s.prepare(vaultID, e, now)
		if err != nil {
			return ImportResult{}, &service.ValidationError{
				Field:   fmt.Sprintf("data[%d].content", i),
				Message: "cannot be empty",
			}
		}
		batch = append(batch, m)
	}

	created, err := s.memories.CreateBatch(ctx, batch)
	if err != nil {
		return ImportResult{}, storageErr("import memories", err)
	}
	result := ImportResult{Imported: len(created), Skipped: len(batch) - len(created)}

	contextutil.LoggerFromContext(ctx).Info("memories imported",
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	return result, nil
}

// decodeImport parses data. want, when set, is the format the caller expects;
// a bare array counts as json.
func (s *Store) decodeImport(data []byte, want string) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &service.ValidationError{Field: "data", Message: "cannot be empty"}
	}

	if trimmed[0] == '[' {
		if err := checkFormat(want, FormatJSON); err != nil {
			return nil, err
		}
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &service.ValidationError{Field: "data", Message: "invalid JSON: " + err.Error()}
		}
		return entries, nil
	}

	var envelope struct {
		Format     string  `json:"format"`
		Data       []Entry `json:"data"`
		Ciphertext string  `json:"ciphertext"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &service.ValidationError{Field: "data", Message: "invalid JSON: " + err.Error()}
	}

	if envelope.Format == FormatJSON || envelope.Format == FormatEncrypted {
		if err := checkFormat(want, envelope.Format); err != nil {
			return nil, err
		}
	}

	switch envelope.Format {
	case FormatJSON:
		return envelope.Data, nil
	case FormatEncrypted:
		return s.openEncrypted(envelope.Ciphertext)
	default:
		return nil, &service.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported export format %q", envelope.Format)}
	}
}

func checkFormat(want, got string) error {
	if want != "" && want != got {
		return &service.ValidationError{
			Field:   "format",
			Message: fmt.Sprintf("is %q but the data is a %q export", want, got),
		}
	}
	return nil
}

func (s *Store) openEncrypted(ciphertext string) ([]Entry, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &service.ValidationError{Field: "ciphertext", Message: "invalid base64"}
	}

	var plain []byte
	err = s.vaults.WithKey(func(_ string, key []byte) error {
		var err error
		plain, err = crypto.Decrypt(sealed, key)
		return err
	})
	switch {
	case errors.Is(err, crypto.ErrAuthenticationFailed), errors.Is(err, crypto.ErrTooShort):
		return nil, &service.ValidationError{Field: "ciphertext", Message: "cannot be decrypted with this vault's key"}
	case err != nil:
		return nil, err
	}

	var doc ExportDocument
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, &service.ValidationError{Field: "ciphertext", Message: "invalid export document"}
	}
	return doc.Data, nil
}
