package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vault_store.go -package=mocks human-api/internal/storage VaultStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// VaultStore defines the interface for vault storage operations.
type VaultStore interface {
	// Create inserts a new vault row.
	Create(ctx context.Context, vault *VaultRecord) error
	// GetLatest returns the most recently created vault. Returns ErrNotFound if none exist.
	GetLatest(ctx context.Context) (*VaultRecord, error)
	// UpdateSettings changes name and/or description; nil leaves a field untouched.
	UpdateSettings(ctx context.Context, id string, name, description *string, updatedAt time.Time) error
	// UpdateCredentials replaces the password hash and the wrapped vault key.
	UpdateCredentials(ctx context.Context, id string, creds Credentials, updatedAt time.Time) error
	// CountMemories returns the number of memories stored in a vault.
	CountMemories(ctx context.Context, vaultID string) (int, error)
}

// VaultRepo provides methods for vault operations.
// It implements the VaultStore interface.
type VaultRepo struct {
	db *sql.DB
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(db *sql.DB) *VaultRepo {
	return &VaultRepo{db: db}
}

// Create inserts a new vault row.
func (r *VaultRepo) Create(ctx context.Context, vault *VaultRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vaults (id, name, description, encryption_enabled, password_hash, key_salt, key_params, encrypted_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		vault.ID, vault.Name, nullString(vault.Description), vault.EncryptionEnabled,
		vault.PasswordHash, vault.KeySalt, vault.KeyParams, vault.EncryptedKey, vault.CreatedAt, vault.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert vault: %w", err)
	}
	return nil
}

// GetLatest returns the most recently created vault.
func (r *VaultRepo) GetLatest(ctx context.Context) (*VaultRecord, error) {
	var v VaultRecord
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, encryption_enabled, password_hash, key_salt, key_params, encrypted_key, created_at, updated_at
		 FROM vaults ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&v.ID, &v.Name, &description, &v.EncryptionEnabled, &v.PasswordHash,
		&v.KeySalt, &v.KeyParams, &v.EncryptedKey, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vault: %w", err)
	}
	v.Description = description.String

	return &v, nil
}

// UpdateSettings changes name and/or description. Returns ErrNotFound if the
// vault does not exist.
func (r *VaultRepo) UpdateSettings(ctx context.Context, id string, name, description *string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE vaults SET name = COALESCE(?, name), description = COALESCE(?, description), updated_at = ? WHERE id = ?",
		name, description, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update vault settings: %w", err)
	}
	return expectOneRow(result)
}

// UpdateCredentials replaces the password hash and wrapped key of a vault.
func (r *VaultRepo) UpdateCredentials(ctx context.Context, id string, creds Credentials, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE vaults SET password_hash = ?, key_salt = ?, key_params = ?, encrypted_key = ?, updated_at = ? WHERE id = ?",
		creds.PasswordHash, creds.KeySalt, creds.KeyParams, creds.EncryptedKey, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update vault credentials: %w", err)
	}
	return expectOneRow(result)
}

// CountMemories returns the number of memories stored in a vault.
func (r *VaultRepo) CountMemories(ctx context.Context, vaultID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE vault_id = ?", vaultID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return count, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
