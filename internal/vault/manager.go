// Package vault owns the vault session: which vault is active and whether its
// key is held in memory.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"human-api/internal/contextutil"
	"human-api/internal/crypto"
	"human-api/internal/service"
	"human-api/internal/storage"
)

// State is the lifecycle state of the vault session.
type State int

const (
	// Uninitialized means no vault row exists yet.
	Uninitialized State = iota
	// Locked means a vault exists but its key is not in memory.
	Locked
	// Unlocked means the session holds the vault key.
	Unlocked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the settings a vault is created with.
type Config struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	EncryptionEnabled bool   `json:"encryption_enabled"`
}

// Status describes the vault session.
type Status struct {
	IsInitialized     bool   `json:"is_initialized"`
	IsUnlocked        bool   `json:"is_unlocked"`
	Name              string `json:"name,omitempty"`
	Description       string `json:"description,omitempty"`
	EncryptionEnabled bool   `json:"encryption_enabled"`
	MemoryCount       int    `json:"memory_count"`
}

// PasswordService is the Argon2id work the manager needs.
type PasswordService interface {
	HashPassword(ctx context.Context, password string) (string, error)
	VerifyPassword(ctx context.Context, password, encoded string) (bool, error)
	DeriveKey(ctx context.Context, password string, salt []byte, p crypto.Params) ([]byte, error)
	// Params are the cost parameters new key-encryption keys are derived with.
	Params() crypto.Params
}

// Manager runs the vault state machine. Transitions are serialized; the
// session fields are guarded by mu so readers never see a half-updated key.
type Manager struct {
	store     storage.VaultStore
	passwords PasswordService
	now       func() time.Time

	transition sync.Mutex

	mu    sync.RWMutex
	vault *storage.VaultRecord
	key   []byte
}

// NewManager creates a manager and loads the most recent vault, if any.
// An existing vault starts Locked.
func NewManager(ctx context.Context, store storage.VaultStore, passwords PasswordService) (*Manager, error) {
	m := &Manager{
		store:     store,
		passwords: passwords,
		now:       func() time.Time { return time.Now().UTC() },
	}

	v, err := store.GetLatest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, service.Persistence("load vault", err)
	default:
		m.vault = v
	}

	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	switch {
	case m.vault == nil:
		return Uninitialized
	case m.key == nil:
		return Locked
	default:
		return Unlocked
	}
}

// Create initializes a new vault protected by masterPassword and unlocks it.
// A random vault key is generated and stored only wrapped under a key derived
// from the password.
func (m *Manager) Create(ctx context.Context, cfg Config, masterPassword string) (Status, error) {
	logger := contextutil.LoggerFromContext(ctx)

	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return Status{}, &service.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if masterPassword == "" {
		return Status{}, &service.ValidationError{Field: "master_password", Message: "cannot be empty"}
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	if m.State() != Uninitialized {
		return Status{}, service.ErrAlreadyInitialized
	}

	hash, err := m.passwords.HashPassword(ctx, masterPassword)
	if err != nil {
		return Status{}, fmt.Errorf("hash master password: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return Status{}, err
	}
	creds, err := m.wrapKey(ctx, masterPassword, key)
	if err != nil {
		crypto.Wipe(key)
		return Status{}, err
	}
	creds.PasswordHash = hash

	now := m.now()
	record := &storage.VaultRecord{
		ID:                uuid.New().String(),
		Name:              cfg.Name,
		Description:       cfg.Description,
		EncryptionEnabled: cfg.EncryptionEnabled,
		PasswordHash:      creds.PasswordHash,
		KeySalt:           creds.KeySalt,
		KeyParams:         creds.KeyParams,
		EncryptedKey:      creds.EncryptedKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Create(ctx, record); err != nil {
		crypto.Wipe(key)
		if errors.Is(err, storage.ErrConflict) {
			return Status{}, service.ErrAlreadyInitialized
		}
		return Status{}, service.Persistence("create vault", err)
	}

	m.mu.Lock()
	m.vault = record
	m.key = key
	m.mu.Unlock()

	logger.Info("vault created", "vault_id", record.ID, "encryption_enabled", record.EncryptionEnabled)

	return statusOf(record, true, 0), nil
}

// Unlock verifies masterPassword and loads the vault key into memory. With no
// vault it returns a not-initialized status and no error. A wrong password
// returns service.ErrAuthentication and leaves the state unchanged; a key that
// fails to unwrap after the password was accepted returns service.ErrCorrupted.
func (m *Manager) Unlock(ctx context.Context, masterPassword string) (Status, error) {
	logger := contextutil.LoggerFromContext(ctx)

	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.RLock()
	v := m.vault
	m.mu.RUnlock()

	if v == nil {
		return Status{}, nil
	}

	ok, err := m.passwords.VerifyPassword(ctx, masterPassword, v.PasswordHash)
	if errors.Is(err, crypto.ErrInvalidFormat) {
		return Status{}, fmt.Errorf("%w: stored password hash: %v", service.ErrCorrupted, err)
	}
	if err != nil {
		return Status{}, fmt.Errorf("verify master password: %w", err)
	}
	if !ok {
		logger.Warn("vault unlock rejected", "vault_id", v.ID)
		return Status{}, service.ErrAuthentication
	}

	key, err := m.unwrapKey(ctx, masterPassword, v)
	if err != nil {
		return Status{}, err
	}

	// Counted before the key is installed so a failure leaves the vault locked.
	count, err := m.store.CountMemories(ctx, v.ID)
	if err != nil {
		crypto.Wipe(key)
		return Status{}, service.Persistence("count memories", err)
	}

	m.mu.Lock()
	old := m.key
	m.key = key
	m.mu.Unlock()
	if old != nil {
		crypto.Wipe(old)
	}

	logger.Info("vault unlocked", "vault_id", v.ID)

	return statusOf(v, true, count), nil
}

// Lock wipes the in-memory key. Locking a locked vault is a no-op.
func (m *Manager) Lock(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.vault == nil {
		return service.ErrNotInitialized
	}
	if m.key != nil {
		crypto.Wipe(m.key)
		m.key = nil
		contextutil.LoggerFromContext(ctx).Info("vault locked", "vault_id", m.vault.ID)
	}
	return nil
}

// Status reports the session state. It has no side effects.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.RLock()
	v := m.vault
	unlocked := m.key != nil
	m.mu.RUnlock()

	if v == nil {
		return Status{}, nil
	}

	count, err := m.store.CountMemories(ctx, v.ID)
	if err != nil {
		return Status{}, service.Persistence("count memories", err)
	}

	return statusOf(v, unlocked, count), nil
}

func statusOf(v *storage.VaultRecord, unlocked bool, memoryCount int) Status {
	return Status{
		IsInitialized:     true,
		IsUnlocked:        unlocked,
		Name:              v.Name,
		Description:       v.Description,
		EncryptionEnabled: v.EncryptionEnabled,
		MemoryCount:       memoryCount,
	}
}

// UpdateSettings changes the vault name and/or description. Nil fields are
// left untouched. The vault must be unlocked.
func (m *Manager) UpdateSettings(ctx context.Context, name, description *string) (Status, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return Status{}, &service.ValidationError{Field: "name", Message: "cannot be empty"}
		}
		name = &trimmed
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	v, err := m.requireUnlocked()
	if err != nil {
		return Status{}, err
	}

	count, err := m.store.CountMemories(ctx, v.ID)
	if err != nil {
		return Status{}, service.Persistence("count memories", err)
	}

	now := m.now()
	if err := m.store.UpdateSettings(ctx, v.ID, name, description, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Status{}, service.ErrNotFound
		}
		return Status{}, service.Persistence("update vault settings", err)
	}

	updated := *v
	if name != nil {
		updated.Name = *name
	}
	if description != nil {
		updated.Description = *description
	}
	updated.UpdatedAt = now

	m.mu.Lock()
	m.vault = &updated
	m.mu.Unlock()

	return statusOf(&updated, true, count), nil
}

// ChangePassword re-protects the vault key under next. The vault must be
// unlocked and current must match. The vault key itself does not change, so
// existing encrypted data stays readable.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	if next == "" {
		return &service.ValidationError{Field: "new_password", Message: "cannot be empty"}
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	v, err := m.requireUnlocked()
	if err != nil {
		return err
	}

	ok, err := m.passwords.VerifyPassword(ctx, current, v.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify master password: %w", err)
	}
	if !ok {
		return service.ErrAuthentication
	}

	hash, err := m.passwords.HashPassword(ctx, next)
	if err != nil {
		return fmt.Errorf("hash master password: %w", err)
	}

	m.mu.RLock()
	key := append([]byte(nil), m.key...)
	m.mu.RUnlock()
	defer crypto.Wipe(key)

	creds, err := m.wrapKey(ctx, next, key)
	if err != nil {
		return err
	}
	creds.PasswordHash = hash

	now := m.now()
	if err := m.store.UpdateCredentials(ctx, v.ID, creds, now); err != nil {
		return service.Persistence("update vault credentials", err)
	}

	updated := *v
	updated.PasswordHash = creds.PasswordHash
	updated.KeySalt = creds.KeySalt
	updated.KeyParams = creds.KeyParams
	updated.EncryptedKey = creds.EncryptedKey
	updated.UpdatedAt = now

	m.mu.Lock()
	m.vault = &updated
	m.mu.Unlock()

	contextutil.LoggerFromContext(ctx).Info("vault password changed", "vault_id", v.ID)
	return nil
}

// ActiveVaultID returns the ID of the unlocked vault.
func (m *Manager) ActiveVaultID() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, err := m.checkUnlocked()
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// WithKey calls fn with the active vault ID and key. The key must not be
// retained after fn returns; Lock cannot wipe it while fn runs.
func (m *Manager) WithKey(fn func(vaultID string, key []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, err := m.checkUnlocked()
	if err != nil {
		return err
	}
	return fn(v.ID, m.key)
}

func (m *Manager) requireUnlocked() (*storage.VaultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkUnlocked()
}

// checkUnlocked must be called with mu held.
func (m *Manager) checkUnlocked() (*storage.VaultRecord, error) {
	switch m.stateLocked() {
	case Uninitialized:
		return nil, service.ErrNotInitialized
	case Locked:
		return nil, service.ErrLocked
	default:
		return m.vault, nil
	}
}

// wrapKey seals key under a key derived from password, a fresh salt and the
// current cost parameters. PasswordHash is left for the caller.
func (m *Manager) wrapKey(ctx context.Context, password string, key []byte) (storage.Credentials, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return storage.Credentials{}, err
	}

	params := m.passwords.Params()
	kek, err := m.passwords.DeriveKey(ctx, password, salt, params)
	if err != nil {
		return storage.Credentials{}, fmt.Errorf("derive key: %w", err)
	}
	defer crypto.Wipe(kek)

	wrapped, err := crypto.Encrypt(key, kek)
	if err != nil {
		return storage.Credentials{}, fmt.Errorf("wrap vault key: %w", err)
	}
	return storage.Credentials{
		KeySalt:      salt,
		KeyParams:    params.String(),
		EncryptedKey: wrapped,
	}, nil
}

// unwrapKey re-derives the key-encryption key with the parameters stored on
// the vault. Rows written before parameters were stored have none and use the
// current ones.
func (m *Manager) unwrapKey(ctx context.Context, password string, v *storage.VaultRecord) ([]byte, error) {
	params := m.passwords.Params()
	if v.KeyParams != "" {
		p, err := crypto.ParseParams(v.KeyParams)
		if err != nil {
			return nil, fmt.Errorf("%w: stored key parameters: %v", service.ErrCorrupted, err)
		}
		params = p
	}

	kek, err := m.passwords.DeriveKey(ctx, password, v.KeySalt, params)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer crypto.Wipe(kek)

	key, err := crypto.Decrypt(v.EncryptedKey, kek)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap vault key: %v", service.ErrCorrupted, err)
	}
	if len(key) != crypto.KeySize {
		crypto.Wipe(key)
		return nil, fmt.Errorf("%w: vault key has %d bytes", service.ErrCorrupted, len(key))
	}
	return key, nil
}
