package vault

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"human-api/internal/crypto"
	"human-api/internal/service"
	"human-api/internal/storage"
	"human-api/internal/storage/mocks"
)

// Cheap Argon2 parameters keep the tests fast.
var testParams = crypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

func newPasswords() *crypto.Service {
	return crypto.NewService(testParams, 2)
}

func newSQLiteStore(t *testing.T) *storage.VaultRepo {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "vault.db"), storage.DefaultOptions())
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return storage.NewVaultRepo(db)
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name      string
		record    *storage.VaultRecord
		err       error
		wantState State
		wantErr   bool
	}{
		{
			name:      "no vault",
			err:       storage.ErrNotFound,
			wantState: Uninitialized,
		},
		{
			name:      "existing vault starts locked",
			record:    &storage.VaultRecord{ID: "vault-1", Name: "Personal"},
			wantState: Locked,
		},
		{
			name:    "storage failure",
			err:     errors.New("disk I/O error"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockStore := mocks.NewMockVaultStore(ctrl)
			mockStore.EXPECT().GetLatest(gomock.Any()).Return(tt.record, tt.err)

			manager, err := NewManager(context.Background(), mockStore, newPasswords())
			if tt.wantErr {
				var pe *service.PersistenceError
				if !errors.As(err, &pe) {
					t.Errorf("NewManager() error = %v, want PersistenceError", err)
				}
				if manager != nil {
					t.Error("NewManager() should return nil on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}
			if got := manager.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestManager_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockVaultStore(ctrl)
	mockStore.EXPECT().GetLatest(gomock.Any()).Return(nil, storage.ErrNotFound)

	var saved *storage.VaultRecord
	mockStore.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, v *storage.VaultRecord) error {
			saved = v
			return nil
		})

	manager, err := NewManager(context.Background(), mockStore, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	status, err := manager.Create(context.Background(), Config{Name: "Personal", EncryptionEnabled: true}, "correct-horse")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := Status{IsInitialized: true, IsUnlocked: true, Name: "Personal", EncryptionEnabled: true, MemoryCount: 0}
	if status != want {
		t.Errorf("Create() status = %+v, want %+v", status, want)
	}
	if manager.State() != Unlocked {
		t.Errorf("State() = %v, want unlocked", manager.State())
	}

	if saved == nil {
		t.Fatal("Create() did not persist the vault")
	}
	if saved.ID == "" {
		t.Error("vault ID not assigned")
	}
	if saved.KeyParams != testParams.String() {
		t.Errorf("KeyParams = %q, want %q", saved.KeyParams, testParams.String())
	}
	if len(saved.KeySalt) != crypto.SaltSize {
		t.Errorf("KeySalt length = %d, want %d", len(saved.KeySalt), crypto.SaltSize)
	}
	if len(saved.EncryptedKey) != crypto.NonceSize+crypto.KeySize+16 {
		t.Errorf("EncryptedKey length = %d", len(saved.EncryptedKey))
	}
	if bytes.Contains(saved.EncryptedKey, manager.key) {
		t.Error("vault key persisted in plaintext")
	}
	ok, err := newPasswords().VerifyPassword(context.Background(), "correct-horse", saved.PasswordHash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify: ok=%v err=%v", ok, err)
	}

	_, err = manager.Create(context.Background(), Config{Name: "Second"}, "pw")
	if !errors.Is(err, service.ErrAlreadyInitialized) {
		t.Errorf("second Create() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestManager_Create_Validation(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		password  string
		wantField string
	}{
		{name: "empty name", cfg: Config{Name: "  "}, password: "pw", wantField: "name"},
		{name: "empty password", cfg: Config{Name: "Personal"}, password: "", wantField: "master_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockStore := mocks.NewMockVaultStore(ctrl)
			mockStore.EXPECT().GetLatest(gomock.Any()).Return(nil, storage.ErrNotFound)

			manager, err := NewManager(context.Background(), mockStore, newPasswords())
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}

			_, err = manager.Create(context.Background(), tt.cfg, tt.password)
			var ve *service.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.wantField)
			}
			if manager.State() != Uninitialized {
				t.Errorf("State() = %v, want uninitialized", manager.State())
			}
		})
	}
}

func TestManager_Create_StoreConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockVaultStore(ctrl)
	mockStore.EXPECT().GetLatest(gomock.Any()).Return(nil, storage.ErrNotFound)
	mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(storage.ErrConflict)

	manager, err := NewManager(context.Background(), mockStore, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	_, err = manager.Create(context.Background(), Config{Name: "Personal"}, "pw")
	if !errors.Is(err, service.ErrAlreadyInitialized) {
		t.Errorf("Create() error = %v, want ErrAlreadyInitialized", err)
	}
	if manager.State() != Uninitialized {
		t.Errorf("State() = %v, want uninitialized", manager.State())
	}
}

func TestManager_Unlock(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	first, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := first.Create(ctx, Config{Name: "Personal", EncryptionEnabled: true}, "correct-horse"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	originalKey := append([]byte(nil), first.key...)

	// A new session over the same database starts locked.
	second, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if second.State() != Locked {
		t.Fatalf("State() = %v, want locked", second.State())
	}

	if _, err := second.Unlock(ctx, "wrong-horse"); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("Unlock(wrong) error = %v, want ErrAuthentication", err)
	}
	if second.State() != Locked {
		t.Errorf("State() after wrong password = %v, want locked", second.State())
	}

	status, err := second.Unlock(ctx, "correct-horse")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !status.IsInitialized || !status.IsUnlocked || status.Name != "Personal" {
		t.Errorf("Unlock() status = %+v", status)
	}
	if !bytes.Equal(second.key, originalKey) {
		t.Error("Unlock() recovered a different vault key")
	}

	// A wrong password on an unlocked vault is rejected without locking it.
	if _, err := second.Unlock(ctx, "wrong-horse"); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("Unlock(wrong) error = %v, want ErrAuthentication", err)
	}
	if second.State() != Unlocked {
		t.Errorf("State() = %v, want unlocked", second.State())
	}
}

func TestManager_Unlock_AfterParamsChange(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	creator, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := creator.Create(ctx, Config{Name: "Personal"}, "correct-horse"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	originalKey := append([]byte(nil), creator.key...)

	// Later builds derive new keys with stronger settings.
	stronger := crypto.NewService(crypto.Params{Time: 2, Memory: 2048, Threads: 1, KeyLen: 32}, 2)
	reopened, err := NewManager(ctx, store, stronger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := reopened.Unlock(ctx, "correct-horse"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !bytes.Equal(reopened.key, originalKey) {
		t.Error("Unlock() recovered a different vault key")
	}

	// Changing the password re-wraps under the new settings.
	if err := reopened.ChangePassword(ctx, "correct-horse", "battery-staple"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	v, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if v.KeyParams != stronger.Params().String() {
		t.Errorf("KeyParams = %q, want %q", v.KeyParams, stronger.Params().String())
	}

	back, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := back.Unlock(ctx, "battery-staple"); err != nil {
		t.Fatalf("Unlock() with weaker defaults error = %v", err)
	}
	if !bytes.Equal(back.key, originalKey) {
		t.Error("Unlock() recovered a different vault key")
	}
}

func TestManager_Unlock_WithoutStoredParams(t *testing.T) {
	ctx := context.Background()
	passwords := newPasswords()

	hash, err := passwords.HashPassword(ctx, "correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	kek, err := passwords.DeriveKey(ctx, "correct-horse", salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	wrapped, err := crypto.Encrypt(key, kek)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockVaultStore(ctrl)
	mockStore.EXPECT().GetLatest(gomock.Any()).Return(&storage.VaultRecord{
		ID: "v1", Name: "Personal", PasswordHash: hash, KeySalt: salt, EncryptedKey: wrapped,
	}, nil)
	mockStore.EXPECT().CountMemories(gomock.Any(), "v1").Return(3, nil)

	manager, err := NewManager(ctx, mockStore, passwords)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	status, err := manager.Unlock(ctx, "correct-horse")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !status.IsUnlocked || status.MemoryCount != 3 {
		t.Errorf("Unlock() status = %+v", status)
	}
	if !bytes.Equal(manager.key, key) {
		t.Error("Unlock() recovered a different vault key")
	}
}

// countFailingStore fails CountMemories and delegates everything else.
type countFailingStore struct {
	storage.VaultStore
}

func (countFailingStore) CountMemories(context.Context, string) (int, error) {
	return 0, errors.New("disk I/O error")
}

func TestManager_Unlock_CountFailureStaysLocked(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	creator, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := creator.Create(ctx, Config{Name: "Personal"}, "correct-horse"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	manager, err := NewManager(ctx, countFailingStore{VaultStore: store}, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	status, err := manager.Unlock(ctx, "correct-horse")
	var pe *service.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Unlock() error = %v, want PersistenceError", err)
	}
	if status != (Status{}) {
		t.Errorf("Unlock() status = %+v, want zero value on error", status)
	}
	if manager.State() != Locked {
		t.Errorf("State() = %v, want locked", manager.State())
	}
	if manager.key != nil {
		t.Error("Unlock() kept the key after failing")
	}
}

func TestManager_Unlock_Uninitialized(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockVaultStore(ctrl)
	mockStore.EXPECT().GetLatest(gomock.Any()).Return(nil, storage.ErrNotFound)

	manager, err := NewManager(context.Background(), mockStore, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	status, err := manager.Unlock(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if status.IsInitialized || status.IsUnlocked {
		t.Errorf("Unlock() status = %+v, want not initialized", status)
	}
}

func TestManager_Unlock_Corrupted(t *testing.T) {
	ctx := context.Background()
	passwords := newPasswords()

	hash, err := passwords.HashPassword(ctx, "correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	kek, err := passwords.DeriveKey(ctx, "correct-horse", salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	wrapped, err := crypto.Encrypt(key, kek)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	wrapped[len(wrapped)-1] ^= 0x01

	tests := []struct {
		name   string
		record *storage.VaultRecord
	}{
		{
			name:   "tampered wrapped key",
			record: &storage.VaultRecord{ID: "v1", PasswordHash: hash, KeySalt: salt, EncryptedKey: wrapped},
		},
		{
			name:   "malformed password hash",
			record: &storage.VaultRecord{ID: "v1", PasswordHash: "not-a-hash", KeySalt: salt, EncryptedKey: wrapped},
		},
		{
			name:   "malformed key parameters",
			record: &storage.VaultRecord{ID: "v1", PasswordHash: hash, KeySalt: salt, KeyParams: "m=x", EncryptedKey: wrapped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockStore := mocks.NewMockVaultStore(ctrl)
			mockStore.EXPECT().GetLatest(gomock.Any()).Return(tt.record, nil)

			manager, err := NewManager(ctx, mockStore, passwords)
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}

			_, err = manager.Unlock(ctx, "correct-horse")
			if !errors.Is(err, service.ErrCorrupted) {
				t.Errorf("Unlock() error = %v, want ErrCorrupted", err)
			}
			if errors.Is(err, service.ErrAuthentication) {
				t.Error("corruption must be distinguishable from a wrong password")
			}
			if manager.State() != Locked {
				t.Errorf("State() = %v, want locked", manager.State())
			}
		})
	}
}

func TestManager_Lock(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(ctx, newSQLiteStore(t), newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := manager.Lock(ctx); !errors.Is(err, service.ErrNotInitialized) {
		t.Errorf("Lock() on uninitialized error = %v, want ErrNotInitialized", err)
	}

	if _, err := manager.Create(ctx, Config{Name: "Personal"}, "pw"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	key := manager.key

	if err := manager.Lock(ctx); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if manager.State() != Locked {
		t.Errorf("State() = %v, want locked", manager.State())
	}
	if !bytes.Equal(key, make([]byte, len(key))) {
		t.Error("Lock() did not wipe the key")
	}

	if _, err := manager.ActiveVaultID(); !errors.Is(err, service.ErrLocked) {
		t.Errorf("ActiveVaultID() error = %v, want ErrLocked", err)
	}
	err = manager.WithKey(func(string, []byte) error {
		t.Error("WithKey() ran fn while locked")
		return nil
	})
	if !errors.Is(err, service.ErrLocked) {
		t.Errorf("WithKey() error = %v, want ErrLocked", err)
	}

	if err := manager.Lock(ctx); err != nil {
		t.Errorf("Lock() on locked vault error = %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.IsInitialized || status.IsUnlocked {
		t.Errorf("Status() = %+v, want initialized and locked", status)
	}
}

func TestManager_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(ctx, newSQLiteStore(t), newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := manager.Create(ctx, Config{Name: "Personal", Description: "mine"}, "pw"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	work := "Work"
	empty := " "
	desc := "job notes"

	tests := []struct {
		name        string
		setName     *string
		setDesc     *string
		wantName    string
		wantDesc    string
		wantErrType bool
	}{
		{name: "rename only", setName: &work, wantName: "Work", wantDesc: "mine"},
		{name: "description only", setDesc: &desc, wantName: "Work", wantDesc: "job notes"},
		{name: "blank name rejected", setName: &empty, wantErrType: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := manager.UpdateSettings(ctx, tt.setName, tt.setDesc)
			if tt.wantErrType {
				var ve *service.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("UpdateSettings() error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateSettings() error = %v", err)
			}
			if status.Name != tt.wantName || status.Description != tt.wantDesc {
				t.Errorf("UpdateSettings() status = %+v", status)
			}
		})
	}

	if err := manager.Lock(ctx); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := manager.UpdateSettings(ctx, &work, nil); !errors.Is(err, service.ErrLocked) {
		t.Errorf("UpdateSettings() while locked error = %v, want ErrLocked", err)
	}
}

func TestManager_ChangePassword(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	manager, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := manager.Create(ctx, Config{Name: "Personal"}, "old-password"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	originalKey := append([]byte(nil), manager.key...)

	if err := manager.ChangePassword(ctx, "wrong", "new-password"); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("ChangePassword(wrong current) error = %v, want ErrAuthentication", err)
	}
	var ve *service.ValidationError
	if err := manager.ChangePassword(ctx, "old-password", ""); !errors.As(err, &ve) {
		t.Errorf("ChangePassword(empty next) error = %v, want ValidationError", err)
	}

	if err := manager.ChangePassword(ctx, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	reopened, err := NewManager(ctx, store, newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := reopened.Unlock(ctx, "old-password"); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("Unlock(old) error = %v, want ErrAuthentication", err)
	}
	if _, err := reopened.Unlock(ctx, "new-password"); err != nil {
		t.Fatalf("Unlock(new) error = %v", err)
	}
	if !bytes.Equal(reopened.key, originalKey) {
		t.Error("ChangePassword() changed the vault key")
	}

	if err := reopened.Lock(ctx); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := reopened.ChangePassword(ctx, "new-password", "x"); !errors.Is(err, service.ErrLocked) {
		t.Errorf("ChangePassword() while locked error = %v, want ErrLocked", err)
	}
}

func TestManager_ConcurrentLockUnlock(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(ctx, newSQLiteStore(t), newPasswords())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := manager.Create(ctx, Config{Name: "Personal"}, "pw"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = manager.Lock(ctx)
			_, _ = manager.Unlock(ctx, "pw")
		}()
		go func() {
			defer wg.Done()
			_ = manager.WithKey(func(_ string, key []byte) error {
				if len(key) != crypto.KeySize {
					t.Errorf("WithKey() saw key of %d bytes", len(key))
				}
				return nil
			})
		}()
	}
	wg.Wait()

	if _, err := manager.Unlock(ctx, "pw"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if _, err := manager.ActiveVaultID(); err != nil {
		t.Errorf("ActiveVaultID() error = %v", err)
	}
}
