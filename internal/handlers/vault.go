package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vault_service.go -package=mocks human-api/internal/handlers VaultService

import (
	"context"
	"net/http"

	"human-api/internal/contextutil"
	"human-api/internal/vault"
)

// VaultService is the vault lifecycle as seen by the HTTP layer.
type VaultService interface {
	StateReporter
	Status(ctx context.Context) (vault.Status, error)
	Create(ctx context.Context, cfg vault.Config, masterPassword string) (vault.Status, error)
	Unlock(ctx context.Context, masterPassword string) (vault.Status, error)
	Lock(ctx context.Context) error
	UpdateSettings(ctx context.Context, name, description *string) (vault.Status, error)
	ChangePassword(ctx context.Context, current, next string) error
}

// VaultHandler handles HTTP requests for the vault lifecycle.
type VaultHandler struct {
	vaults VaultService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaults VaultService) *VaultHandler {
	return &VaultHandler{vaults: vaults}
}

// CreateVaultRequest represents the body of a vault creation request.
//
// swagger:model CreateVaultRequest
type CreateVaultRequest struct {
	// Display name of the vault
	// required: true
	Name string `json:"name"`

	// Optional free-form description
	Description string `json:"description,omitempty"`

	// Master password protecting the vault key
	// required: true
	MasterPassword string `json:"master_password"`

	// Whether content encryption is enabled. Defaults to true.
	EncryptionEnabled *bool `json:"encryption_enabled,omitempty"`
}

// UnlockRequest represents the body of an unlock request.
//
// swagger:model UnlockRequest
type UnlockRequest struct {
	// required: true
	MasterPassword string `json:"master_password"`
}

// UpdateSettingsRequest represents a partial update of vault settings.
// Omitted fields are left unchanged.
//
// swagger:model UpdateSettingsRequest
type UpdateSettingsRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ChangePasswordRequest represents the body of a password change request.
//
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	// required: true
	CurrentPassword string `json:"current_password"`

	// required: true
	NewPassword string `json:"new_password"`
}

// Status reports whether a vault exists and whether it is unlocked.
//
// swagger:route GET /api/vault/status vault vaultStatus
//
// # Vault status
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Current vault status
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *VaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.vaults.Status(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to read vault status")
		return
	}
	writeJSON(ctx, w, http.StatusOK, status)
}

// Create initializes the vault and leaves it unlocked.
//
// swagger:route POST /api/vault vault createVault
//
// # Create vault
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'201':
//	  description: Vault created and unlocked
//	'400':
//	  description: Invalid request
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'409':
//	  description: A vault already exists
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateVaultRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	cfg := vault.Config{
		Name:              req.Name,
		Description:       req.Description,
		EncryptionEnabled: true,
	}
	if req.EncryptionEnabled != nil {
		cfg.EncryptionEnabled = *req.EncryptionEnabled
	}

	status, err := h.vaults.Create(ctx, cfg, req.MasterPassword)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to create vault")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, status)
}

// Unlock loads the vault key using the master password.
//
// swagger:route POST /api/vault/unlock vault unlockVault
//
// # Unlock vault
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Vault status after the attempt
//	'401':
//	  description: Wrong master password
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *VaultHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	status, err := h.vaults.Unlock(ctx, req.MasterPassword)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to unlock vault")
		return
	}
	writeJSON(ctx, w, http.StatusOK, status)
}

// Lock drops the vault key from memory.
func (h *VaultHandler) Lock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.vaults.Lock(ctx); err != nil {
		handleServiceError(ctx, w, err, "Failed to lock vault")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "vault locked via api")
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSettings changes the vault name or description.
func (h *VaultHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	status, err := h.vaults.UpdateSettings(ctx, req.Name, req.Description)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to update vault settings")
		return
	}
	writeJSON(ctx, w, http.StatusOK, status)
}

// ChangePassword re-wraps the vault key under a new master password.
func (h *VaultHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(ctx, w, err, "")
		return
	}

	if err := h.vaults.ChangePassword(ctx, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(ctx, w, err, "Failed to change master password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
