package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a memory or vault does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record with the same ID already exists.
	ErrConflict = errors.New("already exists")
	// ErrAuthentication is returned when the master password is wrong.
	ErrAuthentication = errors.New("authentication failed")
	// ErrLocked is returned when an operation needs an unlocked vault.
	ErrLocked = errors.New("vault is locked")
	// ErrNotInitialized is returned when no vault has been created yet.
	ErrNotInitialized = errors.New("vault is not initialized")
	// ErrAlreadyInitialized is returned when creating a vault while one exists.
	ErrAlreadyInitialized = errors.New("vault is already initialized")
	// ErrCorrupted is returned when stored data fails authentication even
	// though the password was accepted.
	ErrCorrupted = errors.New("vault data is corrupted")
	// ErrExternalService is returned when the embeddings server fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// PersistenceError wraps a storage failure with the operation that caused it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err in a PersistenceError. It returns nil for a nil error.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
