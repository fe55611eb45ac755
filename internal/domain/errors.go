package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDecode     = errors.New("cannot decode image")
	ErrUpload     = errors.New("blob upload failed")
	ErrValidation = errors.New("validation failed")
	ErrStore      = errors.New("store operation failed")

	ErrImageNotFound = fmt.Errorf("image %w", ErrNotFound)
	ErrBlobNotFound  = fmt.Errorf("blob %w", ErrNotFound)

	// ErrPartialDelete means the record is gone but its blob is still in storage.
	ErrPartialDelete = fmt.Errorf("%w: image record deleted but blob removal failed", ErrStore)
)

// Validationf builds an ErrValidation with a field-level message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StoreError wraps a backend failure so it matches ErrStore while keeping
// the driver error in the chain.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
