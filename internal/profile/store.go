// File: internal/profile/store.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StoreErrorKind classifies profile store failures.
type StoreErrorKind string

const (
	StorePermission StoreErrorKind = "permission-denied"
	StoreOffline    StoreErrorKind = "offline"
	StoreUnknown    StoreErrorKind = "unknown"
)

// StoreError is a typed profile store failure. Absent documents are
// reported as common.ErrNotFound, not as a StoreError.
type StoreError struct {
	Kind   StoreErrorKind
	Detail string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("profile store: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("profile store: %s", e.Kind)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// StoreKindOf extracts the store error kind from err, or StoreUnknown.
func StoreKindOf(err error) StoreErrorKind {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return StoreUnknown
}

// Store is the profile document store capability, keyed by Principal id.
type Store interface {
	// Get fetches a document by id; common.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Document, error)
	// Set writes the full document.
	Set(ctx context.Context, id string, doc *Document) error
	// UpdateIntereses overwrites only the intereses field.
	UpdateIntereses(ctx context.Context, id string, intereses []string) error
	// FindByHandle returns the first document with the given
	// nombreUsuario; common.ErrNotFound when no document matches.
	FindByHandle(ctx context.Context, handle string) (*Document, error)
	// Delete removes a document. Deleting an absent document is not an
	// error.
	Delete(ctx context.Context, id string) error
	// ListGuestsBefore returns ids of guest documents registered before
	// the cutoff.
	ListGuestsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}
