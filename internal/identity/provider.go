// File: internal/identity/provider.go
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Provider error codes, aligned with the identity provider's own
// error vocabulary.
const (
	CodeEmailInUse        = "email-already-in-use"
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodeInvalidCredential = "invalid-credential"
	CodeUserNotFound      = "user-not-found"
	CodeUserDisabled      = "user-disabled"
	CodeTooManyRequests   = "too-many-requests"
	CodeNetwork           = "network"
	CodeCanceled          = "canceled"
	CodeUnknown           = "unknown"
)

// Error is a typed identity provider error.
type Error struct {
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("identity: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("identity: %s", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed identity error.
func NewError(code, detail string, err error) *Error {
	return &Error{Code: code, Detail: detail, Err: err}
}

// CodeOf extracts the provider error code from err, or CodeUnknown.
func CodeOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return CodeUnknown
}

// Provider is the identity provider capability. Implementations exchange
// credentials for Principals and own the notion of a current session.
type Provider interface {
	// SignInWithCredential exchanges any credential variant for a
	// Principal and makes it the current one.
	SignInWithCredential(ctx context.Context, cred Credential) (*Principal, error)
	// SignUpWithPassword creates a new email/password account. The new
	// Principal becomes the current one until SignOut.
	SignUpWithPassword(ctx context.Context, email, password string) (*Principal, error)
	// SendPasswordReset triggers a password-reset email.
	SendPasswordReset(ctx context.Context, email string) error
	// SignOut tears the current session down. It never fails the
	// session; remote teardown errors are logged by implementations.
	SignOut(ctx context.Context) error
	// CurrentPrincipal returns the current Principal, or nil when
	// nobody is signed in.
	CurrentPrincipal(ctx context.Context) (*Principal, error)
	// DeleteAccount removes the identity account. Used as compensation
	// when provisioning fails right after signup.
	DeleteAccount(ctx context.Context, principalID string) error
}
