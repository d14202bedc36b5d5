// File: internal/profile/provisioner.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"redsocial_backend/internal/common"
	"redsocial_backend/internal/config"
	"redsocial_backend/internal/identity"
)

// ProvisionErrorKind classifies provisioning failures.
type ProvisionErrorKind string

const (
	ProvisionPermission      ProvisionErrorKind = "permission-denied"
	ProvisionOffline         ProvisionErrorKind = "offline"
	ProvisionHandleExhausted ProvisionErrorKind = "handle-exhausted"
	ProvisionUnknown         ProvisionErrorKind = "unknown"
)

// ProvisionError is a typed provisioning failure. The provisioner never
// retries; retry policy belongs to the caller.
type ProvisionError struct {
	Kind   ProvisionErrorKind
	Detail string
	Err    error
}

func (e *ProvisionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("provision: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("provision: %s", e.Kind)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// ProvisionKindOf extracts the provisioning error kind from err, or
// ProvisionUnknown.
func ProvisionKindOf(err error) ProvisionErrorKind {
	var provErr *ProvisionError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return ProvisionUnknown
}

// Seed carries the caller-supplied profile fields for first-time
// provisioning. Handle is the base handle candidate; when empty it is
// derived from the principal's email local part or id prefix.
type Seed struct {
	Handle          string
	NombreCompleto  string
	FechaNacimiento string
	Genero          string
	Biografia       string
	EsInvitado      bool
}

// Provisioner ensures a profile document exists with a globally unique
// handle after any successful credential exchange.
type Provisioner struct {
	store    Store
	probeCap int
	logger   *zap.Logger
	now      func() time.Time
}

// NewProvisioner creates a profile provisioner.
func NewProvisioner(store Store, cfg *config.Config, logger *zap.Logger) *Provisioner {
	probeCap := cfg.HandleProbeCap
	if probeCap <= 0 {
		probeCap = 1000
	}
	return &Provisioner{
		store:    store,
		probeCap: probeCap,
		logger:   logger.Named("Provisioner"),
		now:      time.Now,
	}
}

// EnsureProfile looks a profile up by principal id and creates it when
// absent. The returned bool reports whether a document was created.
// Existing documents are returned as-is, without mutation, so repeated
// logins are idempotent.
func (p *Provisioner) EnsureProfile(ctx context.Context, principal *identity.Principal, seed Seed) (*Document, bool, error) {
	existing, err := p.store.Get(ctx, principal.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		p.logger.Error("Profile lookup failed", zap.String("uid", principal.ID), zap.Error(err))
		return nil, false, p.wrapStoreErr(err, "profile lookup failed")
	}

	handle, err := p.uniqueHandle(ctx, baseHandle(principal, seed))
	if err != nil {
		return nil, false, err
	}

	doc := &Document{
		ID:              principal.ID,
		Email:           principal.Email,
		NombreCompleto:  seedOr(seed.NombreCompleto, principal.DisplayName),
		NombreUsuario:   handle,
		FechaNacimiento: seed.FechaNacimiento,
		Genero:          seed.Genero,
		PhotoURL:        principal.PhotoURL,
		Biografia:       seed.Biografia,
		Intereses:       []string{},
		FechaRegistro:   p.now(),
		EsInvitado:      seed.EsInvitado,
	}

	if err := p.store.Set(ctx, principal.ID, doc); err != nil {
		p.logger.Error("Profile write failed", zap.String("uid", principal.ID), zap.Error(err))
		return nil, false, p.wrapStoreErr(err, "profile write failed")
	}

	p.logger.Info("Profile provisioned",
		zap.String("uid", principal.ID),
		zap.String("handle", handle),
		zap.Bool("guest", seed.EsInvitado))
	return doc, true, nil
}

// uniqueHandle probes the store for the base candidate and appends an
// incrementing numeric suffix on collision (name, name1, name2, ...).
// The probe loop is bounded to keep worst-case latency in check.
func (p *Provisioner) uniqueHandle(ctx context.Context, base string) (string, error) {
	candidate := base
	for attempt := 0; attempt < p.probeCap; attempt++ {
		_, err := p.store.FindByHandle(ctx, candidate)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return candidate, nil
			}
			p.logger.Error("Handle probe failed", zap.String("candidate", candidate), zap.Error(err))
			return "", p.wrapStoreErr(err, "handle probe failed")
		}
		candidate = base + strconv.Itoa(attempt+1)
	}
	return "", &ProvisionError{
		Kind:   ProvisionHandleExhausted,
		Detail: fmt.Sprintf("no free handle for %q within %d probes", base, p.probeCap),
	}
}

// baseHandle picks the handle candidate: the explicit seed handle for
// email signups, the email local part for OAuth signups, and an id
// prefix as last resort. The candidate is stripped of '@' and '.'.
func baseHandle(principal *identity.Principal, seed Seed) string {
	base := seed.Handle
	if base == "" && principal.Email != "" {
		base = principal.Email
		if at := strings.Index(base, "@"); at > 0 {
			base = base[:at]
		}
	}
	if base == "" {
		base = principal.ID
		if len(base) > 8 {
			base = base[:8]
		}
	}
	base = strings.ReplaceAll(base, "@", "")
	base = strings.ReplaceAll(base, ".", "")
	return base
}

func seedOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func (p *Provisioner) wrapStoreErr(err error, detail string) error {
	switch StoreKindOf(err) {
	case StorePermission:
		return &ProvisionError{Kind: ProvisionPermission, Detail: detail, Err: err}
	case StoreOffline:
		return &ProvisionError{Kind: ProvisionOffline, Detail: detail, Err: err}
	default:
		return &ProvisionError{Kind: ProvisionUnknown, Detail: detail, Err: err}
	}
}
