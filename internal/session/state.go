// File: internal/session/state.go
package session

import (
	"redsocial_backend/internal/identity"
)

// Status enumerates the session state machine phases.
type Status string

const (
	StatusInitial               Status = "initial"
	StatusLoading               Status = "loading"
	StatusUnauthenticated       Status = "unauthenticated"
	StatusSuccess               Status = "success"
	StatusNeedsIntereses        Status = "needs_intereses"
	StatusGuest                 Status = "guest"
	StatusRegistrationCompleted Status = "registration_completed"
	StatusError                 Status = "error"
)

// State is the session state machine's current value. Transient, held
// only in memory; re-derived at startup from the identity provider's
// current principal plus a profile lookup.
type State struct {
	Status    Status
	Principal *identity.Principal
	// Message carries the human-readable error for StatusError. It is
	// never used for control flow.
	Message string
}

// Authenticated reports whether the state holds a signed-in principal.
func (s State) Authenticated() bool {
	switch s.Status {
	case StatusSuccess, StatusNeedsIntereses, StatusGuest:
		return s.Principal != nil
	default:
		return false
	}
}
