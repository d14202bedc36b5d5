// File: internal/profile/gate.go
package profile

// Decision is the onboarding gate outcome.
type Decision int

const (
	// NeedsIntereses means the session must route through interest
	// selection before it is complete.
	NeedsIntereses Decision = iota
	// Complete means the profile has enough interests selected.
	Complete
)

func (d Decision) String() string {
	if d == Complete {
		return "complete"
	}
	return "needs-intereses"
}

// Gate decides whether a profile has finished onboarding. It is the
// single source of truth for that decision: a missing document or fewer
// than min interests means interest selection is still pending.
func Gate(doc *Document, min int) Decision {
	if min < 1 {
		min = 1
	}
	if doc == nil || len(doc.Intereses) < min {
		return NeedsIntereses
	}
	return Complete
}
