// Package gate decides whether an anonymous caller may have a secret
// decrypted for them. Three layers are checked in order, short-circuiting on
// the first failure: the trip must be active, the phone must belong to a
// registered sitter with vault access, and the sitter must hold a live
// verified PIN session. Cheapest and least sensitive checks run first so no
// decryption work happens for doomed requests and nothing about secret
// contents can leak before authorization completes.
package gate

import (
	"strings"
	"time"

	"github.com/maribelle/sitterlink/internal/pin"
)

// Reason identifies which layer denied access. The values are rendered
// verbatim to the caller; they classify the failure without revealing more.
type Reason string

const (
	ReasonAllowed           Reason = "OK"
	ReasonTripInactive      Reason = "TRIP_INACTIVE"
	ReasonNotRegistered     Reason = "NOT_REGISTERED"
	ReasonVaultAccessDenied Reason = "VAULT_ACCESS_DENIED"
	ReasonNotVerified       Reason = "NOT_VERIFIED"
)

// TripState is the snapshot of a trip that the gate needs.
type TripState struct {
	Found      bool
	PropertyID uint64
	Active     bool
}

// SitterState is the snapshot of the sitter record matched by phone.
// A nil *SitterState means no sitter on the trip has the caller's number.
type SitterState struct {
	Name        string
	VaultAccess bool
}

// Evaluate runs the full three-layer check. The verification snapshot may be
// nil when no pending_verifications row exists for (trip, phone).
func Evaluate(trip TripState, sitter *SitterState, verif *pin.Challenge, now time.Time) Reason {
	if r := EvaluateIssue(trip, sitter); r != ReasonAllowed {
		return r
	}
	if !pin.SessionValid(verif, now) {
		return ReasonNotVerified
	}
	return ReasonAllowed
}

// EvaluateIssue runs only the first two layers. Issuing a code has the same
// preconditions as revealing a secret except that no verified session exists
// yet, so code issuance reuses this prefix of the gate.
func EvaluateIssue(trip TripState, sitter *SitterState) Reason {
	if !trip.Found || !trip.Active {
		return ReasonTripInactive
	}
	if sitter == nil {
		return ReasonNotRegistered
	}
	if !sitter.VaultAccess {
		return ReasonVaultAccessDenied
	}
	return ReasonAllowed
}

// NormalizePhone reduces a phone number to bare digits for comparison:
// strip every non-digit, then drop a leading country-code 1 from 11-digit
// numbers. "+1 (303) 555-0101", "13035550101" and "303-555-0101" all
// normalize to "3035550101".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
