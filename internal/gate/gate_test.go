package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maribelle/sitterlink/internal/pin"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"3035550101":        "3035550101",
		"303-555-0101":      "3035550101",
		"(303) 555-0101":    "3035550101",
		"+1 (303) 555-0101": "3035550101",
		"13035550101":       "3035550101",
		"+44 20 7946 0958":  "442079460958", // 12 digits, leading 1 rule does not apply
		"1234567":           "1234567",      // 7 digits, leading 1 kept
		"":                  "",
		"abc":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), "input %q", in)
	}
}

// validFixture returns a state where all three layers pass, so each test
// can break exactly one layer and hold the other two valid.
func validFixture(now time.Time) (TripState, *SitterState, *pin.Challenge) {
	trip := TripState{Found: true, PropertyID: 7, Active: true}
	sitter := &SitterState{Name: "Alex", VaultAccess: true}
	verif := &pin.Challenge{Verified: true, ExpiresAt: now.Add(12 * time.Hour)}
	return trip, sitter, verif
}

func TestEvaluateAllLayersPass(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trip, sitter, verif := validFixture(now)
	assert.Equal(t, ReasonAllowed, Evaluate(trip, sitter, verif, now))
}

func TestEvaluateEachLayerIndependently(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("trip missing", func(t *testing.T) {
		_, sitter, verif := validFixture(now)
		assert.Equal(t, ReasonTripInactive, Evaluate(TripState{}, sitter, verif, now))
	})

	t.Run("trip not active", func(t *testing.T) {
		trip, sitter, verif := validFixture(now)
		trip.Active = false
		assert.Equal(t, ReasonTripInactive, Evaluate(trip, sitter, verif, now))
	})

	t.Run("sitter not registered", func(t *testing.T) {
		trip, _, verif := validFixture(now)
		assert.Equal(t, ReasonNotRegistered, Evaluate(trip, nil, verif, now))
	})

	t.Run("vault access not granted", func(t *testing.T) {
		trip, sitter, verif := validFixture(now)
		sitter.VaultAccess = false
		// PIN state is irrelevant when the permission is off.
		assert.Equal(t, ReasonVaultAccessDenied, Evaluate(trip, sitter, verif, now))
	})

	t.Run("no verification record", func(t *testing.T) {
		trip, sitter, _ := validFixture(now)
		assert.Equal(t, ReasonNotVerified, Evaluate(trip, sitter, nil, now))
	})

	t.Run("verification pending but not verified", func(t *testing.T) {
		trip, sitter, verif := validFixture(now)
		verif.Verified = false
		assert.Equal(t, ReasonNotVerified, Evaluate(trip, sitter, verif, now))
	})

	t.Run("verified session expired", func(t *testing.T) {
		trip, sitter, verif := validFixture(now)
		assert.Equal(t, ReasonNotVerified, Evaluate(trip, sitter, verif, now.Add(13*time.Hour)))
	})
}

func TestEvaluateIssueStopsBeforeVerificationLayer(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trip, sitter, _ := validFixture(now)

	// Issuing a code needs no existing verification.
	assert.Equal(t, ReasonAllowed, EvaluateIssue(trip, sitter))

	assert.Equal(t, ReasonTripInactive, EvaluateIssue(TripState{}, sitter))
	assert.Equal(t, ReasonNotRegistered, EvaluateIssue(trip, nil))
	sitter.VaultAccess = false
	assert.Equal(t, ReasonVaultAccessDenied, EvaluateIssue(trip, sitter))
}

// Full happy-path sequence over the pure state: issue, verify, then reveal
// 23 hours later without a new code.
func TestVerifiedSessionSpansAStay(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trip := TripState{Found: true, PropertyID: 7, Active: true}
	sitter := &SitterState{Name: "Alex", VaultAccess: true}

	assert.Equal(t, ReasonAllowed, EvaluateIssue(trip, sitter))

	salt, err := pin.NewSalt()
	assert.NoError(t, err)
	ch := &pin.Challenge{
		CodeHash:  pin.HashCode("738291", salt),
		Salt:      salt,
		ExpiresAt: now.Add(pin.PendingTTL),
	}
	assert.Equal(t, pin.VerifyOK, pin.Evaluate(ch, "738291", now))

	// Promotion, as the handler would apply it.
	ch.Verified = true
	ch.ExpiresAt = now.Add(pin.VerifiedTTL)

	later := now.Add(23 * time.Hour)
	assert.Equal(t, ReasonAllowed, Evaluate(trip, sitter, ch, later))
}
