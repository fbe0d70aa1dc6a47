// Package pin implements the phone-possession challenge: a short-lived
// 6-digit code texted to a sitter's registered number. Only a salted hash of
// the code is ever stored. The lifecycle per (trip, phone) is
// NONE -> PENDING -> {EXPIRED | LOCKED | VERIFIED}: a pending code is good
// for ten minutes and three attempts; a successful verification promotes the
// record to verified for twenty-four hours so the sitter can re-open the
// vault during a stay without a new text.
package pin

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"
)

const (
	// PendingTTL bounds how long an unverified code stays usable.
	PendingTTL = 10 * time.Minute
	// VerifiedTTL is the extended lifetime granted on successful verification.
	VerifiedTTL = 24 * time.Hour
	// MaxAttempts is the number of wrong guesses before the record locks.
	MaxAttempts = 3
	// SaltSize is the per-code salt length in bytes.
	SaltSize = 16

	codeDigits = 6
	codeSpace  = 1000000
)

// Challenge is a snapshot of one pending_verifications row. The verify
// decision is a pure function over this snapshot so it can be tested without
// a datastore; the caller applies the resulting state change.
type Challenge struct {
	CodeHash  []byte
	Salt      []byte
	ExpiresAt time.Time
	Attempts  int
	Verified  bool
}

// VerifyResult classifies the outcome of a verification attempt.
type VerifyResult int

const (
	// VerifyOK: the code matched; promote the record to verified and extend
	// its expiry to now + VerifiedTTL.
	VerifyOK VerifyResult = iota
	// VerifyNotFound: no live pending record. Also returned for an
	// already-verified record; verification is one-shot per issuance.
	VerifyNotFound
	// VerifyExpired: the pending window has passed. The caller must delete
	// the record so a stale guessable hash is not left around.
	VerifyExpired
	// VerifyMaxAttempts: the record is locked. It stays in place, terminal.
	VerifyMaxAttempts
	// VerifyInvalid: wrong code. The caller increments the attempt counter.
	VerifyInvalid
)

// Code returns the reason string rendered to the sitter for a failed result.
func (r VerifyResult) Code() string {
	switch r {
	case VerifyNotFound:
		return "NOT_FOUND"
	case VerifyExpired:
		return "EXPIRED"
	case VerifyMaxAttempts:
		return "MAX_ATTEMPTS"
	case VerifyInvalid:
		return "INVALID_PIN"
	}
	return "OK"
}

// Evaluate decides the outcome of verifying code against a challenge
// snapshot at the given instant. A nil challenge means no record exists.
// The code is usable strictly before ExpiresAt (the window is half-open,
// matching SessionValid). Check order matters: expiry before the attempt
// counter, so a locked but expired record still reads as expired and gets
// cleaned up.
func Evaluate(ch *Challenge, code string, now time.Time) VerifyResult {
	if ch == nil || ch.Verified {
		return VerifyNotFound
	}
	if !now.Before(ch.ExpiresAt) {
		return VerifyExpired
	}
	if ch.Attempts >= MaxAttempts {
		return VerifyMaxAttempts
	}
	if !bytes.Equal(HashCode(code, ch.Salt), ch.CodeHash) {
		return VerifyInvalid
	}
	return VerifyOK
}

// SessionValid reports whether a challenge snapshot represents a live
// verified session usable for decrypt calls.
func SessionValid(ch *Challenge, now time.Time) bool {
	return ch != nil && ch.Verified && now.Before(ch.ExpiresAt)
}

// GenerateCode returns a uniformly random 6-digit code, zero-padded.
// crypto/rand.Int guarantees uniformity over the full 000000–999999 space.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// NewSalt returns a fresh random salt for one issuance.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HashCode computes SHA-256(code || salt). The plaintext code exists only in
// the SMS message; storage sees this digest and the salt.
func HashCode(code string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(code))
	h.Write(salt)
	return h.Sum(nil)
}
