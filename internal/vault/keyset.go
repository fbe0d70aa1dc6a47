// Package vault implements encryption at rest for owner-authored secrets
// (door codes, alarm codes, WiFi passwords). Values are sealed with
// AES-256-GCM under a process-wide key loaded from configuration at startup.
// During a key rotation window a second, previous key may be present;
// decryption then falls back to it when the current key fails to
// authenticate, and a batch job re-encrypts every stored blob under the
// current key so the previous one can be retired.
package vault

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// ErrBadKey is returned when a configured key does not decode to exactly
// KeySize bytes. Callers are expected to treat this as fatal at startup.
var ErrBadKey = errors.New("vault: key must be 32 bytes of hex")

// Keyset carries the current encryption key and, during a rotation window,
// the previous one. The zero Previous slice means no rotation is in
// progress. A Keyset is immutable after construction; it is built once in
// main and passed explicitly to the store.
type Keyset struct {
	Current  []byte
	Previous []byte
}

// LoadKeyset parses the hex-encoded keys from configuration. currentHex is
// required; previousHex may be empty. Each key must decode to exactly 32
// bytes, anything else is a configuration mistake and is rejected so the
// process fails fast instead of silently encrypting under a truncated key.
func LoadKeyset(currentHex, previousHex string) (Keyset, error) {
	cur, err := parseKey(currentHex)
	if err != nil {
		return Keyset{}, fmt.Errorf("VAULT_KEY: %w", err)
	}
	ks := Keyset{Current: cur}
	if previousHex != "" {
		prev, err := parseKey(previousHex)
		if err != nil {
			return Keyset{}, fmt.Errorf("VAULT_KEY_PREVIOUS: %w", err)
		}
		ks.Previous = prev
	}
	return ks, nil
}

func parseKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrBadKey
	}
	if len(b) != KeySize {
		return nil, ErrBadKey
	}
	return b, nil
}
