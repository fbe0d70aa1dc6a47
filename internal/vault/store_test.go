package vault

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKeyHex(t *testing.T) string {
	t.Helper()
	b := make([]byte, KeySize)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return hex.EncodeToString(b)
}

func TestLoadKeyset(t *testing.T) {
	cur := randomKeyHex(t)
	prev := randomKeyHex(t)

	t.Run("current only", func(t *testing.T) {
		ks, err := LoadKeyset(cur, "")
		require.NoError(t, err)
		assert.Len(t, ks.Current, KeySize)
		assert.Nil(t, ks.Previous)
	})

	t.Run("current and previous", func(t *testing.T) {
		ks, err := LoadKeyset(cur, prev)
		require.NoError(t, err)
		assert.Len(t, ks.Current, KeySize)
		assert.Len(t, ks.Previous, KeySize)
	})

	t.Run("rejects short key", func(t *testing.T) {
		_, err := LoadKeyset(strings.Repeat("ab", 16), "")
		assert.ErrorIs(t, err, ErrBadKey)
	})

	t.Run("rejects non-hex key", func(t *testing.T) {
		_, err := LoadKeyset(strings.Repeat("zz", KeySize), "")
		assert.ErrorIs(t, err, ErrBadKey)
	})

	t.Run("rejects bad previous key", func(t *testing.T) {
		_, err := LoadKeyset(cur, "abcd")
		assert.ErrorIs(t, err, ErrBadKey)
	})
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ks, err := LoadKeyset(randomKeyHex(t), "")
	require.NoError(t, err)
	return NewStore(ks)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	s := newTestStore(t)

	for _, plaintext := range []string{"", "1234", "hunter2", "wifi: Maple-Guest / correct horse battery staple"} {
		blob, err := s.Encrypt([]byte(plaintext))
		require.NoError(t, err)
		assert.Len(t, blob.Nonce, NonceSize)
		assert.Len(t, blob.Tag, TagSize)

		got, err := s.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(got))
	}
}

func TestEncryptFreshNoncePerCall(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Encrypt([]byte("door 4411"))
	require.NoError(t, err)
	b, err := s.Encrypt([]byte("door 4411"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptTamperFailsClosed(t *testing.T) {
	s := newTestStore(t)
	blob, err := s.Encrypt([]byte("alarm 9921"))
	require.NoError(t, err)

	flip := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[0] ^= 0x01
		return out
	}

	cases := map[string]EncryptedBlob{
		"ciphertext bit flipped": {Nonce: blob.Nonce, Ciphertext: flip(blob.Ciphertext), Tag: blob.Tag},
		"tag bit flipped":        {Nonce: blob.Nonce, Ciphertext: blob.Ciphertext, Tag: flip(blob.Tag)},
		"nonce bit flipped":      {Nonce: flip(blob.Nonce), Ciphertext: blob.Ciphertext, Tag: blob.Tag},
		"truncated nonce":        {Nonce: blob.Nonce[:4], Ciphertext: blob.Ciphertext, Tag: blob.Tag},
	}
	for name, tampered := range cases {
		t.Run(name, func(t *testing.T) {
			pt, err := s.Decrypt(tampered)
			assert.ErrorIs(t, err, ErrIntegrity)
			assert.Nil(t, pt)
		})
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)

	blob, err := a.Encrypt([]byte("gate 0000"))
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestDecryptFallsBackToPreviousKey(t *testing.T) {
	oldHex := randomKeyHex(t)
	newHex := randomKeyHex(t)

	oldKS, err := LoadKeyset(oldHex, "")
	require.NoError(t, err)
	oldStore := NewStore(oldKS)

	blob, err := oldStore.Encrypt([]byte("safe 36-24-36"))
	require.NoError(t, err)

	// Rotation window: new key current, old key previous.
	rotKS, err := LoadKeyset(newHex, oldHex)
	require.NoError(t, err)
	rotStore := NewStore(rotKS)

	got, err := rotStore.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "safe 36-24-36", string(got))

	assert.True(t, rotStore.NeedsReencrypt(blob))

	// Re-encrypted under the current key: readable without the previous key.
	reblob, err := rotStore.Encrypt(got)
	require.NoError(t, err)
	assert.False(t, rotStore.NeedsReencrypt(reblob))

	newOnly, err := LoadKeyset(newHex, "")
	require.NoError(t, err)
	got2, err := NewStore(newOnly).Decrypt(reblob)
	require.NoError(t, err)
	assert.Equal(t, "safe 36-24-36", string(got2))
}
