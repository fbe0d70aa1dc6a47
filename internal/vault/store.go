package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

// NonceSize and TagSize are fixed by AES-GCM: a 96-bit nonce and a 128-bit
// authentication tag. They are stored as separate columns so the persisted
// layout is explicit about what each part is.
const (
	NonceSize = 12
	TagSize   = 16
)

// ErrIntegrity is returned when a blob fails authentication under every
// available key. It means either the wrong key is configured or the stored
// data was tampered with; in both cases the plaintext is unrecoverable and
// the failure must surface as an error, never as garbled output.
var ErrIntegrity = errors.New("vault: integrity check failed")

// EncryptedBlob is the opaque at-rest form of a secret value: nonce,
// ciphertext and authentication tag from a single AES-GCM seal operation.
// A SecretRecord never stores anything but this.
type EncryptedBlob struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Store performs symmetric encryption and decryption of individual secret
// values under an immutable Keyset.
type Store struct {
	keys Keyset
}

// NewStore returns a Store bound to the given keyset.
func NewStore(keys Keyset) *Store {
	return &Store{keys: keys}
}

// Encrypt seals plaintext under the current key with a fresh random nonce.
// Nonces are never reused for a given key: 96 random bits per call from
// crypto/rand.
func (s *Store) Encrypt(plaintext []byte) (EncryptedBlob, error) {
	aead, err := newAEAD(s.keys.Current)
	if err != nil {
		return EncryptedBlob{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedBlob{}, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	// Seal appends the tag to the ciphertext; split it back out so the two
	// are persisted as distinct columns.
	split := len(sealed) - TagSize
	return EncryptedBlob{
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens a blob, trying the current key first and the previous key
// (if one is configured) on integrity failure. Any other outcome than a
// clean authentication under one of the keys is reported as ErrIntegrity;
// partially decrypted output is never returned.
func (s *Store) Decrypt(blob EncryptedBlob) ([]byte, error) {
	pt, err := open(s.keys.Current, blob)
	if err == nil {
		return pt, nil
	}
	if s.keys.Previous != nil {
		if pt, err := open(s.keys.Previous, blob); err == nil {
			return pt, nil
		}
	}
	return nil, ErrIntegrity
}

// NeedsReencrypt reports whether a blob is readable only under the previous
// key. The rotation job uses it to skip rows already on the current key.
func (s *Store) NeedsReencrypt(blob EncryptedBlob) bool {
	if s.keys.Previous == nil {
		return false
	}
	if _, err := open(s.keys.Current, blob); err == nil {
		return false
	}
	_, err := open(s.keys.Previous, blob)
	return err == nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func open(key []byte, blob EncryptedBlob) ([]byte, error) {
	if len(blob.Nonce) != NonceSize || len(blob.Tag) != TagSize {
		return nil, ErrIntegrity
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(blob.Ciphertext)+TagSize)
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)
	pt, err := aead.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return pt, nil
}
