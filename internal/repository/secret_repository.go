package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maribelle/sitterlink/internal/vault"
)

// Secret categories form a closed set; anything else is rejected at the
// authoring endpoint.
var secretCategories = map[string]bool{
	"door_code":        true,
	"alarm_code":       true,
	"wifi":             true,
	"gate_code":        true,
	"garage_code":      true,
	"safe_combination": true,
	"custom":           true,
}

// ValidCategory reports whether cat is one of the allowed secret categories.
func ValidCategory(cat string) bool { return secretCategories[cat] }

// SecretItem mirrors the `secrets` table. The value column trio
// (nonce, ciphertext, tag) is the at-rest form produced by the vault store;
// a secret never has a plaintext value field in storage. Label and
// instructions are owner-visible metadata and may be edited without
// touching the blob.
type SecretItem struct {
	ID           uint64  // secrets.id
	PropertyID   uint64  // secrets.property_id
	Category     string  // secrets.category
	Label        string  // secrets.label
	Instructions *string // secrets.instructions (nullable)
	Nonce        []byte  // secrets.nonce
	Ciphertext   []byte  // secrets.ciphertext
	Tag          []byte  // secrets.tag
	SortOrder    uint32  // secrets.sort_order
}

// Blob reassembles the stored columns into an EncryptedBlob for decryption.
func (s *SecretItem) Blob() vault.EncryptedBlob {
	return vault.EncryptedBlob{Nonce: s.Nonce, Ciphertext: s.Ciphertext, Tag: s.Tag}
}

// ErrSecretNotFound is returned when a secret cannot be found.
var ErrSecretNotFound = errors.New("secret not found")

// SecretRepo encapsulates database queries for encrypted secrets.
type SecretRepo struct {
	db *sql.DB
}

// NewSecretRepo constructs a SecretRepo with the provided DB handle.
func NewSecretRepo(db *sql.DB) *SecretRepo { return &SecretRepo{db: db} }

const secretColumns = `id, property_id, category, label, instructions,
	nonce, ciphertext, tag, sort_order`

// Create inserts a new secret. The caller must have encrypted the value
// already; plaintext never reaches this layer. On success the ID field is
// populated with the auto-generated value.
func (r *SecretRepo) Create(ctx context.Context, s *SecretItem) error {
	const q = `INSERT INTO secrets
		(property_id, category, label, instructions, nonce, ciphertext, tag, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.PropertyID, s.Category, s.Label,
		s.Instructions, s.Nonce, s.Ciphertext, s.Tag, s.SortOrder)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID fetches a single secret by id.
func (r *SecretRepo) GetByID(ctx context.Context, id uint64) (*SecretItem, error) {
	var s SecretItem
	err := r.db.QueryRowContext(ctx,
		"SELECT "+secretColumns+" FROM secrets WHERE id = ? LIMIT 1", id).
		Scan(&s.ID, &s.PropertyID, &s.Category, &s.Label, &s.Instructions,
			&s.Nonce, &s.Ciphertext, &s.Tag, &s.SortOrder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByProperty returns all secrets for a property in sort order.
func (r *SecretRepo) ListByProperty(ctx context.Context, propertyID uint64) ([]*SecretItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+secretColumns+" FROM secrets WHERE property_id = ? ORDER BY sort_order, id",
		propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SecretItem
	for rows.Next() {
		s := new(SecretItem)
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.Category, &s.Label,
			&s.Instructions, &s.Nonce, &s.Ciphertext, &s.Tag, &s.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateValue replaces the encrypted blob of a secret. The old blob is
// simply overwritten; value replacement is a full re-encryption, never a
// partial edit.
func (r *SecretRepo) UpdateValue(ctx context.Context, id uint64, blob vault.EncryptedBlob) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE secrets SET nonce = ?, ciphertext = ?, tag = ? WHERE id = ?",
		blob.Nonce, blob.Ciphertext, blob.Tag, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// UpdateMeta edits label and instructions without touching the blob.
func (r *SecretRepo) UpdateMeta(ctx context.Context, id uint64, label string, instructions *string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE secrets SET label = ?, instructions = ? WHERE id = ?",
		label, instructions, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// Delete removes a secret.
func (r *SecretRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM secrets WHERE id = ?", id)
	return err
}

// ListAll streams every secret in the table. Used only by the key-rotation
// job, which re-encrypts each blob under the current key.
func (r *SecretRepo) ListAll(ctx context.Context) ([]*SecretItem, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+secretColumns+" FROM secrets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SecretItem
	for rows.Next() {
		s := new(SecretItem)
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.Category, &s.Label,
			&s.Instructions, &s.Nonce, &s.Ciphertext, &s.Tag, &s.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
