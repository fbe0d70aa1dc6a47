package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Sitter is a person the owner registered on a trip. Sitters are
// unauthenticated link holders; the phone column is stored normalized
// (bare digits) and is how an anonymous caller is matched to a record.
// VaultAccess must be granted explicitly; a sitter without it can never
// pass the access gate regardless of PIN state.
type Sitter struct {
	ID          uint64 // sitters.id
	TripID      uint64 // sitters.trip_id
	Name        string // sitters.name
	Phone       string // sitters.phone (normalized digits)
	VaultAccess bool   // sitters.vault_access
}

// ErrSitterNotFound is returned when no sitter matches.
var ErrSitterNotFound = errors.New("sitter not found")

// SitterRepo encapsulates database queries for sitters.
type SitterRepo struct {
	db *sql.DB
}

// NewSitterRepo constructs a SitterRepo with the provided DB handle.
func NewSitterRepo(db *sql.DB) *SitterRepo { return &SitterRepo{db: db} }

// FindByTripAndPhone fetches the sitter registered on a trip with the given
// normalized phone. Callers must normalize before querying; the repository
// does exact matching only.
func (r *SitterRepo) FindByTripAndPhone(ctx context.Context, tripID uint64, phone string) (*Sitter, error) {
	const q = `SELECT id, trip_id, name, phone, vault_access
		FROM sitters WHERE trip_id = ? AND phone = ? LIMIT 1`
	var s Sitter
	err := r.db.QueryRowContext(ctx, q, tripID, phone).
		Scan(&s.ID, &s.TripID, &s.Name, &s.Phone, &s.VaultAccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSitterNotFound
		}
		return nil, err
	}
	return &s, nil
}
