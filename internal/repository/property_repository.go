package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Property represents a home whose care manual is being shared. Authoring
// of properties, pets and manual sections happens elsewhere; this service
// only reads the few fields the share and vault flows need.
type Property struct {
	ID      uint64 // properties.id
	OwnerID uint64 // properties.owner_id
	Name    string // properties.name
}

// ErrPropertyNotFound is returned when a property cannot be found or is not
// owned by the requesting owner.
var ErrPropertyNotFound = errors.New("property not found")

// PropertyRepo encapsulates database queries for properties and their pets.
type PropertyRepo struct {
	db *sql.DB
}

// NewPropertyRepo constructs a PropertyRepo with the provided DB handle.
func NewPropertyRepo(db *sql.DB) *PropertyRepo { return &PropertyRepo{db: db} }

// GetByID fetches a property by id regardless of owner.
func (r *PropertyRepo) GetByID(ctx context.Context, id uint64) (*Property, error) {
	var p Property
	err := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name FROM properties WHERE id = ? LIMIT 1", id).
		Scan(&p.ID, &p.OwnerID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDAndOwner fetches a property only if it belongs to the given owner.
func (r *PropertyRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*Property, error) {
	var p Property
	err := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name FROM properties WHERE id = ? AND owner_id = ? LIMIT 1",
		id, ownerID).Scan(&p.ID, &p.OwnerID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return &p, nil
}

// PetNames returns the names of all pets at a property, used by the
// NOT_STARTED share-link teaser.
func (r *PropertyRepo) PetNames(ctx context.Context, propertyID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM pets WHERE property_id = ? ORDER BY id", propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
