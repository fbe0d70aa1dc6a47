package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Trip statuses as stored in trips.status. A trip moves draft -> active ->
// expired, or is archived by the owner. Only active trips admit sitters.
const (
	TripStatusDraft    = "draft"
	TripStatusActive   = "active"
	TripStatusExpired  = "expired"
	TripStatusArchived = "archived"
)

// Trip represents a stay: the bounded window during which a care manual and
// its secrets are disclosable. The slug is the only thing an anonymous
// party holds; rotating it is the sole revocation primitive.
type Trip struct {
	ID               uint64     // trips.id
	PropertyID       uint64     // trips.property_id
	Status           string     // trips.status
	StartsOn         time.Time  // trips.starts_on
	EndsOn           time.Time  // trips.ends_on
	Slug             string     // trips.slug (unique, rotatable)
	LinkPasswordHash *string    // trips.link_password_hash (nullable, bcrypt)
	LinkExpiresAt    *time.Time // trips.link_expires_at (nullable)
	CreatedAt        time.Time  // trips.created_at
	UpdatedAt        time.Time  // trips.updated_at
}

// ErrTripNotFound is returned when a trip cannot be found.
var ErrTripNotFound = errors.New("trip not found")

// TripRepo encapsulates all database queries related to trips.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo constructs a TripRepo with the provided DB handle.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

const tripColumns = `id, property_id, status, starts_on, ends_on, slug,
	link_password_hash, link_expires_at, created_at, updated_at`

func scanTrip(row *sql.Row) (*Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.PropertyID, &t.Status, &t.StartsOn, &t.EndsOn,
		&t.Slug, &t.LinkPasswordHash, &t.LinkExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetBySlug fetches a trip by its public slug. Called on every share-link
// resolution, so the slug column carries a unique index.
func (r *TripRepo) GetBySlug(ctx context.Context, slug string) (*Trip, error) {
	return scanTrip(r.db.QueryRowContext(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE slug = ? LIMIT 1", slug))
}

// GetByID fetches a trip by id.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*Trip, error) {
	return scanTrip(r.db.QueryRowContext(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE id = ? LIMIT 1", id))
}

// GetByIDAndOwner fetches a trip only if its property belongs to the given
// owner. Returns ErrTripNotFound otherwise, so callers cannot distinguish
// "missing" from "not yours".
func (r *TripRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*Trip, error) {
	const q = `SELECT t.id, t.property_id, t.status, t.starts_on, t.ends_on, t.slug,
		t.link_password_hash, t.link_expires_at, t.created_at, t.updated_at
		FROM trips t JOIN properties p ON p.id = t.property_id
		WHERE t.id = ? AND p.owner_id = ? LIMIT 1`
	return scanTrip(r.db.QueryRowContext(ctx, q, id, ownerID))
}

// RotateSlug replaces a trip's public slug and deletes every link session
// for the trip in the same transaction. The two must move together: the
// moment the slug changes, all outstanding session tokens become
// meaningless, even before their own expiry.
func (r *TripRepo) RotateSlug(ctx context.Context, tripID, ownerID uint64, newSlug string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const qUpdate = `UPDATE trips t JOIN properties p ON p.id = t.property_id
		SET t.slug = ? WHERE t.id = ? AND p.owner_id = ?`
	res, err := tx.ExecContext(ctx, qUpdate, newSlug, tripID, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTripNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM link_sessions WHERE trip_id = ?", tripID); err != nil {
		return err
	}
	return tx.Commit()
}
