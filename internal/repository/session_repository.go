package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LinkSession mirrors the `link_sessions` table: an opaque token issued
// after a successful link-password check, scoped to one trip. Sessions live
// in MySQL rather than a cache because slug rotation must invalidate them
// in the same transaction that changes the slug (see TripRepo.RotateSlug).
type LinkSession struct {
	Token     string    // link_sessions.token (PK)
	TripID    uint64    // link_sessions.trip_id
	ExpiresAt time.Time // link_sessions.expires_at
}

// SessionRepo encapsulates database access for link sessions.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the provided DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Create stores a new session token.
func (r *SessionRepo) Create(ctx context.Context, s *LinkSession) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO link_sessions (token, trip_id, expires_at) VALUES (?, ?, ?)",
		s.Token, s.TripID, s.ExpiresAt)
	return err
}

// Valid reports whether token is a live session for the given trip. Expired
// rows are treated as absent at read time (lazy expiry); sessions for a
// rotated slug are gone entirely because rotation deletes them.
func (r *SessionRepo) Valid(ctx context.Context, token string, tripID uint64) (bool, error) {
	if token == "" {
		return false, nil
	}
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT expires_at FROM link_sessions WHERE token = ? AND trip_id = ? LIMIT 1",
		token, tripID).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return time.Now().UTC().Before(expiresAt), nil
}
