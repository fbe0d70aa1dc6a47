package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PendingVerification mirrors the `pending_verifications` table, keyed by
// (trip_id, phone). At most one live record exists per key: issuing a new
// code upserts over the old one, so an in-flight verify for a superseded
// code fails on hash mismatch rather than succeeding.
type PendingVerification struct {
	TripID    uint64    // pending_verifications.trip_id
	Phone     string    // pending_verifications.phone (normalized digits)
	CodeHash  []byte    // pending_verifications.code_hash (SHA-256 of code||salt)
	Salt      []byte    // pending_verifications.salt
	ExpiresAt time.Time // pending_verifications.expires_at
	Attempts  int       // pending_verifications.attempts
	Verified  bool      // pending_verifications.verified
}

// ErrVerificationNotFound is returned when no record exists for the key.
var ErrVerificationNotFound = errors.New("verification not found")

// ErrAlreadyVerified is returned by MarkVerified when the conditional update
// matched no unverified row: another request won the race.
var ErrAlreadyVerified = errors.New("verification already consumed")

// VerificationRepo encapsulates database access for pending verifications.
// Expiry is lazy: rows are compared against the clock at read time, never
// swept by a background job. The one explicit delete (on expired verify)
// exists only to avoid leaving a guessable stale hash around.
type VerificationRepo struct {
	db *sql.DB
}

// NewVerificationRepo constructs a VerificationRepo with the provided DB handle.
func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{db: db} }

// Get fetches the record for (trip, phone), expired or not. Interpreting
// the timestamps against the current time is the caller's job.
func (r *VerificationRepo) Get(ctx context.Context, tripID uint64, phone string) (*PendingVerification, error) {
	const q = `SELECT trip_id, phone, code_hash, salt, expires_at, attempts, verified
		FROM pending_verifications WHERE trip_id = ? AND phone = ? LIMIT 1`
	var v PendingVerification
	err := r.db.QueryRowContext(ctx, q, tripID, phone).
		Scan(&v.TripID, &v.Phone, &v.CodeHash, &v.Salt, &v.ExpiresAt, &v.Attempts, &v.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Upsert writes a fresh challenge for (trip, phone), overwriting any prior
// pending or verified record. The per-key primary index is the
// serialization point for concurrent issues: last write wins and the
// superseded hash is gone.
func (r *VerificationRepo) Upsert(ctx context.Context, v *PendingVerification) error {
	const q = `INSERT INTO pending_verifications
		(trip_id, phone, code_hash, salt, expires_at, attempts, verified)
		VALUES (?, ?, ?, ?, ?, 0, 0)
		ON DUPLICATE KEY UPDATE
		code_hash = VALUES(code_hash), salt = VALUES(salt),
		expires_at = VALUES(expires_at), attempts = 0, verified = 0`
	_, err := r.db.ExecContext(ctx, q, v.TripID, v.Phone, v.CodeHash, v.Salt, v.ExpiresAt)
	return err
}

// IncrementAttempts records one failed guess.
func (r *VerificationRepo) IncrementAttempts(ctx context.Context, tripID uint64, phone string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_verifications SET attempts = attempts + 1
		WHERE trip_id = ? AND phone = ?`, tripID, phone)
	return err
}

// MarkVerified promotes a pending record to verified and extends its expiry.
// The WHERE verified = 0 guard makes promotion one-shot under concurrency:
// of two near-simultaneous correct verifications, exactly one matches a row
// and the loser gets ErrAlreadyVerified.
func (r *VerificationRepo) MarkVerified(ctx context.Context, tripID uint64, phone string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_verifications SET verified = 1, expires_at = ?
		WHERE trip_id = ? AND phone = ? AND verified = 0`,
		expiresAt, tripID, phone)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyVerified
	}
	return nil
}

// Delete removes the record for (trip, phone).
func (r *VerificationRepo) Delete(ctx context.Context, tripID uint64, phone string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM pending_verifications WHERE trip_id = ? AND phone = ?", tripID, phone)
	return err
}
