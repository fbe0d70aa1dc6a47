package repository

import (
	"context"
	"database/sql"
	"time"
)

// AuditEntry mirrors the append-only `vault_audit` table. Every disclosure
// attempt lands here: successes carry the secret id and the acting sitter's
// name, failed PIN attempts carry verified = false and no secret. The
// accessed_at column is assigned by the database, never by the client, so
// timestamps cannot be spoofed.
type AuditEntry struct {
	ID         uint64    // vault_audit.id
	TripID     uint64    // vault_audit.trip_id
	SecretID   *uint64   // vault_audit.secret_id (nullable; set on successes)
	Phone      string    // vault_audit.phone
	Name       *string   // vault_audit.name (nullable)
	Verified   bool      // vault_audit.verified (true = disclosure succeeded)
	AccessedAt time.Time // vault_audit.accessed_at (DB-assigned)
}

// AuditRepo provides append and read access to the audit trail. There is no
// update or delete: the table is append-only by contract.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo constructs an AuditRepo with the provided DB handle.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert appends one entry. accessed_at is set server-side via
// UTC_TIMESTAMP(); any value in e.AccessedAt is ignored.
func (r *AuditRepo) Insert(ctx context.Context, e *AuditEntry) error {
	const q = `INSERT INTO vault_audit (trip_id, secret_id, phone, name, verified, accessed_at)
		VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP())`
	res, err := r.db.ExecContext(ctx, q, e.TripID, e.SecretID, e.Phone, e.Name, e.Verified)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByProperty returns the audit trail for all trips of one property,
// newest first. Ownership of the property must be checked by the caller
// before handing the result to anyone.
func (r *AuditRepo) ListByProperty(ctx context.Context, propertyID uint64, limit int) ([]*AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT a.id, a.trip_id, a.secret_id, a.phone, a.name, a.verified, a.accessed_at
		FROM vault_audit a JOIN trips t ON t.id = a.trip_id
		WHERE t.property_id = ? ORDER BY a.id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		e := new(AuditEntry)
		if err := rows.Scan(&e.ID, &e.TripID, &e.SecretID, &e.Phone, &e.Name,
			&e.Verified, &e.AccessedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
