package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/maribelle/sitterlink/internal/utils"
)

// Owner mirrors the `owners` table: the authenticated side of the system.
// Owners author secrets and read the audit trail; sitters never have rows
// here.
type Owner struct {
	ID           uint64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OwnerRepo struct{ DB *sql.DB }

func NewOwnerRepo(db *sql.DB) *OwnerRepo { return &OwnerRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts an owner and returns its ID.
func (r *OwnerRepo) Create(ctx context.Context, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO owners (email, password_hash) VALUES (?,?)",
		email, hash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an owner by normalized email.
func (r *OwnerRepo) GetByEmail(ctx context.Context, email string) (Owner, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var o Owner
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at,updated_at FROM owners WHERE email=? LIMIT 1",
		email).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetByID fetches an owner by id.
func (r *OwnerRepo) GetByID(ctx context.Context, id uint64) (Owner, error) {
	var o Owner
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at,updated_at FROM owners WHERE id=? LIMIT 1",
		id).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
