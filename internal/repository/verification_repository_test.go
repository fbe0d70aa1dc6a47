package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewVerificationRepo(db)

	expires := time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"trip_id", "phone", "code_hash", "salt", "expires_at", "attempts", "verified"}).
		AddRow(42, "3035550101", []byte{0xde, 0xad}, []byte{0xbe, 0xef}, expires, 1, false)

	mock.ExpectQuery("SELECT trip_id, phone, code_hash, salt, expires_at, attempts, verified").
		WithArgs(uint64(42), "3035550101").
		WillReturnRows(rows)

	v, err := repo.Get(context.Background(), 42, "3035550101")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.TripID)
	assert.Equal(t, "3035550101", v.Phone)
	assert.Equal(t, 1, v.Attempts)
	assert.False(t, v.Verified)
	assert.True(t, expires.Equal(v.ExpiresAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewVerificationRepo(db)

	mock.ExpectQuery("SELECT trip_id, phone, code_hash").
		WithArgs(uint64(42), "3035550101").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id"}))

	_, err = repo.Get(context.Background(), 42, "3035550101")
	assert.ErrorIs(t, err, ErrVerificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepoUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewVerificationRepo(db)

	expires := time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO pending_verifications").
		WithArgs(uint64(42), "3035550101", []byte{0x01}, []byte{0x02}, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Upsert(context.Background(), &PendingVerification{
		TripID:    42,
		Phone:     "3035550101",
		CodeHash:  []byte{0x01},
		Salt:      []byte{0x02},
		ExpiresAt: expires,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepoMarkVerified(t *testing.T) {
	expires := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("wins the race", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewVerificationRepo(db)

		mock.ExpectExec("UPDATE pending_verifications SET verified = 1").
			WithArgs(expires, uint64(42), "3035550101").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.MarkVerified(context.Background(), 42, "3035550101", expires)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses the race", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewVerificationRepo(db)

		// verified = 0 guard matched nothing: another request got there first.
		mock.ExpectExec("UPDATE pending_verifications SET verified = 1").
			WithArgs(expires, uint64(42), "3035550101").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.MarkVerified(context.Background(), 42, "3035550101", expires)
		assert.ErrorIs(t, err, ErrAlreadyVerified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVerificationRepoIncrementAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewVerificationRepo(db)

	mock.ExpectExec("UPDATE pending_verifications SET attempts = attempts \\+ 1").
		WithArgs(uint64(42), "3035550101").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementAttempts(context.Background(), 42, "3035550101"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepoDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewVerificationRepo(db)

	mock.ExpectExec("DELETE FROM pending_verifications").
		WithArgs(uint64(42), "3035550101").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 42, "3035550101"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
