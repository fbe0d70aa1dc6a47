package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripRows(t *Trip) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "property_id", "status", "starts_on", "ends_on", "slug",
		"link_password_hash", "link_expires_at", "created_at", "updated_at",
	}).AddRow(t.ID, t.PropertyID, t.Status, t.StartsOn, t.EndsOn, t.Slug,
		t.LinkPasswordHash, t.LinkExpiresAt, t.CreatedAt, t.UpdatedAt)
}

func sampleTrip() *Trip {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &Trip{
		ID:         42,
		PropertyID: 7,
		Status:     TripStatusActive,
		StartsOn:   now,
		EndsOn:     now.Add(7 * 24 * time.Hour),
		Slug:       "3f2a77d09c414be2a1f0b54a8e6d2c91",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestTripRepoGetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTripRepo(db)

	want := sampleTrip()
	mock.ExpectQuery("FROM trips WHERE slug = \\?").
		WithArgs(want.Slug).
		WillReturnRows(tripRows(want))

	got, err := repo.GetBySlug(context.Background(), want.Slug)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PropertyID, got.PropertyID)
	assert.Equal(t, TripStatusActive, got.Status)
	assert.Nil(t, got.LinkPasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepoGetBySlugNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTripRepo(db)

	mock.ExpectQuery("FROM trips WHERE slug = \\?").
		WithArgs("rotated-away").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetBySlug(context.Background(), "rotated-away")
	assert.ErrorIs(t, err, ErrTripNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepoGetByIDAndOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTripRepo(db)

	want := sampleTrip()
	mock.ExpectQuery("JOIN properties p ON p.id = t.property_id").
		WithArgs(uint64(42), uint64(9)).
		WillReturnRows(tripRows(want))

	got, err := repo.GetByIDAndOwner(context.Background(), 42, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepoGetByIDAndOwnerWrongOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTripRepo(db)

	// Wrong owner is indistinguishable from missing.
	mock.ExpectQuery("JOIN properties p ON p.id = t.property_id").
		WithArgs(uint64(42), uint64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByIDAndOwner(context.Background(), 42, 999)
	assert.ErrorIs(t, err, ErrTripNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepoRotateSlug(t *testing.T) {
	t.Run("commits slug update and session purge together", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewTripRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE trips t JOIN properties p").
			WithArgs("newslug", uint64(42), uint64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM link_sessions WHERE trip_id = \\?").
			WithArgs(uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		err = repo.RotateSlug(context.Background(), 42, 9, "newslug")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the trip is not owned", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewTripRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE trips t JOIN properties p").
			WithArgs("newslug", uint64(42), uint64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.RotateSlug(context.Background(), 42, 999, "newslug")
		assert.ErrorIs(t, err, ErrTripNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the session purge fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewTripRepo(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE trips t JOIN properties p").
			WithArgs("newslug", uint64(42), uint64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM link_sessions WHERE trip_id = \\?").
			WithArgs(uint64(42)).
			WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		err = repo.RotateSlug(context.Background(), 42, 9, "newslug")
		assert.ErrorContains(t, err, "deadlock")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
