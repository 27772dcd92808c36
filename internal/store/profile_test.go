package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileRowColumns = []string{
	"id", "username", "email", "display_name", "avatar_url", "bio",
	"is_admin", "is_moderator", "is_streamer", "is_verified", "is_supporter",
	"username_changed_at", "password_hash", "created_at", "updated_at",
}

func TestProfileRepository_GetByUsernameIgnoresCase(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(username) = LOWER($1)")).
		WithArgs("KENJI").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow(
			int64(1), "kenji", "k@example.com", "Kenji", "", "",
			false, true, true, false, false,
			nil, "hash", now, now,
		))

	p, err := repo.GetByUsername(context.Background(), "KENJI")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.True(t, p.IsModerator)
	assert.True(t, p.IsStreamer)
	assert.Nil(t, p.UsernameChangedAt)
}

func TestProfileRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery("FROM profiles WHERE id").WillReturnRows(sqlmock.NewRows(profileRowColumns))

	_, err := repo.GetByID(context.Background(), 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepository_MatchUsernamesEscapesPattern(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username ILIKE $1")).
		WithArgs(`%100\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(9)))

	ids, err := repo.MatchUsernames(context.Background(), "100%")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)
}

func TestProfileRepository_StreamerIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery("WHERE is_streamer").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := repo.StreamerIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestProfileRepository_CreateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery("INSERT INTO profiles").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := repo.Create(context.Background(), types.Profile{Username: "kenji", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestProfileRepository_UpdateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectExec("UPDATE profiles").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Update(context.Background(), types.Profile{ID: 1, Username: "taken"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestProfileRepository_UpdateRoles(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET is_admin = $1")).
		WithArgs(false, true, true, false, false, sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRoles(context.Background(), 8, types.RoleFlags{IsModerator: true, IsStreamer: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
