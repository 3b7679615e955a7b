package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*RevocationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRevocationRepository(db), mock
}

func TestRevocationRepositoryAdd(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revoked_tokens")).
		WithArgs("01JTI", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Add(context.Background(), "01JTI", exp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationRepositoryContains(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("01JTI").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("other").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.Contains(context.Background(), "01JTI")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Contains(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationRepositoryPruneAndLen(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM revoked_tokens WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM revoked_tokens")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	removed, err := repo.Prune(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, err := repo.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationRepositoryPropagatesErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM revoked_tokens")).WillReturnError(boom)

	_, err := repo.Prune(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
