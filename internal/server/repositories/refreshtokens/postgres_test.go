package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aliceout/nodea/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestHashToken(t *testing.T) {
	h := HashToken("tok123")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("tok123"))
	assert.NotEqual(t, h, HashToken("tok124"))
	assert.NotContains(t, h, "tok123")
}

func TestCreate_StoresHashOnly(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token_hash,\s*expires_at\)`).
		WithArgs("u1", HashToken("tok123"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), "u1", "tok123", 30*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "u1", "tok123", time.Hour)
	assert.ErrorContains(t, err, "insert refresh token: db down")
}

func TestConsume_ReturnsDeletedRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	created := exp.Add(-2 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
		AddRow("1", "u1", exp, created)
	mock.ExpectQuery(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+RETURNING`).
		WithArgs(HashToken("tok123")).
		WillReturnRows(rows)

	got, err := repo.Consume(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, HashToken("tok123"), got.TokenHash)
	assert.True(t, got.Expires.Equal(exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsume_Unknown(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens`).
		WithArgs(HashToken("nope")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConsume_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`DELETE\s+FROM\s+refresh_tokens`).
		WillReturnError(errors.New("conn reset"))

	_, err := repo.Consume(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorContains(t, err, "consume refresh token: conn reset")
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+expires_at\s*<\s*\$2`).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	_, err := repo.DeleteExpired(context.Background(), "u1", time.Now())
	assert.ErrorContains(t, err, "delete expired refresh tokens: db down")
}
