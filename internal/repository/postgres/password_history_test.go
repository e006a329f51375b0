package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

func newMockHistoryRepository(t *testing.T) (*PasswordHistoryRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPasswordHistoryRepositoryWithExecutor(mock), mock
}

func TestPasswordHistoryAppend(t *testing.T) {
	repo, mock := newMockHistoryRepository(t)
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO auth\.password_history`).
		WithArgs("rec-1", "u1", "$2a$12$old", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Append(context.Background(), domain.PasswordHistoryRecord{
		ID:           "rec-1",
		UserID:       "u1",
		PasswordHash: "$2a$12$old",
		CreatedAt:    created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHistoryListRecent(t *testing.T) {
	repo, mock := newMockHistoryRepository(t)
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "user_id", "password_hash", "created_at"}).
		AddRow("rec-2", "u1", "$2a$12$newer", created.Add(time.Hour)).
		AddRow("rec-1", "u1", "$2a$12$older", created)

	mock.ExpectQuery(`SELECT .+ FROM auth\.password_history WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-2", records[0].ID)
	assert.Equal(t, "$2a$12$older", records[1].PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHistoryListRecentZeroLimit(t *testing.T) {
	repo, mock := newMockHistoryRepository(t)

	records, err := repo.ListRecent(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Nil(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHistoryPrune(t *testing.T) {
	repo, mock := newMockHistoryRepository(t)

	mock.ExpectExec(`DELETE FROM auth\.password_history`).
		WithArgs("u1", 5).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	err := repo.Prune(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
