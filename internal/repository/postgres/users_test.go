package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/repository"
)

func newMockUserRepository(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepositoryWithExecutor(mock), mock
}

func sampleUserRow(user domain.UserAccount) *pgxmock.Rows {
	rows := pgxmock.NewRows(userColumns)
	values := userValues(user)
	rows.AddRow(values...)
	return rows
}

func sampleUser() domain.UserAccount {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return domain.UserAccount{
		ID:              "u1",
		Email:           "alice@example.com",
		FullName:        "Alice Smith",
		Role:            domain.RoleClient,
		PasswordHash:    "$2a$12$hash",
		IsActive:        true,
		AccountStatus:   domain.StatusActive,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestUserRepositoryGetByEmailLowercasesInput(t *testing.T) {
	repo, mock := newMockUserRepository(t)
	user := sampleUser()

	mock.ExpectQuery(`SELECT .+ FROM auth\.users WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(sampleUserRow(user))

	got, err := repo.GetByEmail(context.Background(), "  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, domain.RoleClient, got.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectQuery(`SELECT .+ FROM auth\.users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByIDMapsTwoFactorMethod(t *testing.T) {
	repo, mock := newMockUserRepository(t)
	user := sampleUser()
	method := domain.MethodSMS
	user.TwoFactorMethod = &method
	user.MFAEnabled = true

	mock.ExpectQuery(`SELECT .+ FROM auth\.users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sampleUserRow(user))

	got, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got.TwoFactorMethod)
	assert.Equal(t, domain.MethodSMS, *got.TwoFactorMethod)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), sampleUser())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateMissingRow(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectExec(`UPDATE auth\.users SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), sampleUser())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdate(t *testing.T) {
	repo, mock := newMockUserRepository(t)

	mock.ExpectExec(`UPDATE auth\.users SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), sampleUser())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
