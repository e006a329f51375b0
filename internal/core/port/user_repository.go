package port

import (
	"context"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for user accounts.
// Lookup methods return repository.ErrNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user domain.UserAccount) error
	GetByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetByEmailVerificationToken(ctx context.Context, token string) (*domain.UserAccount, error)
	GetByPasswordResetToken(ctx context.Context, token string) (*domain.UserAccount, error)
	GetByPhoneNumber(ctx context.Context, phone string) (*domain.UserAccount, error)
	Update(ctx context.Context, user domain.UserAccount) error
}

// PasswordHistoryRepository stores prior password hashes per user.
type PasswordHistoryRepository interface {
	Append(ctx context.Context, record domain.PasswordHistoryRecord) error
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryRecord, error)
	Prune(ctx context.Context, userID string, keep int) error
}
