package postgres

import (
	"context"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/repository"
)

const usersTable = "auth.users"

var userColumns = []string{
	"id",
	"email",
	"full_name",
	"role",
	"password_hash",
	"is_active",
	"account_status",
	"is_email_verified",
	"is_phone_verified",
	"failed_login_attempts",
	"locked_until",
	"email_verification_token",
	"email_verification_expires",
	"email_verification_code",
	"email_verification_code_expires",
	"password_reset_token",
	"password_reset_expires",
	"password_reset_code",
	"password_reset_code_expires",
	"phone_number",
	"phone_verification_code",
	"phone_verification_expires",
	"phone_password_reset_code",
	"phone_password_reset_expires",
	"mfa_enabled",
	"mfa_secret",
	"mfa_backup_codes",
	"two_factor_method",
	"mfa_challenge_code",
	"mfa_challenge_expires",
	"last_login",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// NewUserRepositoryWithExecutor wires the repository on any executor, used in tests.
func NewUserRepositoryWithExecutor(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.UserAccount) error {
	query := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(userValues(user)...)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return r.getBy(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

// GetByEmailVerificationToken retrieves a user holding the pending verification token.
func (r *UserRepository) GetByEmailVerificationToken(ctx context.Context, token string) (*domain.UserAccount, error) {
	return r.getBy(ctx, squirrel.Eq{"email_verification_token": token})
}

// GetByPasswordResetToken retrieves a user by the stored reset-token hash.
func (r *UserRepository) GetByPasswordResetToken(ctx context.Context, token string) (*domain.UserAccount, error) {
	return r.getBy(ctx, squirrel.Eq{"password_reset_token": token})
}

// GetByPhoneNumber retrieves a user by phone number.
func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phone string) (*domain.UserAccount, error) {
	return r.getBy(ctx, squirrel.Eq{"phone_number": strings.TrimSpace(phone)})
}

// Update persists the full mutable state of the user row.
func (r *UserRepository) Update(ctx context.Context, user domain.UserAccount) error {
	update := r.builder.Update(usersTable).Where(squirrel.Eq{"id": user.ID})

	values := userValues(user)
	for i, column := range userColumns {
		if column == "id" || column == "created_at" {
			continue
		}
		update = update.Set(column, values[i])
	}
	update = update.Set("updated_at", squirrel.Expr("NOW()"))

	sql, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.UserAccount, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	user, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*domain.UserAccount, error) {
	var (
		user   domain.UserAccount
		method *string
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.AccountStatus,
		&user.IsEmailVerified,
		&user.IsPhoneVerified,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.EmailVerificationToken,
		&user.EmailVerificationExpires,
		&user.EmailVerificationCode,
		&user.EmailVerificationCodeExpires,
		&user.PasswordResetToken,
		&user.PasswordResetExpires,
		&user.PasswordResetCode,
		&user.PasswordResetCodeExpires,
		&user.PhoneNumber,
		&user.PhoneVerificationCode,
		&user.PhoneVerificationExpires,
		&user.PhonePasswordResetCode,
		&user.PhonePasswordResetExpires,
		&user.MFAEnabled,
		&user.MFASecret,
		&user.MFABackupCodes,
		&method,
		&user.MFAChallengeCode,
		&user.MFAChallengeExpires,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if method != nil {
		m := domain.TwoFactorMethod(*method)
		user.TwoFactorMethod = &m
	}

	return &user, nil
}

func userValues(user domain.UserAccount) []any {
	var method *string
	if user.TwoFactorMethod != nil {
		m := string(*user.TwoFactorMethod)
		method = &m
	}

	return []any{
		user.ID,
		strings.ToLower(user.Email),
		user.FullName,
		user.Role,
		user.PasswordHash,
		user.IsActive,
		user.AccountStatus,
		user.IsEmailVerified,
		user.IsPhoneVerified,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.EmailVerificationToken,
		user.EmailVerificationExpires,
		user.EmailVerificationCode,
		user.EmailVerificationCodeExpires,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.PasswordResetCode,
		user.PasswordResetCodeExpires,
		user.PhoneNumber,
		user.PhoneVerificationCode,
		user.PhoneVerificationExpires,
		user.PhonePasswordResetCode,
		user.PhonePasswordResetExpires,
		user.MFAEnabled,
		user.MFASecret,
		user.MFABackupCodes,
		method,
		user.MFAChallengeCode,
		user.MFAChallengeExpires,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	}
}
