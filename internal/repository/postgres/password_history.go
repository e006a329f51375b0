package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

const passwordHistoryTable = "auth.password_history"

// PasswordHistoryRepository implements port.PasswordHistoryRepository using PostgreSQL.
type PasswordHistoryRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPasswordHistoryRepository wires a PostgreSQL-backed password history repository.
func NewPasswordHistoryRepository(pool *pgxpool.Pool) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// NewPasswordHistoryRepositoryWithExecutor wires the repository on any executor, used in tests.
func NewPasswordHistoryRepositoryWithExecutor(exec pgExecutor) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append stores a password hash record.
func (r *PasswordHistoryRepository) Append(ctx context.Context, record domain.PasswordHistoryRecord) error {
	sql, args, err := r.builder.Insert(passwordHistoryTable).
		Columns("id", "user_id", "password_hash", "created_at").
		Values(record.ID, record.UserID, record.PasswordHash, record.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	return nil
}

// ListRecent returns up to limit most recent records for the user, newest first.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	sql, args, err := r.builder.
		Select("id", "user_id", "password_hash", "created_at").
		From(passwordHistoryTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select password history: %w", err)
	}
	defer rows.Close()

	var records []domain.PasswordHistoryRecord
	for rows.Next() {
		var record domain.PasswordHistoryRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.PasswordHash, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return records, nil
}

// Prune removes records beyond the keep most recent for the user.
func (r *PasswordHistoryRepository) Prune(ctx context.Context, userID string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	// Delete everything older than the keep newest rows.
	sql := fmt.Sprintf(`DELETE FROM %s
WHERE user_id = $1
  AND id NOT IN (
    SELECT id FROM %s WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
  )`, passwordHistoryTable, passwordHistoryTable)

	if _, err := r.exec.Exec(ctx, sql, userID, keep); err != nil {
		return fmt.Errorf("prune password history: %w", err)
	}

	return nil
}
