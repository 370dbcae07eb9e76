package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cliptide/cliptide/internal/common"
	"github.com/cliptide/cliptide/internal/dbx"
)

// PostgresRepository implements the session store over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
//
// Each operation is a single statement, so read-your-writes consistency per
// user is the database's ordinary behavior and Replace is atomic without any
// explicit locking.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Put(ctx context.Context, userID string, refreshTokenHash string) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token_hash, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET refresh_token_hash = EXCLUDED.refresh_token_hash, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, refreshTokenHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT refresh_token_hash
		FROM sessions
		WHERE user_id = $1
	`
	var hash string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

func (r *PostgresRepository) Replace(ctx context.Context, userID string, oldHash, newHash string) error {
	query := `
		UPDATE sessions SET refresh_token_hash = $3, updated_at = now()
		WHERE user_id = $1 AND refresh_token_hash = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorConflict
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
