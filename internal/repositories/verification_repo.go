package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tlux-store/tlux-api/internal/database"
	"github.com/tlux-store/tlux-api/internal/models"
)

// VerificationRepository stores both kinds of verification secrets: link
// tokens and numeric codes. Single-use is enforced here with conditional
// updates, not in memory, so concurrent redeemers across processes race
// safely.
type VerificationRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{db: db, pool: db.Pool}
}

// --- link tokens ---

func (r *VerificationRepository) CreateToken(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.VerificationToken, error) {
	query := `
		INSERT INTO verification_tokens (user_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, email, expires_at, used_at, created_at
	`

	var token models.VerificationToken
	err := r.pool.QueryRow(ctx, query, userID, tokenHash, email, expiresAt).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

func (r *VerificationRepository) GetTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, email, expires_at, used_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1
	`

	var token models.VerificationToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// ConsumeToken marks a token used, but only if it is still unconsumed.
// Exactly one of N concurrent callers observes a row change; the rest get
// models.ErrSecretAlreadyUsed.
func (r *VerificationRepository) ConsumeToken(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE verification_tokens SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrSecretAlreadyUsed
	}
	return nil
}

// ConsumeTokenVerifyUser consumes a token and flips the owning user's
// email_verified flag in a single transaction. Either both rows change or
// neither does.
func (r *VerificationRepository) ConsumeTokenVerifyUser(ctx context.Context, id, userID string, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE verification_tokens SET used_at = $2
			WHERE id = $1 AND used_at IS NULL
		`, id, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrSecretAlreadyUsed
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET email_verified = TRUE, updated_at = NOW()
			WHERE id = $1
		`, userID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}

// --- numeric codes ---

func (r *VerificationRepository) CreateCode(ctx context.Context, userID *string, email, codeHash string, expiresAt time.Time) (*models.VerificationCode, error) {
	query := `
		INSERT INTO verification_codes (user_id, email, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, email, code_hash, expires_at, used_at, created_at
	`

	var code models.VerificationCode
	err := r.pool.QueryRow(ctx, query, userID, email, codeHash, expiresAt).Scan(
		&code.ID, &code.UserID, &code.Email, &code.CodeHash,
		&code.ExpiresAt, &code.UsedAt, &code.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

// GetLatestCodeByEmail returns the most recent unconsumed code for an
// address. Older unconsumed codes are superseded, never authoritative.
func (r *VerificationRepository) GetLatestCodeByEmail(ctx context.Context, email string) (*models.VerificationCode, error) {
	query := `
		SELECT id, user_id, email, code_hash, expires_at, used_at, created_at
		FROM verification_codes
		WHERE email = $1 AND used_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var code models.VerificationCode
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&code.ID, &code.UserID, &code.Email, &code.CodeHash,
		&code.ExpiresAt, &code.UsedAt, &code.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

// InvalidateCodes consumes every outstanding code for an address so only
// the next issued code can succeed.
func (r *VerificationRepository) InvalidateCodes(ctx context.Context, email string, now time.Time) (int64, error) {
	query := `
		UPDATE verification_codes SET used_at = $2
		WHERE email = $1 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, email, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ConsumeCode marks a code used under the same conditional-update contract
// as ConsumeToken.
func (r *VerificationRepository) ConsumeCode(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE verification_codes SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrSecretAlreadyUsed
	}
	return nil
}

// CleanupExpired drops secrets whose expiry is well past; consumed rows are
// kept inside the horizon for audit.
func (r *VerificationRepository) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var total int64

	result, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	total += result.RowsAffected()

	result, err = r.pool.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, olderThan)
	if err != nil {
		return total, database.MapPostgresError(err)
	}
	total += result.RowsAffected()

	return total, nil
}
