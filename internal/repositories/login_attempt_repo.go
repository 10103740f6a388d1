package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tlux-store/tlux-api/internal/database"
	"github.com/tlux-store/tlux-api/internal/models"
)

// LoginAttemptRepository handles the append-only login attempt log.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, outcome, attempted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.Outcome,
		attempt.AttemptedAt,
		attempt.ExpiresAt,
	)
	return database.MapPostgresError(err)
}

// CountRecentFailures counts failed attempts for the email OR origin IP
// since the window start. The OR matters: an attacker rotating emails from
// one address still accumulates.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE (email = $1 OR ip_address = $2) AND outcome = 'failed' AND attempted_at >= $3
	`

	var count int
	err := r.pool.QueryRow(ctx, query, email, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteExpired removes attempts past their retention timestamp.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
