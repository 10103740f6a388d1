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

// BlockedEntryRepository stores temporary authentication blocks.
type BlockedEntryRepository struct {
	pool *pgxpool.Pool
}

func NewBlockedEntryRepository(db *database.DB) *BlockedEntryRepository {
	return &BlockedEntryRepository{pool: db.Pool}
}

// Upsert creates or refreshes the block for an email. Concurrent failures
// race on the same row; last write wins on blocked_until, which is the
// intended outcome.
func (r *BlockedEntryRepository) Upsert(ctx context.Context, email, ipAddress string, blockedUntil time.Time) error {
	query := `
		INSERT INTO blocked_entries (email, ip_address, blocked_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET ip_address = EXCLUDED.ip_address, blocked_until = EXCLUDED.blocked_until
	`

	_, err := r.pool.Exec(ctx, query, email, ipAddress, blockedUntil)
	return database.MapPostgresError(err)
}

// GetActive returns the block covering the email or IP at the given
// instant, or models.ErrNotFound when neither is blocked.
func (r *BlockedEntryRepository) GetActive(ctx context.Context, email, ipAddress string, now time.Time) (*models.BlockedEntry, error) {
	query := `
		SELECT id, email, ip_address, blocked_until FROM blocked_entries
		WHERE (email = $1 OR ip_address = $2) AND blocked_until > $3
		ORDER BY blocked_until DESC
		LIMIT 1
	`

	var entry models.BlockedEntry
	err := r.pool.QueryRow(ctx, query, email, ipAddress, now).Scan(
		&entry.ID, &entry.Email, &entry.IPAddress, &entry.BlockedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &entry, nil
}

// DeleteExpired removes blocks that have naturally lapsed.
func (r *BlockedEntryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM blocked_entries WHERE blocked_until <= $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
