package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tlux-store/tlux-api/internal/database"
	"github.com/tlux-store/tlux-api/internal/models"
)

// LicenseRepository persists issued licenses. The unique constraint on
// transaction_id is the backstop against double issuance.
type LicenseRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseRepository(db *database.DB) *LicenseRepository {
	return &LicenseRepository{pool: db.Pool}
}

// Create inserts a license; a duplicate transaction_id surfaces as
// models.ErrConflict via the unique constraint.
func (r *LicenseRepository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	query := `
		INSERT INTO licenses (user_id, license_key, package, issued_at, expires_at, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, license_key, package, issued_at, expires_at, transaction_id
	`

	var created models.License
	err := r.pool.QueryRow(ctx, query,
		license.UserID, license.Key, license.Package,
		license.IssuedAt, license.ExpiresAt, license.TransactionID,
	).Scan(
		&created.ID, &created.UserID, &created.Key, &created.Package,
		&created.IssuedAt, &created.ExpiresAt, &created.TransactionID,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}

func (r *LicenseRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.License, error) {
	query := `
		SELECT id, user_id, license_key, package, issued_at, expires_at, transaction_id
		FROM licenses WHERE transaction_id = $1
	`

	var license models.License
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&license.ID, &license.UserID, &license.Key, &license.Package,
		&license.IssuedAt, &license.ExpiresAt, &license.TransactionID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &license, nil
}

// ListByUser returns a user's license history, newest first.
func (r *LicenseRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.License, error) {
	query := `
		SELECT id, user_id, license_key, package, issued_at, expires_at, transaction_id
		FROM licenses WHERE user_id = $1
		ORDER BY issued_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	licenses := make([]*models.License, 0)
	for rows.Next() {
		var license models.License
		err := rows.Scan(
			&license.ID, &license.UserID, &license.Key, &license.Package,
			&license.IssuedAt, &license.ExpiresAt, &license.TransactionID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, &license)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, nil
}
