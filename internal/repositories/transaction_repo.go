package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tlux-store/tlux-api/internal/database"
	"github.com/tlux-store/tlux-api/internal/models"
)

// TransactionRepository persists the purchase ledger. State transitions go
// through conditional updates keyed on the expected prior state; that single
// statement is what carries the exactly-once guarantee across processes.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{pool: db.Pool}
}

const txColumns = `id, reference, user_id, purpose, package, device_model, imei,
	amount, supplier_cost, payment_ref, order_ref, status, created_at, updated_at`

func scanTransaction(scanner rowScanner) (*models.Transaction, error) {
	var tx models.Transaction

	err := scanner.Scan(
		&tx.ID, &tx.Reference, &tx.UserID, &tx.Purpose, &tx.Package,
		&tx.DeviceModel, &tx.IMEI, &tx.Amount, &tx.SupplierCost,
		&tx.PaymentRef, &tx.OrderRef, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (reference, user_id, purpose, package, device_model, imei, amount, supplier_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING ` + txColumns

	created, err := scanTransaction(r.pool.QueryRow(ctx, query,
		tx.Reference, tx.UserID, tx.Purpose, tx.Package, tx.DeviceModel,
		tx.IMEI, tx.Amount, tx.SupplierCost,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return created, nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE reference = $1`

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, reference))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnknownTransaction
	}
	return tx, err
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// TransitionByReference moves a transaction from an expected prior state to
// the next one, optionally recording the payment reference. It returns
// models.ErrInvalidTransition when the row was not in fromStatus, which
// callers treat as "someone else already did this".
func (r *TransactionRepository) TransitionByReference(ctx context.Context, reference, fromStatus, toStatus string, paymentRef *string) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $3, payment_ref = COALESCE($4, payment_ref), updated_at = NOW()
		WHERE reference = $1 AND status = $2
		RETURNING ` + txColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, reference, fromStatus, toStatus, paymentRef))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidTransition
	}
	return tx, err
}

// ClaimSubmission transitions completed -> submitting by transaction id.
// Exactly one of N concurrent fulfillers wins the claim; the rest get
// models.ErrInvalidTransition and must not place a supplier order.
func (r *TransactionRepository) ClaimSubmission(ctx context.Context, id string) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'submitting', updated_at = NOW()
		WHERE id = $1 AND status = 'completed'
		RETURNING ` + txColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidTransition
	}
	return tx, err
}

// ReleaseSubmission moves a claimed transaction back to completed after a
// failed supplier call so the retry pass can pick it up again.
func (r *TransactionRepository) ReleaseSubmission(ctx context.Context, id string) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'submitting'
		RETURNING ` + txColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidTransition
	}
	return tx, err
}

// MarkFulfilled transitions completed or submitting -> fulfilled by
// transaction id and records the gateway order reference. The status guard
// makes a second call a models.ErrInvalidTransition, never a second
// fulfillment.
func (r *TransactionRepository) MarkFulfilled(ctx context.Context, id string, orderRef *string) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'fulfilled', order_ref = COALESCE($2, order_ref), updated_at = NOW()
		WHERE id = $1 AND status IN ('completed', 'submitting')
		RETURNING ` + txColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id, orderRef))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidTransition
	}
	return tx, err
}

// FailPendingOlderThan reaps abandoned checkouts: pending transactions whose
// sessions were never completed.
func (r *TransactionRepository) FailPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE transactions SET status = 'failed', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ListUnfulfilled returns completed transactions that have sat unfulfilled
// since before the cutoff, oldest first. The reconciliation pass feeds these
// back through fulfillment.
func (r *TransactionRepository) ListUnfulfilled(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + txColumns + ` FROM transactions
		WHERE status = 'completed' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// ListByUser returns a user's purchase history, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + txColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}
