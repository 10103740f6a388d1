package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
)

// TransactionRepository defines the interface for ledger database operations
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	TransitionByReference(ctx context.Context, reference, fromStatus, toStatus string, paymentRef *string) (*models.Transaction, error)
	ClaimSubmission(ctx context.Context, id string) (*models.Transaction, error)
	ReleaseSubmission(ctx context.Context, id string) (*models.Transaction, error)
	MarkFulfilled(ctx context.Context, id string, orderRef *string) (*models.Transaction, error)
	FailPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListUnfulfilled(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
}

// OpenParams describes a purchase intent entering the ledger.
type OpenParams struct {
	UserID       string
	Purpose      string
	Amount       float64
	Package      *string
	DeviceModel  *string
	IMEI         *string
	SupplierCost *float64
}

// LedgerService owns the transaction state machine:
// pending -> completed -> fulfilled, or pending -> failed, with unlock
// fulfillments holding submitting between completed and fulfilled while
// their supplier order is in flight. Every transition rides a conditional
// update in the repository, so duplicate drivers (webhook retries, operator
// re-runs) collapse to no-ops.
type LedgerService struct {
	repo   TransactionRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo TransactionRepository, clk clock.Clock, log *slog.Logger) *LedgerService {
	return &LedgerService{repo: repo, clock: clk, logger: log}
}

// Open creates a pending transaction with a fresh idempotency reference and
// returns it. The reference is handed to the payment provider and correlates
// the eventual completion notification back to this row.
func (s *LedgerService) Open(ctx context.Context, params OpenParams) (*models.Transaction, error) {
	reference, err := s.newReference(params.Purpose, params.UserID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Reference:    reference,
		UserID:       params.UserID,
		Purpose:      params.Purpose,
		Package:      params.Package,
		DeviceModel:  params.DeviceModel,
		IMEI:         params.IMEI,
		Amount:       params.Amount,
		SupplierCost: params.SupplierCost,
	}

	created, err := s.repo.Create(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}

	s.logger.Info("transaction opened",
		slog.String("reference", created.Reference),
		slog.String("purpose", created.Purpose),
		slog.Float64("amount", created.Amount))

	return created, nil
}

// Complete transitions pending -> completed and records the provider's
// payment reference. Completing an already completed or fulfilled
// transaction is an idempotent no-op returning the existing record.
func (s *LedgerService) Complete(ctx context.Context, reference string, paymentRef *string) (*models.Transaction, error) {
	tx, err := s.repo.TransitionByReference(ctx, reference, models.TxPending, models.TxCompleted, paymentRef)
	if err == nil {
		s.logger.Info("transaction completed", slog.String("reference", reference))
		return tx, nil
	}
	if !errors.Is(err, models.ErrInvalidTransition) {
		return nil, fmt.Errorf("failed to complete transaction: %w", err)
	}

	// Not pending anymore. Either a duplicate notification (fine) or a
	// genuinely wrong state.
	current, getErr := s.repo.GetByReference(ctx, reference)
	if getErr != nil {
		return nil, getErr
	}
	switch current.Status {
	case models.TxCompleted, models.TxSubmitting, models.TxFulfilled:
		s.logger.Info("duplicate completion ignored",
			slog.String("reference", reference),
			slog.String("status", current.Status))
		return current, nil
	default:
		return nil, fmt.Errorf("cannot complete transaction in state %q: %w", current.Status, models.ErrInvalidTransition)
	}
}

// Fail transitions pending -> failed. Failing an already failed transaction
// is a no-op; failing a completed or fulfilled one is an error.
func (s *LedgerService) Fail(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := s.repo.TransitionByReference(ctx, reference, models.TxPending, models.TxFailed, nil)
	if err == nil {
		s.logger.Info("transaction failed", slog.String("reference", reference))
		return tx, nil
	}
	if !errors.Is(err, models.ErrInvalidTransition) {
		return nil, fmt.Errorf("failed to fail transaction: %w", err)
	}

	current, getErr := s.repo.GetByReference(ctx, reference)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == models.TxFailed {
		return current, nil
	}
	return nil, fmt.Errorf("cannot fail transaction in state %q: %w", current.Status, models.ErrInvalidTransition)
}

// ClaimSubmission reserves an unlock transaction for one supplier order:
// completed -> submitting. Concurrent fulfillers race on the conditional
// update and only the winner may call the gateway.
func (s *LedgerService) ClaimSubmission(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.ClaimSubmission(ctx, transactionID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil, fmt.Errorf("transaction %s is not claimable: %w", transactionID, err)
		}
		return nil, fmt.Errorf("failed to claim transaction: %w", err)
	}

	s.logger.Info("submission claimed",
		slog.String("reference", tx.Reference),
		slog.String("transaction_id", transactionID))
	return tx, nil
}

// ReleaseSubmission undoes a claim after a failed supplier call, returning
// the transaction to completed so the retry pass sees it again.
func (s *LedgerService) ReleaseSubmission(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.ReleaseSubmission(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to release transaction: %w", err)
	}

	s.logger.Info("submission released",
		slog.String("reference", tx.Reference),
		slog.String("transaction_id", transactionID))
	return tx, nil
}

// MarkFulfilled transitions completed -> fulfilled by transaction id,
// recording the gateway order reference. A second call for an already
// fulfilled transaction is a no-op returning the existing record; that is
// the ledger's exactly-once guarantee.
func (s *LedgerService) MarkFulfilled(ctx context.Context, transactionID string, orderRef *string) (*models.Transaction, error) {
	tx, err := s.repo.MarkFulfilled(ctx, transactionID, orderRef)
	if err == nil {
		s.logger.Info("transaction fulfilled",
			slog.String("reference", tx.Reference),
			slog.String("transaction_id", transactionID))
		return tx, nil
	}
	if !errors.Is(err, models.ErrInvalidTransition) {
		return nil, fmt.Errorf("failed to mark transaction fulfilled: %w", err)
	}

	current, getErr := s.repo.GetByID(ctx, transactionID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == models.TxFulfilled {
		s.logger.Info("duplicate fulfillment ignored",
			slog.String("reference", current.Reference))
		return current, nil
	}
	return nil, fmt.Errorf("cannot fulfill transaction in state %q: %w", current.Status, models.ErrInvalidTransition)
}

// Get returns the transaction for an idempotency reference.
func (s *LedgerService) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.repo.GetByReference(ctx, reference)
}

// ListByUser returns a user's purchase history, newest first.
func (s *LedgerService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// ReapPending marks pending transactions older than maxAge as failed and
// returns how many were reaped.
func (s *LedgerService) ReapPending(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-maxAge)
	return s.repo.FailPendingOlderThan(ctx, cutoff)
}

// ListUnfulfilled returns completed transactions that have waited at least
// minAge for fulfillment, oldest first.
func (s *LedgerService) ListUnfulfilled(ctx context.Context, minAge time.Duration, limit int) ([]*models.Transaction, error) {
	cutoff := s.clock.Now().Add(-minAge)
	return s.repo.ListUnfulfilled(ctx, cutoff, limit)
}

// newReference builds a purchase reference of the form
// TLUXPKG-<user>-<12 hex>-<unix> (TLUXULK for unlock orders).
func (s *LedgerService) newReference(purpose, userID string) (string, error) {
	prefix := "TLUXPKG"
	if purpose == models.PurposeUnlock {
		prefix = "TLUXULK"
	}

	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reference: %w", err)
	}

	uid := userID
	if len(uid) > 8 {
		uid = uid[:8]
	}

	return fmt.Sprintf("%s-%s-%s-%d", prefix, uid, hex.EncodeToString(raw), s.clock.Now().Unix()), nil
}
