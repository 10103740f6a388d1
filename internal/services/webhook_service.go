package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
)

// WebhookLedger is the ledger surface webhook processing drives
type WebhookLedger interface {
	Complete(ctx context.Context, reference string, paymentRef *string) (*models.Transaction, error)
	Get(ctx context.Context, reference string) (*models.Transaction, error)
}

// Fulfiller performs the side effect of a completed transaction
type Fulfiller interface {
	Fulfill(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
}

// WebhookService drives the ledger and fulfillment from verified payment
// completion notifications. Signature verification happens at the handler;
// everything past this point assumes an authentic event. Duplicate
// deliveries collapse in the ledger, so processing the same reference twice
// yields one fulfillment.
type WebhookService struct {
	ledger    WebhookLedger
	fulfiller Fulfiller
	logger    *slog.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(ledger WebhookLedger, fulfiller Fulfiller, log *slog.Logger) *WebhookService {
	return &WebhookService{
		ledger:    ledger,
		fulfiller: fulfiller,
		logger:    log,
	}
}

// Process completes the referenced transaction and runs fulfillment.
// ErrUnknownTransaction surfaces to the handler as a rejection the provider
// must not retry; a fulfillment failure after completion surfaces as a
// retriable error, and the retry resumes at fulfillment.
func (s *WebhookService) Process(ctx context.Context, checkout *payments.CompletedCheckout) (*models.Transaction, error) {
	paymentRef := checkout.PaymentRef

	tx, err := s.ledger.Complete(ctx, checkout.Reference, &paymentRef)
	if err != nil {
		s.logger.Warn("webhook completion rejected",
			slog.String("reference", checkout.Reference),
			slog.Any("error", err))
		return nil, err
	}

	fulfilled, err := s.fulfiller.Fulfill(ctx, tx)
	if err != nil {
		s.logger.Error("fulfillment failed after completion",
			slog.String("reference", tx.Reference),
			slog.Any("error", err))
		return nil, fmt.Errorf("fulfillment for %s: %w", tx.Reference, err)
	}

	return fulfilled, nil
}

// Reprocess re-runs fulfillment for a reference. Used by the operator
// endpoint and the reconciliation pass; the ledger's state guard makes it
// safe for any state a transaction can be in.
func (s *WebhookService) Reprocess(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := s.ledger.Get(ctx, reference)
	if err != nil {
		return nil, err
	}

	fulfilled, err := s.fulfiller.Fulfill(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("re-fulfillment for %s: %w", reference, err)
	}

	s.logger.Info("transaction reprocessed", slog.String("reference", reference))
	return fulfilled, nil
}
