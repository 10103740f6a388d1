package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
	pkghttp "github.com/tlux-store/tlux-api/pkg/http"
)

// EventVerifier authenticates inbound payment notifications
type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*payments.CompletedCheckout, error)
}

// WebhookProcessor drives the ledger from verified notifications
type WebhookProcessor interface {
	Process(ctx context.Context, checkout *payments.CompletedCheckout) (*models.Transaction, error)
}

// WebhookHandler receives payment provider notifications. Response codes
// steer the provider's retry policy: 2xx stops delivery (including
// idempotent no-ops), 4xx rejects for good, 5xx asks for a retry.
type WebhookHandler struct {
	verifier  EventVerifier
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(verifier EventVerifier, processor WebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
}

// HandleStripe processes a Stripe webhook delivery
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Unable to read payload")
		return
	}

	checkout, err := h.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		// Signature failures are rejected before any state mutation and
		// must not be retried.
		h.logger.Warn("webhook signature verification failed", slog.Any("error", err))
		pkghttp.WriteBadRequest(w, "Invalid signature")
		return
	}
	if checkout == nil {
		// Event type we don't consume. Acknowledge so the provider
		// stops sending it.
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	tx, err := h.processor.Process(r.Context(), checkout)
	if err != nil {
		if errors.Is(err, models.ErrUnknownTransaction) {
			h.logger.Warn("webhook for unknown reference",
				slog.String("reference", checkout.Reference))
			pkghttp.WriteNotFound(w, "Unknown transaction reference")
			return
		}
		// Completion may have landed; a 5xx makes the provider redeliver
		// and the retry resumes at fulfillment.
		h.logger.Error("webhook processing failed",
			slog.String("reference", checkout.Reference),
			slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusBadGateway, "processing_failed", "Processing failed, retry expected")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "processed",
		"reference": tx.Reference,
	})
}
