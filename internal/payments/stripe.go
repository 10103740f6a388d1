// Package payments wraps the Stripe hosted-checkout flow: session creation
// on the way out, signed completion events on the way back in.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"
	"github.com/tlux-store/tlux-api/internal/models"
)

// CheckoutSession is a created hosted-payment session the user is sent to.
type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedCheckout is the distilled content of a completion notification:
// our idempotency reference and the provider's payment reference.
type CompletedCheckout struct {
	Reference  string
	PaymentRef string
}

// CreateSessionParams describes one purchase being handed to the provider.
type CreateSessionParams struct {
	Reference   string
	ProductName string
	AmountUSD   float64
	SuccessURL  string
	CancelURL   string
}

// StripeProvider implements hosted checkout against Stripe.
type StripeProvider struct {
	webhookSecret string
	logger        *slog.Logger
}

func NewStripeProvider(secretKey, webhookSecret string, logger *slog.Logger) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateSession opens a hosted checkout session carrying our transaction
// reference both as client_reference_id and metadata, so the completion
// event can be correlated either way.
func (p *StripeProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(params.Reference),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.ProductName),
					},
					UnitAmount: stripe.Int64(USDToCents(params.AmountUSD)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	sessionParams.AddMetadata("tx_ref", params.Reference)

	s, err := session.New(sessionParams)
	if err != nil {
		p.logger.Error("failed to create checkout session",
			slog.String("reference", params.Reference),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.logger.Info("checkout session created",
		slog.String("reference", params.Reference),
		slog.String("session_id", s.ID))

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// VerifyEvent authenticates an inbound webhook payload and, when it is a
// checkout completion, extracts our reference. Other event types return
// (nil, nil): authenticated but not ours to process. A bad signature is
// models.ErrUnauthorized and nothing downstream may run.
func (p *StripeProvider) VerifyEvent(payload []byte, signatureHeader string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.logger.Warn("webhook signature verification failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	reference := ExtractReference(&cs)
	if reference == "" {
		return nil, models.ErrBadRequest
	}

	return &CompletedCheckout{
		Reference:  reference,
		PaymentRef: cs.ID,
	}, nil
}

// ExtractReference prefers the metadata reference and falls back to
// client_reference_id, matching how sessions are created.
func ExtractReference(cs *stripe.CheckoutSession) string {
	if ref, ok := cs.Metadata["tx_ref"]; ok && ref != "" {
		return ref
	}
	return cs.ClientReferenceID
}

// USDToCents converts a dollar amount to Stripe's integer cents.
func USDToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
