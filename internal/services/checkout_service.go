package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
	"github.com/tlux-store/tlux-api/internal/pricing"
)

// CheckoutLedger opens pending transactions for new purchases
type CheckoutLedger interface {
	Open(ctx context.Context, params OpenParams) (*models.Transaction, error)
}

// PaymentProvider creates hosted checkout sessions
type PaymentProvider interface {
	CreateSession(ctx context.Context, params payments.CreateSessionParams) (*payments.CheckoutSession, error)
}

// CheckoutService turns a purchase intent into a pending ledger entry plus a
// hosted payment session carrying the idempotency reference.
type CheckoutService struct {
	ledger     CheckoutLedger
	provider   PaymentProvider
	successURL string
	cancelURL  string
	logger     *slog.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(ledger CheckoutLedger, provider PaymentProvider, successURL, cancelURL string, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		ledger:     ledger,
		provider:   provider,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     log,
	}
}

// PurchasePackage opens a package purchase and returns the checkout session
// the user should be redirected to.
func (s *CheckoutService) PurchasePackage(ctx context.Context, userID, packageName string) (*models.Transaction, *payments.CheckoutSession, error) {
	pkg, err := pricing.PackageByName(packageName)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.ledger.Open(ctx, OpenParams{
		UserID:  userID,
		Purpose: models.PurposePackage,
		Amount:  pkg.Price,
		Package: &pkg.Name,
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, tx, fmt.Sprintf("T-Lux %s package", pkg.Name))
	if err != nil {
		return nil, nil, err
	}

	return tx, session, nil
}

// PurchaseUnlock opens an unlock purchase for a device and returns the
// checkout session. The IMEI rides on the transaction and is submitted to
// the supplier only after payment completes.
func (s *CheckoutService) PurchaseUnlock(ctx context.Context, userID, model, imei string) (*models.Transaction, *payments.CheckoutSession, error) {
	svc, err := pricing.UnlockByModel(model)
	if err != nil {
		return nil, nil, err
	}

	cost := svc.SupplierCost
	tx, err := s.ledger.Open(ctx, OpenParams{
		UserID:       userID,
		Purpose:      models.PurposeUnlock,
		Amount:       svc.SellPrice,
		DeviceModel:  &svc.Model,
		IMEI:         &imei,
		SupplierCost: &cost,
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, tx, fmt.Sprintf("Unlock %s", svc.Model))
	if err != nil {
		return nil, nil, err
	}

	return tx, session, nil
}

func (s *CheckoutService) createSession(ctx context.Context, tx *models.Transaction, productName string) (*payments.CheckoutSession, error) {
	session, err := s.provider.CreateSession(ctx, payments.CreateSessionParams{
		Reference:   tx.Reference,
		ProductName: productName,
		AmountUSD:   tx.Amount,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session for %s: %w", tx.Reference, err)
	}

	s.logger.Info("checkout session created",
		slog.String("reference", tx.Reference),
		slog.String("session_id", session.ID))

	return session, nil
}
