package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/gateway"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/pricing"
	"github.com/tlux-store/tlux-api/pkg/logger"
)

// LicenseRepository defines the interface for license database operations
type LicenseRepository interface {
	Create(ctx context.Context, license *models.License) (*models.License, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.License, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.License, error)
}

// FulfillmentUserStore is the user surface fulfillment needs
type FulfillmentUserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetAccess(ctx context.Context, userID, accessKey string, expiry time.Time) error
}

// FulfillmentLedger marks transactions fulfilled exactly once. Unlock
// fulfillment claims the transaction before calling the supplier so
// concurrent drivers cannot both place an order.
type FulfillmentLedger interface {
	ClaimSubmission(ctx context.Context, transactionID string) (*models.Transaction, error)
	ReleaseSubmission(ctx context.Context, transactionID string) (*models.Transaction, error)
	MarkFulfilled(ctx context.Context, transactionID string, orderRef *string) (*models.Transaction, error)
}

// UnlockGateway submits unlock orders to the supplier
type UnlockGateway interface {
	SubmitOrder(ctx context.Context, serviceID int, imei string) (*gateway.OrderResult, error)
}

// FulfillmentService turns a completed transaction into its side effect:
// a license grant for package purchases, a supplier order for unlocks.
// Fulfill is idempotent keyed by transaction id and safe to invoke from the
// webhook path, the reconciliation pass and the operator endpoint alike.
type FulfillmentService struct {
	licenses LicenseRepository
	users    FulfillmentUserStore
	ledger   FulfillmentLedger
	gateway  UnlockGateway
	mailer   EmailService
	clock    clock.Clock
	logger   *slog.Logger
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(licenses LicenseRepository, users FulfillmentUserStore, ledger FulfillmentLedger, gw UnlockGateway, mailer EmailService, clk clock.Clock, log *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		licenses: licenses,
		users:    users,
		ledger:   ledger,
		gateway:  gw,
		mailer:   mailer,
		clock:    clk,
		logger:   log,
	}
}

// Fulfill performs the side effect for a completed transaction and marks it
// fulfilled. Already fulfilled transactions are a no-op. A gateway failure
// leaves the transaction completed and retriable; nothing moves backward.
func (s *FulfillmentService) Fulfill(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	switch tx.Status {
	case models.TxFulfilled:
		s.logger.Info("transaction already fulfilled",
			slog.String("reference", tx.Reference))
		return tx, nil
	case models.TxCompleted:
		// proceed
	default:
		return nil, fmt.Errorf("cannot fulfill transaction in state %q: %w", tx.Status, models.ErrInvalidTransition)
	}

	switch tx.Purpose {
	case models.PurposePackage:
		return s.fulfillPackage(ctx, tx)
	case models.PurposeUnlock:
		return s.fulfillUnlock(ctx, tx)
	default:
		return nil, fmt.Errorf("unknown transaction purpose %q: %w", tx.Purpose, models.ErrBadRequest)
	}
}

func (s *FulfillmentService) fulfillPackage(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.Package == nil {
		return nil, fmt.Errorf("package transaction %s has no package name: %w", tx.Reference, models.ErrUnknownPackage)
	}
	pkg, err := pricing.PackageByName(*tx.Package)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.Reference, err)
	}

	user, err := s.users.GetByID(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user for fulfillment: %w", err)
	}

	license, err := s.mintLicense(ctx, tx, user, pkg)
	if err != nil {
		return nil, err
	}

	// Extend, never shorten: a user mid-window keeps the remaining days.
	if err := s.extendAccess(ctx, user, license); err != nil {
		return nil, err
	}

	fulfilled, err := s.ledger.MarkFulfilled(ctx, tx.ID, nil)
	if err != nil {
		return nil, err
	}

	if s.mailer != nil {
		// Best effort; fulfillment stands regardless of delivery.
		if mailErr := s.mailer.SendLicenseEmail(ctx, user.Email, license.Key, license.ExpiresAt); mailErr != nil {
			s.logger.Warn("failed to send license email",
				slog.String("email", logger.SanitizedEmail(user.Email)),
				slog.Any("error", mailErr))
		}
	}

	s.logger.Info("package fulfilled",
		slog.String("reference", tx.Reference),
		slog.String("package", pkg.Name),
		slog.Time("expires_at", license.ExpiresAt))

	return fulfilled, nil
}

// mintLicense creates the license row for the transaction. The uniqueness
// constraint on transaction_id turns a retry into ErrConflict, in which case
// the existing license is authoritative.
func (s *FulfillmentService) mintLicense(ctx context.Context, tx *models.Transaction, user *models.User, pkg pricing.Package) (*models.License, error) {
	now := s.clock.Now()

	expiry := now.Add(pkg.Duration)
	if user.AccessExpiry != nil && user.AccessExpiry.After(now) {
		expiry = user.AccessExpiry.Add(pkg.Duration)
	}

	license := &models.License{
		UserID:        tx.UserID,
		Key:           "TLUX-" + uuid.New().String(),
		Package:       pkg.Name,
		IssuedAt:      now,
		ExpiresAt:     expiry,
		TransactionID: tx.ID,
	}

	created, err := s.licenses.Create(ctx, license)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, models.ErrConflict) {
		existing, getErr := s.licenses.GetByTransactionID(ctx, tx.ID)
		if getErr != nil {
			return nil, getErr
		}
		return existing, nil
	}
	return nil, fmt.Errorf("failed to mint license: %w", err)
}

func (s *FulfillmentService) extendAccess(ctx context.Context, user *models.User, license *models.License) error {
	if user.AccessExpiry != nil && !user.AccessExpiry.Before(license.ExpiresAt) {
		return nil
	}
	if err := s.users.SetAccess(ctx, user.ID, license.Key, license.ExpiresAt); err != nil {
		return fmt.Errorf("failed to update access expiry: %w", err)
	}
	return nil
}

func (s *FulfillmentService) fulfillUnlock(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.DeviceModel == nil {
		return nil, fmt.Errorf("unlock transaction %s has no device model: %w", tx.Reference, models.ErrUnknownModel)
	}
	if tx.IMEI == nil || *tx.IMEI == "" {
		return nil, fmt.Errorf("unlock transaction %s has no IMEI: %w", tx.Reference, models.ErrBadRequest)
	}
	svc, err := pricing.UnlockByModel(*tx.DeviceModel)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.Reference, err)
	}

	// A retry that already holds an order reference only needs the final
	// transition.
	if tx.OrderRef != nil {
		fulfilled, err := s.ledger.MarkFulfilled(ctx, tx.ID, nil)
		if err != nil {
			return nil, err
		}
		s.logger.Info("unlock fulfilled",
			slog.String("reference", tx.Reference),
			slog.String("order_ref", *tx.OrderRef))
		return fulfilled, nil
	}

	// Claim before calling the supplier. The conditional update admits one
	// driver; concurrent callers fail here and never reach the gateway.
	if _, err := s.ledger.ClaimSubmission(ctx, tx.ID); err != nil {
		return nil, err
	}

	result, err := s.gateway.SubmitOrder(ctx, svc.ServiceID, *tx.IMEI)
	if err != nil {
		s.logger.Warn("unlock order submission failed",
			slog.String("reference", tx.Reference),
			slog.String("imei", logger.SanitizedIMEI(*tx.IMEI)),
			slog.Any("error", err))
		// Hand the claim back so the retry pass can resubmit.
		if _, relErr := s.ledger.ReleaseSubmission(ctx, tx.ID); relErr != nil {
			s.logger.Error("failed to release claimed transaction",
				slog.String("reference", tx.Reference),
				slog.Any("error", relErr))
		}
		return nil, err
	}
	orderRef := &result.ReferenceID

	fulfilled, err := s.ledger.MarkFulfilled(ctx, tx.ID, orderRef)
	if err != nil {
		return nil, err
	}

	s.logger.Info("unlock fulfilled",
		slog.String("reference", tx.Reference),
		slog.String("order_ref", *orderRef))

	return fulfilled, nil
}
