package handlers

import (
	"context"
	"time"

	"github.com/tlux-store/tlux-api/internal/gateway"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
	"github.com/tlux-store/tlux-api/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, email, password, name, ipAddress string) (*models.User, error)
	LoginFunc              func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, time.Duration, error)
	RefreshFunc            func(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	VerifyEmailFunc        func(ctx context.Context, token string) error
	ResendVerificationFunc func(ctx context.Context, email string) error
	RequestCodeFunc        func(ctx context.Context, email string) error
	ConfirmCodeFunc        func(ctx context.Context, email, code string) error
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name, ipAddress string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name, ipAddress)
	}
	return &models.User{ID: "user-1", Email: email, Name: name}, nil
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, time.Duration, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress)
	}
	return nil, 0, models.ErrInvalidCredentials
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return models.ErrSecretInvalid
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) RequestCode(ctx context.Context, email string) error {
	if m.RequestCodeFunc != nil {
		return m.RequestCodeFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ConfirmCode(ctx context.Context, email, code string) error {
	if m.ConfirmCodeFunc != nil {
		return m.ConfirmCodeFunc(ctx, email, code)
	}
	return models.ErrSecretInvalid
}

// MockEventVerifier implements EventVerifier for testing
type MockEventVerifier struct {
	VerifyEventFunc func(payload []byte, signatureHeader string) (*payments.CompletedCheckout, error)
}

func (m *MockEventVerifier) VerifyEvent(payload []byte, signatureHeader string) (*payments.CompletedCheckout, error) {
	if m.VerifyEventFunc != nil {
		return m.VerifyEventFunc(payload, signatureHeader)
	}
	return nil, models.ErrUnauthorized
}

// MockWebhookProcessor implements WebhookProcessor for testing
type MockWebhookProcessor struct {
	ProcessFunc func(ctx context.Context, checkout *payments.CompletedCheckout) (*models.Transaction, error)
}

func (m *MockWebhookProcessor) Process(ctx context.Context, checkout *payments.CompletedCheckout) (*models.Transaction, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, checkout)
	}
	return nil, models.ErrUnknownTransaction
}

// MockCheckoutService implements CheckoutServiceInterface for testing
type MockCheckoutService struct {
	PurchasePackageFunc func(ctx context.Context, userID, packageName string) (*models.Transaction, *payments.CheckoutSession, error)
	PurchaseUnlockFunc  func(ctx context.Context, userID, model, imei string) (*models.Transaction, *payments.CheckoutSession, error)
}

func (m *MockCheckoutService) PurchasePackage(ctx context.Context, userID, packageName string) (*models.Transaction, *payments.CheckoutSession, error) {
	if m.PurchasePackageFunc != nil {
		return m.PurchasePackageFunc(ctx, userID, packageName)
	}
	return nil, nil, models.ErrUnknownPackage
}

func (m *MockCheckoutService) PurchaseUnlock(ctx context.Context, userID, model, imei string) (*models.Transaction, *payments.CheckoutSession, error) {
	if m.PurchaseUnlockFunc != nil {
		return m.PurchaseUnlockFunc(ctx, userID, model, imei)
	}
	return nil, nil, models.ErrUnknownModel
}

// MockAdminLedger implements AdminServiceInterface for testing
type MockAdminLedger struct {
	GetFunc func(ctx context.Context, reference string) (*models.Transaction, error)
}

func (m *MockAdminLedger) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, reference)
	}
	return nil, models.ErrUnknownTransaction
}

// MockReprocessor implements Reprocessor for testing
type MockReprocessor struct {
	ReprocessFunc func(ctx context.Context, reference string) (*models.Transaction, error)
}

func (m *MockReprocessor) Reprocess(ctx context.Context, reference string) (*models.Transaction, error) {
	if m.ReprocessFunc != nil {
		return m.ReprocessFunc(ctx, reference)
	}
	return nil, models.ErrUnknownTransaction
}

// MockOrderQuerier implements OrderStatusQuerier for testing
type MockOrderQuerier struct {
	QueryOrderFunc func(ctx context.Context, orderRef string) (*gateway.OrderResult, error)
}

func (m *MockOrderQuerier) QueryOrder(ctx context.Context, orderRef string) (*gateway.OrderResult, error) {
	if m.QueryOrderFunc != nil {
		return m.QueryOrderFunc(ctx, orderRef)
	}
	return nil, models.ErrGatewayUnavailable
}
