package services

import (
	"context"
	"time"

	"github.com/tlux-store/tlux-api/internal/gateway"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	ListFunc              func(ctx context.Context, limit, offset int) ([]*models.User, error)
	MarkEmailVerifiedFunc func(ctx context.Context, userID string) error
	SetAccessFunc         func(ctx context.Context, userID, accessKey string, expiry time.Time) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, userID)
	}
	return nil
}

func (m *MockUserRepository) SetAccess(ctx context.Context, userID, accessKey string, expiry time.Time) error {
	if m.SetAccessFunc != nil {
		return m.SetAccessFunc(ctx, userID, accessKey, expiry)
	}
	return nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordFunc              func(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailuresFunc func(ctx context.Context, email, ipAddress string, since time.Time) (int, error)
	DeleteExpiredFunc       func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) CountRecentFailures(ctx context.Context, email, ipAddress string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, email, ipAddress, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockBlockedEntryRepository implements BlockedEntryRepository for testing
type MockBlockedEntryRepository struct {
	UpsertFunc        func(ctx context.Context, email, ipAddress string, blockedUntil time.Time) error
	GetActiveFunc     func(ctx context.Context, email, ipAddress string, now time.Time) (*models.BlockedEntry, error)
	DeleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockBlockedEntryRepository) Upsert(ctx context.Context, email, ipAddress string, blockedUntil time.Time) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, email, ipAddress, blockedUntil)
	}
	return nil
}

func (m *MockBlockedEntryRepository) GetActive(ctx context.Context, email, ipAddress string, now time.Time) (*models.BlockedEntry, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, email, ipAddress, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlockedEntryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockVerificationRepository implements VerificationRepository for testing
type MockVerificationRepository struct {
	CreateTokenFunc            func(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.VerificationToken, error)
	GetTokenByHashFunc         func(ctx context.Context, tokenHash string) (*models.VerificationToken, error)
	ConsumeTokenVerifyUserFunc func(ctx context.Context, id, userID string, now time.Time) error
	CreateCodeFunc             func(ctx context.Context, userID *string, email, codeHash string, expiresAt time.Time) (*models.VerificationCode, error)
	GetLatestCodeByEmailFunc   func(ctx context.Context, email string) (*models.VerificationCode, error)
	InvalidateCodesFunc        func(ctx context.Context, email string, now time.Time) (int64, error)
	ConsumeCodeFunc            func(ctx context.Context, id string, now time.Time) error
	CleanupExpiredFunc         func(ctx context.Context, olderThan time.Time) (int64, error)
}

func (m *MockVerificationRepository) CreateToken(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.VerificationToken, error) {
	if m.CreateTokenFunc != nil {
		return m.CreateTokenFunc(ctx, userID, tokenHash, email, expiresAt)
	}
	return &models.VerificationToken{ID: "token_1", UserID: userID, TokenHash: tokenHash, Email: email, ExpiresAt: expiresAt}, nil
}

func (m *MockVerificationRepository) GetTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
	if m.GetTokenByHashFunc != nil {
		return m.GetTokenByHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationRepository) ConsumeTokenVerifyUser(ctx context.Context, id, userID string, now time.Time) error {
	if m.ConsumeTokenVerifyUserFunc != nil {
		return m.ConsumeTokenVerifyUserFunc(ctx, id, userID, now)
	}
	return nil
}

func (m *MockVerificationRepository) CreateCode(ctx context.Context, userID *string, email, codeHash string, expiresAt time.Time) (*models.VerificationCode, error) {
	if m.CreateCodeFunc != nil {
		return m.CreateCodeFunc(ctx, userID, email, codeHash, expiresAt)
	}
	return &models.VerificationCode{ID: "code_1", UserID: userID, Email: email, CodeHash: codeHash, ExpiresAt: expiresAt}, nil
}

func (m *MockVerificationRepository) GetLatestCodeByEmail(ctx context.Context, email string) (*models.VerificationCode, error) {
	if m.GetLatestCodeByEmailFunc != nil {
		return m.GetLatestCodeByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationRepository) InvalidateCodes(ctx context.Context, email string, now time.Time) (int64, error) {
	if m.InvalidateCodesFunc != nil {
		return m.InvalidateCodesFunc(ctx, email, now)
	}
	return 0, nil
}

func (m *MockVerificationRepository) ConsumeCode(ctx context.Context, id string, now time.Time) error {
	if m.ConsumeCodeFunc != nil {
		return m.ConsumeCodeFunc(ctx, id, now)
	}
	return nil
}

func (m *MockVerificationRepository) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx, olderThan)
	}
	return 0, nil
}

// MockTransactionRepository implements TransactionRepository for testing
type MockTransactionRepository struct {
	CreateFunc                func(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByReferenceFunc        func(ctx context.Context, reference string) (*models.Transaction, error)
	GetByIDFunc               func(ctx context.Context, id string) (*models.Transaction, error)
	TransitionByReferenceFunc func(ctx context.Context, reference, fromStatus, toStatus string, paymentRef *string) (*models.Transaction, error)
	ClaimSubmissionFunc       func(ctx context.Context, id string) (*models.Transaction, error)
	ReleaseSubmissionFunc     func(ctx context.Context, id string) (*models.Transaction, error)
	MarkFulfilledFunc         func(ctx context.Context, id string, orderRef *string) (*models.Transaction, error)
	FailPendingOlderThanFunc  func(ctx context.Context, cutoff time.Time) (int64, error)
	ListUnfulfilledFunc       func(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error)
	ListByUserFunc            func(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	out := *tx
	out.ID = "tx_1"
	out.Status = models.TxPending
	return &out, nil
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, reference)
	}
	return nil, models.ErrUnknownTransaction
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockTransactionRepository) TransitionByReference(ctx context.Context, reference, fromStatus, toStatus string, paymentRef *string) (*models.Transaction, error) {
	if m.TransitionByReferenceFunc != nil {
		return m.TransitionByReferenceFunc(ctx, reference, fromStatus, toStatus, paymentRef)
	}
	return nil, models.ErrInvalidTransition
}

func (m *MockTransactionRepository) ClaimSubmission(ctx context.Context, id string) (*models.Transaction, error) {
	if m.ClaimSubmissionFunc != nil {
		return m.ClaimSubmissionFunc(ctx, id)
	}
	return &models.Transaction{ID: id, Status: models.TxSubmitting}, nil
}

func (m *MockTransactionRepository) ReleaseSubmission(ctx context.Context, id string) (*models.Transaction, error) {
	if m.ReleaseSubmissionFunc != nil {
		return m.ReleaseSubmissionFunc(ctx, id)
	}
	return &models.Transaction{ID: id, Status: models.TxCompleted}, nil
}

func (m *MockTransactionRepository) MarkFulfilled(ctx context.Context, id string, orderRef *string) (*models.Transaction, error) {
	if m.MarkFulfilledFunc != nil {
		return m.MarkFulfilledFunc(ctx, id, orderRef)
	}
	return nil, models.ErrInvalidTransition
}

func (m *MockTransactionRepository) FailPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.FailPendingOlderThanFunc != nil {
		return m.FailPendingOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *MockTransactionRepository) ListUnfulfilled(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	if m.ListUnfulfilledFunc != nil {
		return m.ListUnfulfilledFunc(ctx, cutoff, limit)
	}
	return []*models.Transaction{}, nil
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return []*models.Transaction{}, nil
}

// MockLicenseRepository implements LicenseRepository for testing
type MockLicenseRepository struct {
	CreateFunc             func(ctx context.Context, license *models.License) (*models.License, error)
	GetByTransactionIDFunc func(ctx context.Context, transactionID string) (*models.License, error)
	ListByUserFunc         func(ctx context.Context, userID string, limit int) ([]*models.License, error)
}

func (m *MockLicenseRepository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, license)
	}
	out := *license
	out.ID = "lic_1"
	return &out, nil
}

func (m *MockLicenseRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.License, error) {
	if m.GetByTransactionIDFunc != nil {
		return m.GetByTransactionIDFunc(ctx, transactionID)
	}
	return nil, models.ErrNotFound
}

func (m *MockLicenseRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.License, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return []*models.License{}, nil
}

// MockLedger implements FulfillmentLedger / WebhookLedger / CheckoutLedger for testing
type MockLedger struct {
	OpenFunc              func(ctx context.Context, params OpenParams) (*models.Transaction, error)
	CompleteFunc          func(ctx context.Context, reference string, paymentRef *string) (*models.Transaction, error)
	GetFunc               func(ctx context.Context, reference string) (*models.Transaction, error)
	ClaimSubmissionFunc   func(ctx context.Context, transactionID string) (*models.Transaction, error)
	ReleaseSubmissionFunc func(ctx context.Context, transactionID string) (*models.Transaction, error)
	MarkFulfilledFunc     func(ctx context.Context, transactionID string, orderRef *string) (*models.Transaction, error)
}

func (m *MockLedger) Open(ctx context.Context, params OpenParams) (*models.Transaction, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, params)
	}
	return &models.Transaction{ID: "tx_1", Reference: "TLUXPKG-test-ref", UserID: params.UserID,
		Purpose: params.Purpose, Package: params.Package, DeviceModel: params.DeviceModel,
		IMEI: params.IMEI, Amount: params.Amount, Status: models.TxPending}, nil
}

func (m *MockLedger) Complete(ctx context.Context, reference string, paymentRef *string) (*models.Transaction, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, reference, paymentRef)
	}
	return nil, models.ErrUnknownTransaction
}

func (m *MockLedger) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, reference)
	}
	return nil, models.ErrUnknownTransaction
}

func (m *MockLedger) ClaimSubmission(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if m.ClaimSubmissionFunc != nil {
		return m.ClaimSubmissionFunc(ctx, transactionID)
	}
	return &models.Transaction{ID: transactionID, Status: models.TxSubmitting}, nil
}

func (m *MockLedger) ReleaseSubmission(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if m.ReleaseSubmissionFunc != nil {
		return m.ReleaseSubmissionFunc(ctx, transactionID)
	}
	return &models.Transaction{ID: transactionID, Status: models.TxCompleted}, nil
}

func (m *MockLedger) MarkFulfilled(ctx context.Context, transactionID string, orderRef *string) (*models.Transaction, error) {
	if m.MarkFulfilledFunc != nil {
		return m.MarkFulfilledFunc(ctx, transactionID, orderRef)
	}
	return nil, models.ErrInvalidTransition
}

// MockFulfiller implements Fulfiller for testing
type MockFulfiller struct {
	FulfillFunc func(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
}

func (m *MockFulfiller) Fulfill(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if m.FulfillFunc != nil {
		return m.FulfillFunc(ctx, tx)
	}
	return tx, nil
}

// MockUnlockGateway implements UnlockGateway for testing
type MockUnlockGateway struct {
	SubmitOrderFunc func(ctx context.Context, serviceID int, imei string) (*gateway.OrderResult, error)
}

func (m *MockUnlockGateway) SubmitOrder(ctx context.Context, serviceID int, imei string) (*gateway.OrderResult, error) {
	if m.SubmitOrderFunc != nil {
		return m.SubmitOrderFunc(ctx, serviceID, imei)
	}
	return &gateway.OrderResult{ReferenceID: "ORD-1", Status: "SUCCESS"}, nil
}

// MockPaymentProvider implements PaymentProvider for testing
type MockPaymentProvider struct {
	CreateSessionFunc func(ctx context.Context, params payments.CreateSessionParams) (*payments.CheckoutSession, error)
}

func (m *MockPaymentProvider) CreateSession(ctx context.Context, params payments.CreateSessionParams) (*payments.CheckoutSession, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, params)
	}
	return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendCodeEmailFunc         func(ctx context.Context, email, code string, ttl time.Duration) error
	SendLicenseEmailFunc      func(ctx context.Context, email, accessKey string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendCodeEmail(ctx context.Context, email, code string, ttl time.Duration) error {
	if m.SendCodeEmailFunc != nil {
		return m.SendCodeEmailFunc(ctx, email, code, ttl)
	}
	return nil
}

func (m *MockEmailService) SendLicenseEmail(ctx context.Context, email, accessKey string, expiresAt time.Time) error {
	if m.SendLicenseEmailFunc != nil {
		return m.SendLicenseEmailFunc(ctx, email, accessKey, expiresAt)
	}
	return nil
}

// MockVerifier implements SecretVerifier for testing
type MockVerifier struct {
	IssueTokenFunc  func(ctx context.Context, userID, email string) (string, time.Time, error)
	RedeemTokenFunc func(ctx context.Context, token string) (*models.VerificationToken, error)
	IssueCodeFunc   func(ctx context.Context, userID *string, email string) (string, error)
	RedeemCodeFunc  func(ctx context.Context, email, code string) (*models.VerificationCode, error)
}

func (m *MockVerifier) IssueToken(ctx context.Context, userID, email string) (string, time.Time, error) {
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(ctx, userID, email)
	}
	return "test-token", time.Now().Add(48 * time.Hour), nil
}

func (m *MockVerifier) RedeemToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	if m.RedeemTokenFunc != nil {
		return m.RedeemTokenFunc(ctx, token)
	}
	return nil, models.ErrSecretInvalid
}

func (m *MockVerifier) IssueCode(ctx context.Context, userID *string, email string) (string, error) {
	if m.IssueCodeFunc != nil {
		return m.IssueCodeFunc(ctx, userID, email)
	}
	return "482913", nil
}

func (m *MockVerifier) RedeemCode(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	if m.RedeemCodeFunc != nil {
		return m.RedeemCodeFunc(ctx, email, code)
	}
	return nil, models.ErrSecretInvalid
}

// MockRateLimiter implements LoginRateLimiter for testing
type MockRateLimiter struct {
	IsBlockedFunc     func(ctx context.Context, email, ipAddress string) (bool, time.Duration, error)
	RecordAttemptFunc func(ctx context.Context, email, ipAddress, outcome string) (bool, error)
}

func (m *MockRateLimiter) IsBlocked(ctx context.Context, email, ipAddress string) (bool, time.Duration, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, email, ipAddress)
	}
	return false, 0, nil
}

func (m *MockRateLimiter) RecordAttempt(ctx context.Context, email, ipAddress, outcome string) (bool, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, email, ipAddress, outcome)
	}
	return false, nil
}
