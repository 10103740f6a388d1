package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/pkg/logger"
)

// VerificationRepository defines the interface for verification secret storage
type VerificationRepository interface {
	CreateToken(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.VerificationToken, error)
	GetTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error)
	ConsumeTokenVerifyUser(ctx context.Context, id, userID string, now time.Time) error
	CreateCode(ctx context.Context, userID *string, email, codeHash string, expiresAt time.Time) (*models.VerificationCode, error)
	GetLatestCodeByEmail(ctx context.Context, email string) (*models.VerificationCode, error)
	InvalidateCodes(ctx context.Context, email string, now time.Time) (int64, error)
	ConsumeCode(ctx context.Context, id string, now time.Time) error
	CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// VerificationConfig holds secret lifetimes
type VerificationConfig struct {
	TokenTTL   time.Duration
	CodeTTL    time.Duration
	CodeLength int
}

// VerificationService issues and redeems single-use verification secrets:
// opaque link tokens for email verification and short numeric codes for
// one-time confirmation. Only digests are stored; redemption is single-use
// via conditional consume in the repository.
type VerificationService struct {
	repo   VerificationRepository
	config VerificationConfig
	clock  clock.Clock
	logger *slog.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(repo VerificationRepository, config VerificationConfig, clk clock.Clock, log *slog.Logger) *VerificationService {
	return &VerificationService{
		repo:   repo,
		config: config,
		clock:  clk,
		logger: log,
	}
}

// IssueToken mints a link token for the user and returns the plaintext token
// along with its expiry. The plaintext exists only in the return value;
// storage holds its digest.
func (s *VerificationService) IssueToken(ctx context.Context, userID, email string) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate verification token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expiresAt := s.clock.Now().Add(s.config.TokenTTL)
	if _, err := s.repo.CreateToken(ctx, userID, hashSecret(token), email, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store verification token: %w", err)
	}

	return token, expiresAt, nil
}

// RedeemToken validates and consumes a link token, marking the owning user's
// email verified. A second redemption of the same token fails with
// ErrSecretAlreadyUsed regardless of timing.
func (s *VerificationService) RedeemToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	record, err := s.repo.GetTokenByHash(ctx, hashSecret(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSecretInvalid
		}
		return nil, fmt.Errorf("failed to look up verification token: %w", err)
	}

	// A consumed token stays consumed; report that over expiry when both
	// apply.
	now := s.clock.Now()
	if record.IsUsed() {
		return nil, models.ErrSecretAlreadyUsed
	}
	if record.IsExpired(now) {
		return nil, models.ErrSecretExpired
	}

	// The conditional consume is authoritative; concurrent redeemers past
	// the checks above lose here. Consume and the user flag commit in one
	// transaction.
	if err := s.repo.ConsumeTokenVerifyUser(ctx, record.ID, record.UserID, now); err != nil {
		return nil, err
	}

	s.logger.Info("email verified",
		slog.String("user_id", record.UserID),
		slog.String("email", logger.SanitizedEmail(record.Email)))

	return record, nil
}

// IssueCode mints a numeric one-time code for the email and returns the
// plaintext code. Issuing invalidates any prior unconsumed codes for the
// same email, so only the latest code can ever redeem.
func (s *VerificationService) IssueCode(ctx context.Context, userID *string, email string) (string, error) {
	code, err := generateNumericCode(s.config.CodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.clock.Now()
	if _, err := s.repo.InvalidateCodes(ctx, email, now); err != nil {
		return "", fmt.Errorf("failed to invalidate prior codes: %w", err)
	}

	expiresAt := now.Add(s.config.CodeTTL)
	if _, err := s.repo.CreateCode(ctx, userID, email, hashSecret(code), expiresAt); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	return code, nil
}

// RedeemCode validates and consumes the latest code issued for the email.
// Digest comparison is constant-time.
func (s *VerificationService) RedeemCode(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	record, err := s.repo.GetLatestCodeByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSecretInvalid
		}
		return nil, fmt.Errorf("failed to look up verification code: %w", err)
	}

	now := s.clock.Now()
	if record.IsUsed() {
		return nil, models.ErrSecretAlreadyUsed
	}
	if record.IsExpired(now) {
		return nil, models.ErrSecretExpired
	}

	if subtle.ConstantTimeCompare([]byte(record.CodeHash), []byte(hashSecret(code))) != 1 {
		return nil, models.ErrSecretInvalid
	}

	if err := s.repo.ConsumeCode(ctx, record.ID, now); err != nil {
		return nil, err
	}

	return record, nil
}

// CleanupExpired purges expired secrets, returning the number removed.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.CleanupExpired(ctx, s.clock.Now())
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func generateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
