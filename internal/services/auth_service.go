package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tlux-store/tlux-api/internal/auth"
	"github.com/tlux-store/tlux-api/internal/models"
	pkgauth "github.com/tlux-store/tlux-api/pkg/auth"
	"github.com/tlux-store/tlux-api/pkg/logger"
)

// UserRepository defines the interface for user database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	SetAccess(ctx context.Context, userID, accessKey string, expiry time.Time) error
}

// LoginRateLimiter gates credential checks behind the failed-attempt policy
type LoginRateLimiter interface {
	IsBlocked(ctx context.Context, email, ipAddress string) (bool, time.Duration, error)
	RecordAttempt(ctx context.Context, email, ipAddress, outcome string) (bool, error)
}

// SecretVerifier issues and redeems verification secrets
type SecretVerifier interface {
	IssueToken(ctx context.Context, userID, email string) (string, time.Time, error)
	RedeemToken(ctx context.Context, token string) (*models.VerificationToken, error)
	IssueCode(ctx context.Context, userID *string, email string) (string, error)
	RedeemCode(ctx context.Context, email, code string) (*models.VerificationCode, error)
}

// LoginResult carries the outcome of a successful authentication.
type LoginResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// AuthService handles registration, login and email verification. Every
// credential check rides behind the rate limiter; attempts that cannot be
// rate-limit-checked are denied.
type AuthService struct {
	users        UserRepository
	limiter      LoginRateLimiter
	verifier     SecretVerifier
	tokenManager *auth.TokenManager
	mailer       EmailService
	codeTTL      time.Duration
	logger       *slog.Logger
	audit        *logger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, limiter LoginRateLimiter, verifier SecretVerifier, tm *auth.TokenManager, mailer EmailService, codeTTL time.Duration, log *slog.Logger, audit *logger.AuditLogger) *AuthService {
	return &AuthService{
		users:        users,
		limiter:      limiter,
		verifier:     verifier,
		tokenManager: tm,
		mailer:       mailer,
		codeTTL:      codeTTL,
		logger:       log,
		audit:        audit,
	}
}

// Register creates a user and kicks off email verification. The verification
// email is best effort: a send failure never fails registration, the user
// can request a resend.
func (s *AuthService) Register(ctx context.Context, email, password, name, ipAddress string) (*models.User, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.LogAccountAction("register", user.ID, ipAddress, map[string]string{
		"email": logger.SanitizedEmail(email),
	})

	s.sendVerification(ctx, user)

	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	token, expiresAt, err := s.verifier.IssueToken(ctx, user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to issue verification token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return
	}

	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Warn("failed to send verification email",
			slog.String("email", logger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
	}
}

// Login authenticates a user. When the email or IP is blocked the returned
// duration says how long; wrong credentials count toward the block either
// way, so probing a blocked account keeps it blocked.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, time.Duration, error) {
	blocked, retryAfter, err := s.limiter.IsBlocked(ctx, email, ipAddress)
	if err != nil || blocked {
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login",
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "rate_limited",
		})
		return nil, retryAfter, models.ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, 0, s.failLogin(ctx, email, ipAddress, "unknown_email")
		}
		return nil, 0, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, 0, s.failLogin(ctx, email, ipAddress, "bad_password")
	}

	if !user.EmailVerified {
		return nil, 0, models.ErrEmailNotVerified
	}

	if _, err := s.limiter.RecordAttempt(ctx, email, ipAddress, models.AttemptSuccess); err != nil {
		s.logger.Error("failed to record successful attempt", slog.Any("error", err))
	}

	accessToken, err := s.tokenManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokenManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, 0, nil
}

func (s *AuthService) failLogin(ctx context.Context, email, ipAddress, reason string) error {
	if _, err := s.limiter.RecordAttempt(ctx, email, ipAddress, models.AttemptFailed); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "login",
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: reason,
	})

	return models.ErrInvalidCredentials
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokenManager.ValidateToken(refreshToken)
	if err != nil || claims.Type != "refresh" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	access, err := s.tokenManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokenManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyEmail redeems a link token
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	record, err := s.verifier.RedeemToken(ctx, token)
	if err != nil {
		return err
	}

	s.audit.LogAccountAction("email_verified", record.UserID, "", nil)
	return nil
}

// ResendVerification issues a fresh link token for an unverified account.
// Unknown emails succeed silently so the endpoint cannot be used to probe
// which addresses have accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, user)
	return nil
}

// RequestCode issues a one-time confirmation code for the account's email
func (s *AuthService) RequestCode(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	code, err := s.verifier.IssueCode(ctx, &user.ID, email)
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendCodeEmail(ctx, email, code, s.codeTTL); err != nil {
			s.logger.Warn("failed to send code email",
				slog.String("email", logger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}
	return nil
}

// ConfirmCode redeems a one-time code and marks the owning account verified
func (s *AuthService) ConfirmCode(ctx context.Context, email, code string) error {
	record, err := s.verifier.RedeemCode(ctx, email, code)
	if err != nil {
		return err
	}

	if record.UserID != nil {
		if err := s.users.MarkEmailVerified(ctx, *record.UserID); err != nil {
			return fmt.Errorf("failed to mark email verified: %w", err)
		}
		s.audit.LogAccountAction("email_verified", *record.UserID, "", nil)
	}
	return nil
}
