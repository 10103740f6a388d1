package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/pkg/logger"
)

// LoginAttemptRepository defines the interface for login attempt database operations
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email, ipAddress string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BlockedEntryRepository defines the interface for login block database operations
type BlockedEntryRepository interface {
	Upsert(ctx context.Context, email, ipAddress string, blockedUntil time.Time) error
	GetActive(ctx context.Context, email, ipAddress string, now time.Time) (*models.BlockedEntry, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RateLimitConfig holds configuration for login rate limiting behavior
type RateLimitConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	BlockDuration     time.Duration
}

// RateLimitService enforces the failed-login block policy: MaxFailedAttempts
// failures per email or IP inside Window trigger a block for BlockDuration.
type RateLimitService struct {
	attempts LoginAttemptRepository
	blocks   BlockedEntryRepository
	config   RateLimitConfig
	clock    clock.Clock
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(attempts LoginAttemptRepository, blocks BlockedEntryRepository, config RateLimitConfig, clk clock.Clock, log *slog.Logger) *RateLimitService {
	return &RateLimitService{
		attempts: attempts,
		blocks:   blocks,
		config:   config,
		clock:    clk,
		logger:   log,
	}
}

// IsBlocked reports whether login attempts for the email or IP are currently
// blocked, returning the remaining block duration when they are.
// Repository errors fail closed: an attempt we cannot verify is denied.
func (s *RateLimitService) IsBlocked(ctx context.Context, email, ipAddress string) (bool, time.Duration, error) {
	now := s.clock.Now()

	entry, err := s.blocks.GetActive(ctx, email, ipAddress, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, 0, nil
		}
		s.logger.Error("failed to check login block",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return true, s.config.BlockDuration, fmt.Errorf("failed to check login block: %w", err)
	}

	return true, entry.Remaining(now), nil
}

// RecordAttempt records the outcome of a login attempt. A failed attempt that
// reaches the threshold inside the window installs a block for both the email
// and the source IP. Returns true when a block was installed.
func (s *RateLimitService) RecordAttempt(ctx context.Context, email, ipAddress, outcome string) (bool, error) {
	now := s.clock.Now()

	attempt := &models.LoginAttempt{
		Email:       email,
		IPAddress:   ipAddress,
		Outcome:     outcome,
		AttemptedAt: now,
		ExpiresAt:   now.Add(s.config.Window * 2),
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return false, fmt.Errorf("failed to record login attempt: %w", err)
	}

	if outcome != models.AttemptFailed {
		return false, nil
	}

	since := now.Add(-s.config.Window)
	failures, err := s.attempts.CountRecentFailures(ctx, email, ipAddress, since)
	if err != nil {
		return false, fmt.Errorf("failed to count recent failures: %w", err)
	}

	if failures < s.config.MaxFailedAttempts {
		return false, nil
	}

	blockedUntil := now.Add(s.config.BlockDuration)
	if err := s.blocks.Upsert(ctx, email, ipAddress, blockedUntil); err != nil {
		return false, fmt.Errorf("failed to install login block: %w", err)
	}

	s.logger.Warn("login blocked after repeated failures",
		slog.String("email", logger.SanitizedEmail(email)),
		slog.String("ip_address", ipAddress),
		slog.Int("failures", failures),
		slog.Time("blocked_until", blockedUntil))

	return true, nil
}
