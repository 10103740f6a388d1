package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxFailedAttempts: 5,
		Window:            10 * time.Minute,
		BlockDuration:     10 * time.Minute,
	}
}

func TestRateLimitService_RecordAttempt_BlocksAtThreshold(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var upserted *time.Time
	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email, ip string, since time.Time) (int, error) {
			assert.Equal(t, clk.T.Add(-10*time.Minute), since)
			return 5, nil
		},
	}
	blocks := &MockBlockedEntryRepository{
		UpsertFunc: func(ctx context.Context, email, ip string, blockedUntil time.Time) error {
			upserted = &blockedUntil
			return nil
		},
	}

	svc := NewRateLimitService(attempts, blocks, testRateLimitConfig(), clk, testLogger())

	blockedNow, err := svc.RecordAttempt(context.Background(), "user@example.com", "1.2.3.4", models.AttemptFailed)
	require.NoError(t, err)
	assert.True(t, blockedNow)
	require.NotNil(t, upserted)
	assert.Equal(t, clk.T.Add(10*time.Minute), *upserted)
}

func TestRateLimitService_RecordAttempt_BelowThreshold(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email, ip string, since time.Time) (int, error) {
			return 4, nil
		},
	}
	blocks := &MockBlockedEntryRepository{
		UpsertFunc: func(ctx context.Context, email, ip string, blockedUntil time.Time) error {
			t.Fatal("no block should be installed below the threshold")
			return nil
		},
	}

	svc := NewRateLimitService(attempts, blocks, testRateLimitConfig(), clk, testLogger())

	blockedNow, err := svc.RecordAttempt(context.Background(), "user@example.com", "1.2.3.4", models.AttemptFailed)
	require.NoError(t, err)
	assert.False(t, blockedNow)
}

func TestRateLimitService_RecordAttempt_SuccessDoesNotCount(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	attempts := &MockLoginAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email, ip string, since time.Time) (int, error) {
			t.Fatal("successful attempts must not trigger a threshold check")
			return 0, nil
		},
	}

	svc := NewRateLimitService(attempts, &MockBlockedEntryRepository{}, testRateLimitConfig(), clk, testLogger())

	blockedNow, err := svc.RecordAttempt(context.Background(), "user@example.com", "1.2.3.4", models.AttemptSuccess)
	require.NoError(t, err)
	assert.False(t, blockedNow)
}

func TestRateLimitService_IsBlocked(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	blocks := &MockBlockedEntryRepository{
		GetActiveFunc: func(ctx context.Context, email, ip string, now time.Time) (*models.BlockedEntry, error) {
			return &models.BlockedEntry{
				Email:        email,
				IPAddress:    ip,
				BlockedUntil: now.Add(7 * time.Minute),
			}, nil
		},
	}

	svc := NewRateLimitService(&MockLoginAttemptRepository{}, blocks, testRateLimitConfig(), clk, testLogger())

	blocked, remaining, err := svc.IsBlocked(context.Background(), "user@example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 7*time.Minute, remaining)
}

func TestRateLimitService_IsBlocked_NoActiveBlock(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewRateLimitService(&MockLoginAttemptRepository{}, &MockBlockedEntryRepository{}, testRateLimitConfig(), clk, testLogger())

	blocked, remaining, err := svc.IsBlocked(context.Background(), "user@example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Zero(t, remaining)
}

func TestRateLimitService_IsBlocked_RepoErrorFailsClosed(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	blocks := &MockBlockedEntryRepository{
		GetActiveFunc: func(ctx context.Context, email, ip string, now time.Time) (*models.BlockedEntry, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewRateLimitService(&MockLoginAttemptRepository{}, blocks, testRateLimitConfig(), clk, testLogger())

	blocked, _, err := svc.IsBlocked(context.Background(), "user@example.com", "1.2.3.4")
	assert.True(t, blocked)
	assert.Error(t, err)
}
