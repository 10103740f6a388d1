package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/repositories"
)

func TestVerificationRepository_ConcurrentTokenConsume(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewVerificationRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "consume-race@example.com", "TestPassword123", false)
	require.NoError(t, err)

	token, err := repo.CreateToken(ctx, user.ID, "digest-race", user.Email, time.Now().Add(48*time.Hour))
	require.NoError(t, err)

	// N concurrent redeemers for the same secret. The conditional update
	// admits exactly one.
	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.ConsumeToken(ctx, token.ID, time.Now())
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, alreadyUsed int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
			alreadyUsed++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, alreadyUsed)
}

func TestVerificationRepository_ConsumeTokenVerifyUser(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewVerificationRepository(testDB.DB)
	users := repositories.NewUserRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "atomic-verify@example.com", "TestPassword123", false)
	require.NoError(t, err)

	token, err := repo.CreateToken(ctx, user.ID, "digest-atomic", user.Email, time.Now().Add(48*time.Hour))
	require.NoError(t, err)

	// One call flips both rows: the token is consumed and the user verified.
	require.NoError(t, repo.ConsumeTokenVerifyUser(ctx, token.ID, user.ID, time.Now()))

	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)

	stored, err := repo.GetTokenByHash(ctx, "digest-atomic")
	require.NoError(t, err)
	assert.NotNil(t, stored.UsedAt)

	// A replay finds the token spent and changes nothing.
	err = repo.ConsumeTokenVerifyUser(ctx, token.ID, user.ID, time.Now())
	assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
}

func TestVerificationRepository_IssueSupersedesCodes(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewVerificationRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "supersede@example.com", "TestPassword123", false)
	require.NoError(t, err)

	_, err = repo.CreateCode(ctx, &user.ID, user.Email, "digest-old", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	invalidated, err := repo.InvalidateCodes(ctx, user.Email, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), invalidated)

	fresh, err := repo.CreateCode(ctx, &user.ID, user.Email, "digest-new", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	// Only the fresh code is live
	latest, err := repo.GetLatestCodeByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, latest.ID)
	assert.Equal(t, "digest-new", latest.CodeHash)
}

func TestBlockedEntryRepository_UpsertRefreshesBlock(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewBlockedEntryRepository(testDB.DB)

	now := time.Now()
	require.NoError(t, repo.Upsert(ctx, "blocked@example.com", "10.0.0.1", now.Add(10*time.Minute)))
	require.NoError(t, repo.Upsert(ctx, "blocked@example.com", "10.0.0.2", now.Add(20*time.Minute)))

	entry, err := repo.GetActive(ctx, "blocked@example.com", "", now)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", entry.IPAddress)
	assert.WithinDuration(t, now.Add(20*time.Minute), entry.BlockedUntil, 2*time.Second)

	// Also discoverable by origin IP alone
	byIP, err := repo.GetActive(ctx, "other@example.com", "10.0.0.2", now)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, byIP.ID)

	// Lapsed blocks are invisible and reapable
	_, err = repo.GetActive(ctx, "blocked@example.com", "", now.Add(21*time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound)

	deleted, err := repo.DeleteExpired(ctx, now.Add(21*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestLoginAttemptRepository_WindowCounting(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewLoginAttemptRepository(testDB.DB)

	now := time.Now()
	record := func(outcome string, at time.Time) {
		t.Helper()
		err := repo.Record(ctx, &models.LoginAttempt{
			Email:       "window@example.com",
			IPAddress:   "10.0.0.9",
			Outcome:     outcome,
			AttemptedAt: at,
			ExpiresAt:   at.Add(20 * time.Minute),
		})
		require.NoError(t, err)
	}

	record(models.AttemptFailed, now.Add(-15*time.Minute)) // outside window
	record(models.AttemptFailed, now.Add(-5*time.Minute))
	record(models.AttemptFailed, now.Add(-1*time.Minute))
	record(models.AttemptSuccess, now.Add(-30*time.Second)) // successes never count

	count, err := repo.CountRecentFailures(ctx, "window@example.com", "10.0.0.9", now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
