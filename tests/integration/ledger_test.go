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

func TestTransactionRepository_DuplicateReferenceRejected(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "ledger-dup@example.com", "TestPassword123", true)
	require.NoError(t, err)

	_, err = SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-dup-ref")
	require.NoError(t, err)

	_, err = SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-dup-ref")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestTransactionRepository_ConcurrentCompletion(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "ledger-race@example.com", "TestPassword123", true)
	require.NoError(t, err)

	tx, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-race-ref")
	require.NoError(t, err)

	// N concurrent webhook deliveries for the same reference. Exactly one
	// transition succeeds, the rest observe the row already moved on.
	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paymentRef := "pi_race"
			_, err := repo.TransitionByReference(ctx, tx.Reference, models.TxPending, models.TxCompleted, &paymentRef)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			rejected++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	final, err := repo.GetByReference(ctx, tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TxCompleted, final.Status)
}

func TestTransactionRepository_ConcurrentSubmissionClaim(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "claim-race@example.com", "TestPassword123", true)
	require.NoError(t, err)

	tx, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXULK-claim-ref")
	require.NoError(t, err)

	_, err = repo.TransitionByReference(ctx, tx.Reference, models.TxPending, models.TxCompleted, nil)
	require.NoError(t, err)

	// N fulfillers race for the same completed transaction; only one may
	// hold the claim and place the supplier order.
	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ClaimSubmission(ctx, tx.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var claimed, rejected int
	for err := range results {
		if err == nil {
			claimed++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			rejected++
		}
	}

	assert.Equal(t, 1, claimed)
	assert.Equal(t, workers-1, rejected)

	// The winner finishes; a released claim would instead reopen the race.
	orderRef := "ORD-claimed"
	fulfilled, err := repo.MarkFulfilled(ctx, tx.ID, &orderRef)
	require.NoError(t, err)
	assert.Equal(t, models.TxFulfilled, fulfilled.Status)
}

func TestTransactionRepository_ReleaseSubmissionReopensRetry(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "claim-release@example.com", "TestPassword123", true)
	require.NoError(t, err)

	tx, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXULK-release-ref")
	require.NoError(t, err)

	_, err = repo.TransitionByReference(ctx, tx.Reference, models.TxPending, models.TxCompleted, nil)
	require.NoError(t, err)

	_, err = repo.ClaimSubmission(ctx, tx.ID)
	require.NoError(t, err)

	// Claimed rows are invisible to the retry pass.
	waiting, err := repo.ListUnfulfilled(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	released, err := repo.ReleaseSubmission(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxCompleted, released.Status)

	waiting, err = repo.ListUnfulfilled(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, tx.ID, waiting[0].ID)
}

func TestTransactionRepository_MarkFulfilledOnce(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "ledger-fulfill@example.com", "TestPassword123", true)
	require.NoError(t, err)

	tx, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-fulfill-ref")
	require.NoError(t, err)

	_, err = repo.TransitionByReference(ctx, tx.Reference, models.TxPending, models.TxCompleted, nil)
	require.NoError(t, err)

	orderRef := "ORD-1"
	fulfilled, err := repo.MarkFulfilled(ctx, tx.ID, &orderRef)
	require.NoError(t, err)
	assert.Equal(t, models.TxFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.OrderRef)
	assert.Equal(t, "ORD-1", *fulfilled.OrderRef)

	otherRef := "ORD-2"
	_, err = repo.MarkFulfilled(ctx, tx.ID, &otherRef)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	// The first order reference stands
	final, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", *final.OrderRef)
}

func TestTransactionRepository_FailPendingOlderThan(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	repo := repositories.NewTransactionRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "ledger-reap@example.com", "TestPassword123", true)
	require.NoError(t, err)

	stale, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-stale-ref")
	require.NoError(t, err)

	fresh, err := SeedPendingTransaction(ctx, repo, user.ID, "TLUXPKG-fresh-ref")
	require.NoError(t, err)

	// Backdate one row past the cutoff
	_, err = testDB.Pool.Exec(ctx,
		`UPDATE transactions SET created_at = NOW() - INTERVAL '25 hours' WHERE id = $1`, stale.ID)
	require.NoError(t, err)

	reaped, err := repo.FailPendingOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	staleAfter, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, staleAfter.Status)

	freshAfter, err := repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, freshAfter.Status)
}

func TestLicenseRepository_OneLicensePerTransaction(t *testing.T) {
	cleanDB(t)
	ctx := context.Background()
	txRepo := repositories.NewTransactionRepository(testDB.DB)
	licRepo := repositories.NewLicenseRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.Pool, "license-once@example.com", "TestPassword123", true)
	require.NoError(t, err)

	tx, err := SeedPendingTransaction(ctx, txRepo, user.ID, "TLUXPKG-license-ref")
	require.NoError(t, err)

	now := time.Now()
	first, err := licRepo.Create(ctx, &models.License{
		UserID:        user.ID,
		Key:           "TLUX-first",
		Package:       "Silver",
		IssuedAt:      now,
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
		TransactionID: tx.ID,
	})
	require.NoError(t, err)

	_, err = licRepo.Create(ctx, &models.License{
		UserID:        user.ID,
		Key:           "TLUX-second",
		Package:       "Silver",
		IssuedAt:      now,
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
		TransactionID: tx.ID,
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	existing, err := licRepo.GetByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, existing.Key)
}
