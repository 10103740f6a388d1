package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestLedgerService_Open_GeneratesReference(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var created *models.Transaction
	repo := &MockTransactionRepository{
		CreateFunc: func(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
			created = tx
			out := *tx
			out.ID = "tx_1"
			out.Status = models.TxPending
			return &out, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	pkg := "Silver"
	tx, err := svc.Open(context.Background(), OpenParams{
		UserID:  "3f2a9b1c-0000-0000-0000-000000000000",
		Purpose: models.PurposePackage,
		Amount:  87.30,
		Package: &pkg,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.True(t, strings.HasPrefix(tx.Reference, "TLUXPKG-3f2a9b1c-"))
	assert.True(t, strings.HasSuffix(tx.Reference, "-1748779200"))
	assert.Equal(t, models.TxPending, tx.Status)
	assert.Equal(t, 87.30, tx.Amount)
}

func TestLedgerService_Open_UnlockPrefix(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewLedgerService(&MockTransactionRepository{}, clk, testLogger())

	tx, err := svc.Open(context.Background(), OpenParams{
		UserID:  "user-7",
		Purpose: models.PurposeUnlock,
		Amount:  95.00,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.Reference, "TLUXULK-"))
}

func TestLedgerService_Complete_TransitionsPending(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo := &MockTransactionRepository{
		TransitionByReferenceFunc: func(ctx context.Context, ref, from, to string, paymentRef *string) (*models.Transaction, error) {
			assert.Equal(t, models.TxPending, from)
			assert.Equal(t, models.TxCompleted, to)
			require.NotNil(t, paymentRef)
			return &models.Transaction{ID: "tx_1", Reference: ref, Status: to, PaymentRef: paymentRef}, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	tx, err := svc.Complete(context.Background(), "TLUXPKG-1-abc", strPtr("pi_123"))
	require.NoError(t, err)
	assert.Equal(t, models.TxCompleted, tx.Status)
	assert.Equal(t, "pi_123", *tx.PaymentRef)
}

func TestLedgerService_Complete_DuplicateIsNoOp(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	existing := &models.Transaction{
		ID: "tx_1", Reference: "TLUXPKG-1-abc",
		Status: models.TxCompleted, PaymentRef: strPtr("pi_first"),
	}
	repo := &MockTransactionRepository{
		TransitionByReferenceFunc: func(ctx context.Context, ref, from, to string, paymentRef *string) (*models.Transaction, error) {
			return nil, models.ErrInvalidTransition
		},
		GetByReferenceFunc: func(ctx context.Context, ref string) (*models.Transaction, error) {
			return existing, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	tx, err := svc.Complete(context.Background(), "TLUXPKG-1-abc", strPtr("pi_second"))
	require.NoError(t, err)
	// The first completion's payment reference stands.
	assert.Equal(t, "pi_first", *tx.PaymentRef)
}

func TestLedgerService_Complete_UnknownReference(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewLedgerService(&MockTransactionRepository{}, clk, testLogger())

	_, err := svc.Complete(context.Background(), "TLUXPKG-missing", strPtr("pi_123"))
	assert.ErrorIs(t, err, models.ErrUnknownTransaction)
}

func TestLedgerService_Complete_FailedTransactionRejected(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo := &MockTransactionRepository{
		GetByReferenceFunc: func(ctx context.Context, ref string) (*models.Transaction, error) {
			return &models.Transaction{ID: "tx_1", Reference: ref, Status: models.TxFailed}, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	_, err := svc.Complete(context.Background(), "TLUXPKG-1-abc", nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestLedgerService_Fail(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("pending fails", func(t *testing.T) {
		repo := &MockTransactionRepository{
			TransitionByReferenceFunc: func(ctx context.Context, ref, from, to string, paymentRef *string) (*models.Transaction, error) {
				assert.Equal(t, models.TxFailed, to)
				return &models.Transaction{ID: "tx_1", Reference: ref, Status: to}, nil
			},
		}
		svc := NewLedgerService(repo, clk, testLogger())

		tx, err := svc.Fail(context.Background(), "TLUXPKG-1-abc")
		require.NoError(t, err)
		assert.Equal(t, models.TxFailed, tx.Status)
	})

	t.Run("already failed is a no-op", func(t *testing.T) {
		repo := &MockTransactionRepository{
			GetByReferenceFunc: func(ctx context.Context, ref string) (*models.Transaction, error) {
				return &models.Transaction{ID: "tx_1", Reference: ref, Status: models.TxFailed}, nil
			},
		}
		svc := NewLedgerService(repo, clk, testLogger())

		_, err := svc.Fail(context.Background(), "TLUXPKG-1-abc")
		assert.NoError(t, err)
	})

	t.Run("completed cannot fail", func(t *testing.T) {
		repo := &MockTransactionRepository{
			GetByReferenceFunc: func(ctx context.Context, ref string) (*models.Transaction, error) {
				return &models.Transaction{ID: "tx_1", Reference: ref, Status: models.TxCompleted}, nil
			},
		}
		svc := NewLedgerService(repo, clk, testLogger())

		_, err := svc.Fail(context.Background(), "TLUXPKG-1-abc")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestLedgerService_Complete_SubmittingDuplicateIsNoOp(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	// A duplicate provider notification arriving mid-submission must not
	// error; the claim holder finishes undisturbed.
	claimed := &models.Transaction{
		ID: "tx_1", Reference: "TLUXULK-7-xyz",
		Status: models.TxSubmitting, PaymentRef: strPtr("pi_first"),
	}
	repo := &MockTransactionRepository{
		TransitionByReferenceFunc: func(ctx context.Context, ref, from, to string, paymentRef *string) (*models.Transaction, error) {
			return nil, models.ErrInvalidTransition
		},
		GetByReferenceFunc: func(ctx context.Context, ref string) (*models.Transaction, error) {
			return claimed, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	tx, err := svc.Complete(context.Background(), "TLUXULK-7-xyz", strPtr("pi_second"))
	require.NoError(t, err)
	assert.Equal(t, models.TxSubmitting, tx.Status)
}

func TestLedgerService_ClaimSubmission(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("completed claims", func(t *testing.T) {
		repo := &MockTransactionRepository{
			ClaimSubmissionFunc: func(ctx context.Context, id string) (*models.Transaction, error) {
				return &models.Transaction{ID: id, Reference: "TLUXULK-7-xyz", Status: models.TxSubmitting}, nil
			},
		}
		svc := NewLedgerService(repo, clk, testLogger())

		tx, err := svc.ClaimSubmission(context.Background(), "tx_1")
		require.NoError(t, err)
		assert.Equal(t, models.TxSubmitting, tx.Status)
	})

	t.Run("losing claimer gets invalid transition", func(t *testing.T) {
		repo := &MockTransactionRepository{
			ClaimSubmissionFunc: func(ctx context.Context, id string) (*models.Transaction, error) {
				return nil, models.ErrInvalidTransition
			},
		}
		svc := NewLedgerService(repo, clk, testLogger())

		_, err := svc.ClaimSubmission(context.Background(), "tx_1")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestLedgerService_MarkFulfilled_SecondCallIsNoOp(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	calls := 0
	fulfilled := &models.Transaction{
		ID: "tx_1", Reference: "TLUXULK-7-xyz",
		Status: models.TxFulfilled, OrderRef: strPtr("ORD-9"),
	}
	repo := &MockTransactionRepository{
		MarkFulfilledFunc: func(ctx context.Context, id string, orderRef *string) (*models.Transaction, error) {
			calls++
			if calls == 1 {
				return fulfilled, nil
			}
			return nil, models.ErrInvalidTransition
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Transaction, error) {
			return fulfilled, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	first, err := svc.MarkFulfilled(context.Background(), "tx_1", strPtr("ORD-9"))
	require.NoError(t, err)
	second, err := svc.MarkFulfilled(context.Background(), "tx_1", strPtr("ORD-9"))
	require.NoError(t, err)

	assert.Equal(t, first.OrderRef, second.OrderRef)
	assert.Equal(t, models.TxFulfilled, second.Status)
}

func TestLedgerService_ReapPending(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo := &MockTransactionRepository{
		FailPendingOlderThanFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			assert.Equal(t, clk.T.Add(-24*time.Hour), cutoff)
			return 3, nil
		},
	}

	svc := NewLedgerService(repo, clk, testLogger())

	n, err := svc.ReapPending(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
