package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/config"
	"github.com/tlux-store/tlux-api/internal/models"
)

// Ledger is the transaction maintenance surface used by the reaper
type Ledger interface {
	ReapPending(ctx context.Context, maxAge time.Duration) (int64, error)
	ListUnfulfilled(ctx context.Context, minAge time.Duration, limit int) ([]*models.Transaction, error)
}

// Fulfiller retries delivery for paid transactions
type Fulfiller interface {
	Fulfill(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
}

// ExpiryStore deletes rows whose retention window has passed
type ExpiryStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SecretJanitor removes expired verification secrets
type SecretJanitor interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Reaper periodically fails stale pending transactions, retries
// undelivered paid transactions, and prunes expired auth records
type Reaper struct {
	ledger    Ledger
	fulfiller Fulfiller
	attempts  ExpiryStore
	blocks    ExpiryStore
	secrets   SecretJanitor
	clock     clock.Clock
	logger    *slog.Logger
	cfg       config.BackgroundConfig
	stopCh    chan struct{}
}

// NewReaper creates a new reaper
func NewReaper(
	ledger Ledger,
	fulfiller Fulfiller,
	attempts ExpiryStore,
	blocks ExpiryStore,
	secrets SecretJanitor,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.BackgroundConfig,
) *Reaper {
	return &Reaper{
		ledger:    ledger,
		fulfiller: fulfiller,
		attempts:  attempts,
		blocks:    blocks,
		secrets:   secrets,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic maintenance loop
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	r.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("reaper stopped")
			return
		case <-ctx.Done():
			r.logger.Info("reaper context cancelled")
			return
		}
	}
}

// Stop signals the reaper to stop
func (r *Reaper) Stop() {
	close(r.stopCh)
}

func (r *Reaper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r.reapPending(runCtx)
	r.retryUnfulfilled(runCtx)
	r.pruneExpired(runCtx)
}

func (r *Reaper) reapPending(ctx context.Context) {
	failed, err := r.ledger.ReapPending(ctx, r.cfg.PendingTTL)
	if err != nil {
		r.logger.Error("failed to reap stale pending transactions", slog.Any("error", err))
		return
	}
	if failed > 0 {
		r.logger.Info("stale pending transactions failed", slog.Int64("count", failed))
	}
}

func (r *Reaper) retryUnfulfilled(ctx context.Context) {
	// Only pick up transactions that have sat completed long enough
	// that the synchronous webhook path has clearly given up on them.
	txs, err := r.ledger.ListUnfulfilled(ctx, r.cfg.RetryAfter, 50)
	if err != nil {
		r.logger.Error("failed to list unfulfilled transactions", slog.Any("error", err))
		return
	}

	for _, tx := range txs {
		if _, err := r.fulfiller.Fulfill(ctx, tx); err != nil {
			r.logger.Error("fulfillment retry failed",
				slog.String("reference", tx.Reference),
				slog.Any("error", err),
			)
			continue
		}
		r.logger.Info("fulfillment retry succeeded", slog.String("reference", tx.Reference))
	}
}

func (r *Reaper) pruneExpired(ctx context.Context) {
	now := r.clock.Now()

	if n, err := r.attempts.DeleteExpired(ctx, now); err != nil {
		r.logger.Error("failed to prune login attempts", slog.Any("error", err))
	} else if n > 0 {
		r.logger.Info("expired login attempts pruned", slog.Int64("rows_deleted", n))
	}

	if n, err := r.blocks.DeleteExpired(ctx, now); err != nil {
		r.logger.Error("failed to prune blocked entries", slog.Any("error", err))
	} else if n > 0 {
		r.logger.Info("expired blocked entries pruned", slog.Int64("rows_deleted", n))
	}

	if n, err := r.secrets.CleanupExpired(ctx); err != nil {
		r.logger.Error("failed to prune verification secrets", slog.Any("error", err))
	} else if n > 0 {
		r.logger.Info("expired verification secrets pruned", slog.Int64("rows_deleted", n))
	}
}
