package services

import (
	"context"
	"log/slog"

	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
)

// UserService serves account profile and purchase history reads.
type UserService struct {
	users    UserRepository
	licenses LicenseRepository
	ledger   *LedgerService
	clock    clock.Clock
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(users UserRepository, licenses LicenseRepository, ledger *LedgerService, clk clock.Clock, log *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		licenses: licenses,
		ledger:   ledger,
		clock:    clk,
		logger:   log,
	}
}

// Profile returns the user with an access flag evaluated against now.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return user, user.HasActiveAccess(s.clock.Now()), nil
}

// Transactions returns the user's purchase history
func (s *UserService) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

// Licenses returns the user's issued licenses, newest first
func (s *UserService) Licenses(ctx context.Context, userID string, limit int) ([]*models.License, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.licenses.ListByUser(ctx, userID, limit)
}
