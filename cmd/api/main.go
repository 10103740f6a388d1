package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/tlux-store/tlux-api/internal/auth"
	"github.com/tlux-store/tlux-api/internal/background"
	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/config"
	"github.com/tlux-store/tlux-api/internal/database"
	"github.com/tlux-store/tlux-api/internal/gateway"
	"github.com/tlux-store/tlux-api/internal/handlers"
	middlewareCustom "github.com/tlux-store/tlux-api/internal/middleware"
	"github.com/tlux-store/tlux-api/internal/migrations"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
	"github.com/tlux-store/tlux-api/internal/repositories"
	"github.com/tlux-store/tlux-api/internal/routes"
	"github.com/tlux-store/tlux-api/internal/services"
	pkgauth "github.com/tlux-store/tlux-api/pkg/auth"
	pkglogger "github.com/tlux-store/tlux-api/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Apply pending migrations
	if err := runMigrations(context.Background(), db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	sysClock := clock.System{}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	blockedEntryRepo := repositories.NewBlockedEntryRepository(db)
	verificationRepo := repositories.NewVerificationRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	licenseRepo := repositories.NewLicenseRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiting service
	rateLimitService := services.NewRateLimitService(
		loginAttemptRepo,
		blockedEntryRepo,
		services.RateLimitConfig{
			MaxFailedAttempts: cfg.RateLimit.MaxFailedAttempts,
			Window:            cfg.RateLimit.Window,
			BlockDuration:     cfg.RateLimit.BlockDuration,
		},
		sysClock,
		logger,
	)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Server.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Verification secret service
	verificationService := services.NewVerificationService(
		verificationRepo,
		services.VerificationConfig{
			TokenTTL:   cfg.Verification.TokenTTL,
			CodeTTL:    cfg.Verification.CodeTTL,
			CodeLength: cfg.Verification.CodeLength,
		},
		sysClock,
		logger,
	)

	// Payment provider and unlock supplier gateway
	stripeProvider := payments.NewStripeProvider(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret, logger)
	dhruClient := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Username, cfg.Gateway.APIKey, cfg.Gateway.Timeout, logger)

	// Initialize services
	ledgerService := services.NewLedgerService(transactionRepo, sysClock, logger)
	fulfillmentService := services.NewFulfillmentService(licenseRepo, userRepo, ledgerService, dhruClient, emailService, sysClock, logger)
	webhookService := services.NewWebhookService(ledgerService, fulfillmentService, logger)
	checkoutService := services.NewCheckoutService(ledgerService, stripeProvider, cfg.Payments.SuccessURL, cfg.Payments.CancelURL, logger)
	userService := services.NewUserService(userRepo, licenseRepo, ledgerService, sysClock, logger)
	authService := services.NewAuthService(userRepo, rateLimitService, verificationService, tokenManager, emailService, cfg.Verification.CodeTTL, logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	purchaseHandler := handlers.NewPurchaseHandler(checkoutService, userService)
	webhookHandler := handlers.NewWebhookHandler(stripeProvider, webhookService, logger)
	adminHandler := handlers.NewAdminHandler(ledgerService, webhookService, dhruClient)

	// Maintenance loop for stale transactions and expired auth records
	reaper := background.NewReaper(
		ledgerService,
		fulfillmentService,
		loginAttemptRepo,
		blockedEntryRepo,
		verificationService,
		sysClock,
		logger,
		cfg.Background,
	)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, purchaseHandler, webhookHandler, adminHandler, tokenManager, userRepo, db)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start maintenance task
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	go reaper.Start(reaperCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reaperCancel()
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// runMigrations applies the embedded goose migrations over a stdlib adapter
func runMigrations(ctx context.Context, db *database.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:         adminEmail,
		PasswordHash:  hashedPassword,
		Name:          "Admin",
		Role:          models.RoleAdmin,
		EmailVerified: true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
