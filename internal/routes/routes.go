package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tlux-store/tlux-api/internal/auth"
	"github.com/tlux-store/tlux-api/internal/handlers"
	"github.com/tlux-store/tlux-api/internal/middleware"
	"github.com/tlux-store/tlux-api/internal/models"
	pkghttp "github.com/tlux-store/tlux-api/pkg/http"
)

// Pinger reports backend storage health
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	purchaseHandler *handlers.PurchaseHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	userRepo auth.UserRepository,
	db Pinger,
) {
	// Rate limiting configs per endpoint class
	authRateLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	webhookRateLimit := middleware.RateLimitByIP(middleware.DefaultWebhookRateLimit())

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public catalog
	router.Get("/packages", purchaseHandler.Packages)
	router.Get("/unlocks", purchaseHandler.UnlockModels)

	// Public auth routes
	router.With(authRateLimit).Post("/auth/register", authHandler.Register)
	router.With(authRateLimit).Post("/auth/login", authHandler.Login)
	router.With(authRateLimit).Post("/auth/refresh", authHandler.Refresh)
	router.With(authRateLimit).Get("/auth/verify-email", authHandler.VerifyEmail)
	router.With(authRateLimit).Post("/auth/resend-verification", authHandler.ResendVerification)
	router.With(authRateLimit).Post("/auth/request-code", authHandler.RequestCode)
	router.With(authRateLimit).Post("/auth/confirm-code", authHandler.ConfirmCode)

	// Payment provider callback
	router.With(webhookRateLimit).Post("/webhooks/stripe", webhookHandler.HandleStripe)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/purchases/package", purchaseHandler.PurchasePackage)
		r.Post("/purchases/unlock", purchaseHandler.PurchaseUnlock)

		r.Get("/account/profile", purchaseHandler.Profile)
		r.Get("/account/transactions", purchaseHandler.Transactions)
		r.Get("/account/licenses", purchaseHandler.Licenses)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin))
			r.Get("/admin/transactions/{reference}", adminHandler.TransactionStatus)
			r.Post("/admin/transactions/{reference}/refulfill", adminHandler.Refulfill)
		})
	})
}
