package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tlux-store/tlux-api/internal/auth"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/payments"
	"github.com/tlux-store/tlux-api/internal/pricing"
	pkghttp "github.com/tlux-store/tlux-api/pkg/http"
)

// CheckoutServiceInterface defines the interface for purchase business logic
type CheckoutServiceInterface interface {
	PurchasePackage(ctx context.Context, userID, packageName string) (*models.Transaction, *payments.CheckoutSession, error)
	PurchaseUnlock(ctx context.Context, userID, model, imei string) (*models.Transaction, *payments.CheckoutSession, error)
}

// UserServiceInterface defines the account read surface
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*models.User, bool, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	Licenses(ctx context.Context, userID string, limit int) ([]*models.License, error)
}

// PurchaseHandler handles catalog, checkout and account history requests
type PurchaseHandler struct {
	checkout CheckoutServiceInterface
	users    UserServiceInterface
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(checkout CheckoutServiceInterface, users UserServiceInterface) *PurchaseHandler {
	return &PurchaseHandler{checkout: checkout, users: users}
}

type PurchasePackageRequest struct {
	Package string `json:"package" validate:"required,oneof=Bronze Silver Gold Premium"`
}

type PurchaseUnlockRequest struct {
	Model string `json:"model" validate:"required,min=1,max=64"`
	IMEI  string `json:"imei" validate:"required,numeric,min=14,max=16"`
}

// CheckoutResponse carries the redirect target for a freshly opened purchase
type CheckoutResponse struct {
	Reference   string  `json:"reference"`
	Amount      float64 `json:"amount"`
	CheckoutURL string  `json:"checkout_url"`
}

// Packages lists the purchasable access packages
func (h *PurchaseHandler) Packages(w http.ResponseWriter, r *http.Request) {
	type pkg struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Days  int     `json:"days"`
	}

	out := make([]pkg, 0)
	for _, p := range pricing.Packages() {
		out = append(out, pkg{Name: p.Name, Price: p.Price, Days: int(p.Duration.Hours() / 24)})
	}
	pkghttp.WriteJSON(w, http.StatusOK, out)
}

// UnlockModels lists the unlockable device models and prices
func (h *PurchaseHandler) UnlockModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		Model string  `json:"model"`
		Price float64 `json:"price"`
	}

	out := make([]model, 0)
	for _, m := range pricing.UnlockModels() {
		out = append(out, model{Model: m.Model, Price: m.SellPrice})
	}
	pkghttp.WriteJSON(w, http.StatusOK, out)
}

// PurchasePackage opens a package purchase and returns the checkout URL
func (h *PurchaseHandler) PurchasePackage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PurchasePackageRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tx, session, err := h.checkout.PurchasePackage(r.Context(), claims.UserID, req.Package)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, CheckoutResponse{
		Reference:   tx.Reference,
		Amount:      tx.Amount,
		CheckoutURL: session.URL,
	})
}

// PurchaseUnlock opens a device unlock purchase and returns the checkout URL
func (h *PurchaseHandler) PurchaseUnlock(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PurchaseUnlockRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tx, session, err := h.checkout.PurchaseUnlock(r.Context(), claims.UserID, req.Model, req.IMEI)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, CheckoutResponse{
		Reference:   tx.Reference,
		Amount:      tx.Amount,
		CheckoutURL: session.URL,
	})
}

// Profile returns the authenticated user's account state
func (h *PurchaseHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, active, err := h.users.Profile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := map[string]interface{}{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"email_verified": user.EmailVerified,
		"active_access":  active,
	}
	if user.AccessExpiry != nil {
		resp["access_expiry"] = user.AccessExpiry
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Transactions returns the authenticated user's purchase history
func (h *PurchaseHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.users.Transactions(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, txs)
}

// Licenses returns the authenticated user's issued licenses
func (h *PurchaseHandler) Licenses(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	licenses, err := h.users.Licenses(r.Context(), claims.UserID, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, licenses)
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownPackage):
		pkghttp.WriteBadRequest(w, "Unknown package")
	case errors.Is(err, models.ErrUnknownModel):
		pkghttp.WriteBadRequest(w, "Unknown device model")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
