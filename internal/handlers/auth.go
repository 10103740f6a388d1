package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/services"
	pkghttp "github.com/tlux-store/tlux-api/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name, ipAddress string) (*models.User, error)
	Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, time.Duration, error)
	Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	RequestCode(ctx context.Context, email string) error
	ConfirmCode(ctx context.Context, email, code string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ConfirmCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=8"`
}

// TokenResponse is the token pair returned on login and refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	_, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name, pkghttp.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		case errors.Is(err, models.ErrConflict):
			// Same response as success to prevent email enumeration.
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	if err == nil || errors.Is(err, models.ErrConflict) {
		pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
			"message": "Registration received. If the email is not already registered, you will receive a confirmation email.",
		})
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, retryAfter, err := h.service.Login(r.Context(), req.Email, req.Password, pkghttp.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteRateLimited(w, retryAfter)
		case errors.Is(err, models.ErrInvalidCredentials),
			errors.Is(err, models.ErrEmailNotVerified):
			// One generic message for both to prevent user enumeration.
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		UserID:       result.User.ID,
		Email:        result.User.Email,
	})
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid or expired refresh token")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		UserID:       result.User.ID,
		Email:        result.User.Email,
	})
}

// VerifyEmail redeems a verification link token passed as a query parameter
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		pkghttp.WriteBadRequest(w, "Missing verification token")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// ResendVerification issues a fresh verification link
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered and unverified, a new verification email has been sent.",
	})
}

// RequestCode issues a one-time confirmation code by email
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.RequestCode(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered, a confirmation code has been sent.",
	})
}

// ConfirmCode redeems a one-time confirmation code
func (h *AuthHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req ConfirmCodeRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.ConfirmCode(r.Context(), req.Email, req.Code); err != nil {
		writeSecretError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

func writeSecretError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSecretExpired):
		pkghttp.WriteError(w, http.StatusGone, "secret_expired", "Verification secret expired, request a new one")
	case errors.Is(err, models.ErrSecretAlreadyUsed):
		pkghttp.WriteConflict(w, "Verification secret already used")
	case errors.Is(err, models.ErrSecretInvalid):
		pkghttp.WriteBadRequest(w, "Verification secret not recognized")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
