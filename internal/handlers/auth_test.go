package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tlux-store/tlux-api/internal/models"
	"github.com/tlux-store/tlux-api/internal/services"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginFunc  func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error)
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       `{"email": }`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       `{"email":"user@example.com"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid credentials",
			body: `{"email":"user@example.com","password":"wrong"}`,
			loginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error) {
				return nil, 0, models.ErrInvalidCredentials
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unverified email looks like bad credentials",
			body: `{"email":"user@example.com","password":"right"}`,
			loginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error) {
				return nil, 0, models.ErrEmailNotVerified
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "rate limited",
			body: `{"email":"user@example.com","password":"right"}`,
			loginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error) {
				return nil, 7 * time.Minute, models.ErrRateLimited
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "success",
			body: `{"email":"user@example.com","password":"right"}`,
			loginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error) {
				return &services.LoginResult{
					User:         &models.User{ID: "user-1", Email: email},
					AccessToken:  "access",
					RefreshToken: "refresh",
				}, 0, nil
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&MockAuthService{LoginFunc: tt.loginFunc})
			rec := postJSON(t, h.Login, "/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthHandler_Login_RateLimitedSetsRetryAfter(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ip string) (*services.LoginResult, time.Duration, error) {
			return nil, 90 * time.Second, models.ErrRateLimited
		},
	})

	rec := postJSON(t, h.Login, "/auth/login", `{"email":"user@example.com","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestAuthHandler_Register_DuplicateLooksLikeSuccess(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name, ip string) (*models.User, error) {
			return nil, models.ErrConflict
		},
	})

	rec := postJSON(t, h.Register, "/auth/register",
		`{"email":"taken@example.com","password":"CorrectHorse42","name":"X"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		verifyErr  error
		wantStatus int
	}{
		{"missing token", "", nil, http.StatusBadRequest},
		{"invalid token", "?token=abc", models.ErrSecretInvalid, http.StatusBadRequest},
		{"expired token", "?token=abc", models.ErrSecretExpired, http.StatusGone},
		{"used token", "?token=abc", models.ErrSecretAlreadyUsed, http.StatusConflict},
		{"valid token", "?token=abc", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&MockAuthService{
				VerifyEmailFunc: func(ctx context.Context, token string) error {
					return tt.verifyErr
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/auth/verify-email"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.VerifyEmail(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthHandler_ConfirmCode(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{
		ConfirmCodeFunc: func(ctx context.Context, email, code string) error {
			assert.Equal(t, "user@example.com", email)
			assert.Equal(t, "482913", code)
			return nil
		},
	})

	rec := postJSON(t, h.ConfirmCode, "/auth/confirm-code",
		`{"email":"user@example.com","code":"482913"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
