package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlux-store/tlux-api/internal/clock"
	"github.com/tlux-store/tlux-api/internal/models"
)

func testVerificationConfig() VerificationConfig {
	return VerificationConfig{
		TokenTTL:   48 * time.Hour,
		CodeTTL:    10 * time.Minute,
		CodeLength: 6,
	}
}

func TestVerificationService_IssueToken_StoresDigestOnly(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var storedHash string
	var storedExpiry time.Time
	repo := &MockVerificationRepository{
		CreateTokenFunc: func(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.VerificationToken, error) {
			storedHash = tokenHash
			storedExpiry = expiresAt
			return &models.VerificationToken{ID: "t1", UserID: userID, TokenHash: tokenHash, Email: email, ExpiresAt: expiresAt}, nil
		},
	}

	svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

	token, expiresAt, err := svc.IssueToken(context.Background(), "user-1", "user@example.com")
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.NotEqual(t, token, storedHash)
	assert.Equal(t, hashSecret(token), storedHash)
	assert.Equal(t, clk.T.Add(48*time.Hour), storedExpiry)
	assert.Equal(t, storedExpiry, expiresAt)
}

func TestVerificationService_RedeemToken(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	token := "deadbeef"
	used := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		record  *models.VerificationToken
		wantErr error
	}{
		{
			name:    "unknown token",
			record:  nil,
			wantErr: models.ErrSecretInvalid,
		},
		{
			name: "expired token",
			record: &models.VerificationToken{
				ID: "t1", UserID: "user-1",
				ExpiresAt: clk.T.Add(-1 * time.Minute),
			},
			wantErr: models.ErrSecretExpired,
		},
		{
			name: "already used token",
			record: &models.VerificationToken{
				ID: "t1", UserID: "user-1",
				ExpiresAt: clk.T.Add(time.Hour),
				UsedAt:    &used,
			},
			wantErr: models.ErrSecretAlreadyUsed,
		},
		{
			// A token both consumed and past expiry reports consumption.
			name: "used token past expiry",
			record: &models.VerificationToken{
				ID: "t1", UserID: "user-1",
				ExpiresAt: clk.T.Add(-1 * time.Minute),
				UsedAt:    &used,
			},
			wantErr: models.ErrSecretAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockVerificationRepository{
				GetTokenByHashFunc: func(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
					if tt.record == nil {
						return nil, models.ErrNotFound
					}
					return tt.record, nil
				},
			}

			svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

			_, err := svc.RedeemToken(context.Background(), token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerificationService_RedeemToken_MarksUserVerified(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var consumedID, verifiedUser string
	repo := &MockVerificationRepository{
		GetTokenByHashFunc: func(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
			return &models.VerificationToken{
				ID: "t1", UserID: "user-1", Email: "user@example.com",
				ExpiresAt: clk.T.Add(time.Hour),
			}, nil
		},
		ConsumeTokenVerifyUserFunc: func(ctx context.Context, id, userID string, now time.Time) error {
			consumedID = id
			verifiedUser = userID
			return nil
		},
	}

	svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

	record, err := svc.RedeemToken(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "t1", consumedID)
	assert.Equal(t, "user-1", verifiedUser)
	assert.Equal(t, "user-1", record.UserID)
}

func TestVerificationService_RedeemToken_LosesConsumeRace(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo := &MockVerificationRepository{
		GetTokenByHashFunc: func(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
			return &models.VerificationToken{
				ID: "t1", UserID: "user-1",
				ExpiresAt: clk.T.Add(time.Hour),
			}, nil
		},
		ConsumeTokenVerifyUserFunc: func(ctx context.Context, id, userID string, now time.Time) error {
			// Another redeemer consumed between the read and the update.
			return models.ErrSecretAlreadyUsed
		},
	}

	svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

	_, err := svc.RedeemToken(context.Background(), "some-token")
	assert.ErrorIs(t, err, models.ErrSecretAlreadyUsed)
}

func TestVerificationService_IssueCode_SupersedesPriorCodes(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	invalidated := false
	var storedHash string
	repo := &MockVerificationRepository{
		InvalidateCodesFunc: func(ctx context.Context, email string, now time.Time) (int64, error) {
			invalidated = true
			return 2, nil
		},
		CreateCodeFunc: func(ctx context.Context, userID *string, email, codeHash string, expiresAt time.Time) (*models.VerificationCode, error) {
			require.True(t, invalidated, "prior codes must be invalidated before the new one exists")
			storedHash = codeHash
			assert.Equal(t, clk.T.Add(10*time.Minute), expiresAt)
			return &models.VerificationCode{ID: "c1", Email: email, CodeHash: codeHash, ExpiresAt: expiresAt}, nil
		},
	}

	svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

	code, err := svc.IssueCode(context.Background(), nil, "user@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.Contains(t, "0123456789", string(r))
	}
	assert.Equal(t, hashSecret(code), storedHash)
}

func TestVerificationService_RedeemCode(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	used := clk.T.Add(-time.Minute)

	tests := []struct {
		name    string
		code    string
		record  *models.VerificationCode
		wantErr error
	}{
		{
			name:    "no code issued",
			code:    "482913",
			record:  nil,
			wantErr: models.ErrSecretInvalid,
		},
		{
			name: "wrong digits",
			code: "000000",
			record: &models.VerificationCode{
				ID: "c1", CodeHash: hashSecret("482913"),
				ExpiresAt: clk.T.Add(5 * time.Minute),
			},
			wantErr: models.ErrSecretInvalid,
		},
		{
			name: "expired code",
			code: "482913",
			record: &models.VerificationCode{
				ID: "c1", CodeHash: hashSecret("482913"),
				ExpiresAt: clk.T.Add(-1 * time.Second),
			},
			wantErr: models.ErrSecretExpired,
		},
		{
			name: "already used code",
			code: "482913",
			record: &models.VerificationCode{
				ID: "c1", CodeHash: hashSecret("482913"),
				ExpiresAt: clk.T.Add(5 * time.Minute),
				UsedAt:    &used,
			},
			wantErr: models.ErrSecretAlreadyUsed,
		},
		{
			name: "used code past expiry",
			code: "482913",
			record: &models.VerificationCode{
				ID: "c1", CodeHash: hashSecret("482913"),
				ExpiresAt: clk.T.Add(-1 * time.Second),
				UsedAt:    &used,
			},
			wantErr: models.ErrSecretAlreadyUsed,
		},
		{
			name: "valid code",
			code: "482913",
			record: &models.VerificationCode{
				ID: "c1", CodeHash: hashSecret("482913"),
				ExpiresAt: clk.T.Add(5 * time.Minute),
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockVerificationRepository{
				GetLatestCodeByEmailFunc: func(ctx context.Context, email string) (*models.VerificationCode, error) {
					if tt.record == nil {
						return nil, models.ErrNotFound
					}
					return tt.record, nil
				},
			}

			svc := NewVerificationService(repo, testVerificationConfig(), clk, testLogger())

			record, err := svc.RedeemCode(context.Background(), "user@example.com", tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", record.ID)
		})
	}
}
