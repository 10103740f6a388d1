package models

import "time"

// VerificationToken is a single-use email verification link token.
// Only the SHA-256 digest of the token is ever stored.
type VerificationToken struct {
	ID        string
	UserID    string
	TokenHash string `json:"-"`
	Email     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *VerificationToken) IsUsed() bool {
	return t.UsedAt != nil
}

// VerificationCode is a single-use numeric OTP delivered by email.
// Only the SHA-256 digest of the code is ever stored; issuing a new code
// supersedes all prior unconsumed codes for the same address.
type VerificationCode struct {
	ID        string
	UserID    *string
	Email     string
	CodeHash  string `json:"-"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *VerificationCode) IsUsed() bool {
	return c.UsedAt != nil
}
