package models

import "time"

// Login attempt outcomes as stored in login_attempts.outcome
const (
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
)

// LoginAttempt is a single authentication attempt. Rows are append-only
// and read back as a sliding window by the rate limiter.
type LoginAttempt struct {
	ID          string
	Email       string
	IPAddress   string
	Outcome     string
	AttemptedAt time.Time
	ExpiresAt   time.Time
}

// BlockedEntry is a temporary block on an email or origin IP. At most one
// active row exists per email; repeated failures refresh BlockedUntil.
type BlockedEntry struct {
	ID           string
	Email        string
	IPAddress    string
	BlockedUntil time.Time
}

// Remaining returns how long the block still applies at the given instant.
func (b *BlockedEntry) Remaining(now time.Time) time.Duration {
	if now.After(b.BlockedUntil) {
		return 0
	}
	return b.BlockedUntil.Sub(now)
}
