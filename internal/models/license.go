package models

import "time"

// License is a paid access grant minted from a completed package purchase.
// TransactionID carries a uniqueness constraint: at most one license per
// transaction, which is what makes fulfillment retriable.
type License struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Key           string    `json:"key"`
	Package       string    `json:"package"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	TransactionID string    `json:"transaction_id"`
}

func (l *License) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
