package models

import (
	"time"
)

// User roles as stored in users.role
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	EmailVerified bool
	Role          string
	AccessKey     *string    // Current license key, if any
	AccessExpiry  *time.Time // End of the paid access window
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasActiveAccess reports whether the user's paid access window covers now.
func (u *User) HasActiveAccess(now time.Time) bool {
	return u.AccessExpiry != nil && now.Before(*u.AccessExpiry)
}
