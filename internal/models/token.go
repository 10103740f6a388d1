package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims represents the custom JWT claims carried by access and
// refresh tokens.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
