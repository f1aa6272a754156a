package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the bearer token payload accepted by the diagnostics API.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Operator identifies who issued a request, falling back to the registered
// subject for tokens minted without user_id.
func (c *JWTClaims) Operator() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
