package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated identity through middleware and
// handlers. Every service entry point trusts these claims; credential
// verification happens only at login.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the credential payload for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and the authenticated profile.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}
