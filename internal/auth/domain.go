package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator is a POS user allowed to drive the till.
type Operator struct {
	Username     string
	PasswordHash string
	IsActive     bool
}

// Claims are embedded in every access token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Token is returned on successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
