// Package types holds the auth-service types shared with other services.
package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are carried by access and refresh tokens. The account ID is the
// registered subject.
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// PasswordResetClaims are carried by the reset grant issued after a
// successful OTP verification.
type PasswordResetClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens is the token pair handed back to clients. RefreshToken is empty when
// a flow only mints an access token.
type Tokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}
