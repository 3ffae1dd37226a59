// Package token issues and verifies the signed access, refresh and reset grant tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	authtypes "github.com/vasapolrittideah/lms-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/lms-api/shared/auth"
)

var (
	// ErrInvalidSignature covers every token that cannot be trusted: bad signature,
	// wrong key, malformed input, or unexpected issuer, audience or algorithm.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned for a well-signed token whose exp has passed.
	ErrExpired = errors.New("token has expired")
)

// Token is a signed token together with the window it is valid for.
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs each token kind with its own secret.
type Issuer struct {
	jwtAuth auth.JWTAuthenticator
	cfg     config.TokenConfig
	now     func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used both to stamp and to check tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer. The configured issuer name doubles as the audience.
func NewIssuer(cfg config.TokenConfig, opts ...Option) *Issuer {
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	i.jwtAuth = auth.NewJWTAuthenticator(cfg.Issuer, cfg.Issuer, auth.WithClock(i.now))

	return i
}

// IssueAccess signs a short-lived access token for the account.
func (i *Issuer) IssueAccess(accountID, email string) (Token, error) {
	return i.issue(accountID, i.cfg.AccessTokenSecret, i.cfg.AccessTokenExpiresIn, func(rc jwt.RegisteredClaims) jwt.Claims {
		return authtypes.JWTClaims{Email: email, RegisteredClaims: rc}
	})
}

// IssueRefresh signs a refresh token. Every refresh token carries a fresh jti so
// two tokens minted within the same second never compare equal.
func (i *Issuer) IssueRefresh(accountID string) (Token, error) {
	return i.issue(accountID, i.cfg.RefreshTokenSecret, i.cfg.RefreshTokenExpiresIn, func(rc jwt.RegisteredClaims) jwt.Claims {
		return authtypes.JWTClaims{RegisteredClaims: rc}
	})
}

// IssueResetGrant signs the single-use grant handed out after an OTP was verified.
// The returned Token.ID is the jti the caller must persist.
func (i *Issuer) IssueResetGrant(accountID, email string) (Token, error) {
	return i.issue(
		accountID,
		i.cfg.PasswordResetTokenSecret,
		i.cfg.PasswordResetTokenExpiresIn,
		func(rc jwt.RegisteredClaims) jwt.Claims {
			return authtypes.PasswordResetClaims{Email: email, RegisteredClaims: rc}
		},
	)
}

// VerifyAccess checks an access token and returns its claims.
func (i *Issuer) VerifyAccess(tokenStr string) (*authtypes.JWTClaims, error) {
	claims := &authtypes.JWTClaims{}
	if err := i.verify(tokenStr, i.cfg.AccessTokenSecret, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyRefresh checks a refresh token and returns its claims.
func (i *Issuer) VerifyRefresh(tokenStr string) (*authtypes.JWTClaims, error) {
	claims := &authtypes.JWTClaims{}
	if err := i.verify(tokenStr, i.cfg.RefreshTokenSecret, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyResetGrant checks a reset grant token and returns its claims.
func (i *Issuer) VerifyResetGrant(tokenStr string) (*authtypes.PasswordResetClaims, error) {
	claims := &authtypes.PasswordResetClaims{}
	if err := i.verify(tokenStr, i.cfg.PasswordResetTokenSecret, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidSignature)
	}

	return claims, nil
}

func (i *Issuer) issue(
	subject, secret string,
	expiresIn time.Duration,
	build func(jwt.RegisteredClaims) jwt.Claims,
) (Token, error) {
	// NumericDate has second precision; truncating first keeps exp - iat exact.
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(expiresIn)
	jti := uuid.NewString()

	claims := build(jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    i.jwtAuth.Issuer(),
		Audience:  jwt.ClaimStrings{i.jwtAuth.Audience()},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	value, err := i.jwtAuth.GenerateToken(claims, secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Token{Value: value, ID: jti, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

func (i *Issuer) verify(tokenStr, secret string, claims jwt.Claims) error {
	if tokenStr == "" {
		return ErrInvalidSignature
	}

	if _, err := i.jwtAuth.ValidateTokenWithClaims(tokenStr, secret, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}

	return nil
}
