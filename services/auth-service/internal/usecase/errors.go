package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
)

var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrWeakPassword     = errors.New("password does not meet requirements")

	ErrInvalidOtp = errors.New("invalid otp")
	ErrOtpExpired = errors.New("otp has expired")

	ErrTokenNotFound    = errors.New("password reset token not found")
	ErrTokenAlreadyUsed = errors.New("password reset token has already been used")
	ErrTokenExpired     = errors.New("password reset token has expired")
	ErrInvalidToken     = errors.New("invalid password reset token")

	ErrDeliveryError = errors.New("failed to deliver notification")

	// ErrStoreUnavailable is the repository sentinel, re-exported so callers of
	// this package need not import the repository.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)

// storeError annotates a repository failure. Timeouts that surface as bare
// context errors are reported as ErrStoreUnavailable too.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
