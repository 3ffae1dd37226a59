// Package otp generates and checks the six-digit passcodes used for password recovery.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
)

const (
	minCode = 100000
	maxCode = 999999
)

var (
	// ErrNotFound is returned when no unconsumed challenge matches the email and code.
	ErrNotFound = errors.New("otp challenge not found")

	// ErrExpired is returned when the matching challenge is past its expiry.
	ErrExpired = errors.New("otp challenge has expired")
)

// Code is a freshly generated passcode.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Manager generates passcodes and validates them against stored challenges.
type Manager struct {
	repo      repository.OtpChallengeRepository
	expiresIn time.Duration
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager whose codes stay valid for expiresIn.
func NewManager(repo repository.OtpChallengeRepository, expiresIn time.Duration, opts ...Option) *Manager {
	m := &Manager{repo: repo, expiresIn: expiresIn, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Generate draws a code uniformly from [100000, 999999].
func (m *Manager) Generate() (Code, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return Code{}, fmt.Errorf("failed to generate otp: %w", err)
	}

	return Code{
		Value:     fmt.Sprintf("%06d", n.Int64()+minCode),
		ExpiresAt: m.now().Add(m.expiresIn),
	}, nil
}

// Persist stores a challenge for email. Only the hash of the code is written.
func (m *Manager) Persist(ctx context.Context, email string, code Code) (*model.OtpChallenge, error) {
	challenge, err := m.repo.CreateChallenge(ctx, &model.OtpChallenge{
		Email:     email,
		CodeHash:  HashCode(code.Value),
		ExpiresAt: code.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist otp challenge: %w", err)
	}

	return challenge, nil
}

// Verify looks up the newest challenge for email and code. Expiry is checked
// before consumption, so a spent code that has also expired reports ErrExpired.
func (m *Manager) Verify(ctx context.Context, email, code string) (*model.OtpChallenge, error) {
	challenge, err := m.repo.FindLatestChallenge(ctx, email, HashCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find otp challenge: %w", err)
	}

	if challenge.IsExpired(m.now()) {
		return nil, ErrExpired
	}
	if challenge.Used {
		return nil, ErrNotFound
	}

	return challenge, nil
}

// Consume marks the challenge used. Of two concurrent consumers only one succeeds;
// the other gets ErrNotFound.
func (m *Manager) Consume(ctx context.Context, challenge *model.OtpChallenge) error {
	if err := m.repo.MarkChallengeUsed(ctx, challenge.ID.Hex()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to consume otp challenge: %w", err)
	}

	return nil
}

// HashCode returns the hex SHA-256 of a code as stored in the challenge.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
