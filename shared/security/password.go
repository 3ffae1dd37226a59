// Package security provides password hashing for stored credentials.
package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a supported password hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// BcryptCost is the work factor used for every bcrypt hash.
const BcryptCost = 10

// bcrypt ignores everything past 72 bytes.
const maxBcryptPasswordLen = 72

var (
	ErrEmptyPassword        = errors.New("password cannot be empty")
	ErrPasswordTooLong      = errors.New("password exceeds 72 bytes")
	ErrUnsupportedAlgorithm = errors.New("unsupported password hashing algorithm")
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash produces an encoded, salted hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the encoded hash.
	// Malformed hashes never match.
	Verify(password, encoded string) bool

	// VerifyDummy burns the same amount of work as Verify against a real hash.
	VerifyDummy(password string)

	// NeedsUpgrade reports whether the encoded hash was produced by another algorithm.
	NeedsUpgrade(encoded string) bool
}

// Hasher implements PasswordHasher with bcrypt or argon2id output and accepts both on input.
type Hasher struct {
	algorithm Algorithm
	argon     argon2.Config
	dummy     string
}

// NewHasher creates a Hasher producing hashes with the given algorithm.
func NewHasher(algorithm Algorithm) (*Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	h := &Hasher{
		algorithm: algorithm,
		argon:     argon2.DefaultConfig(),
	}

	dummy, err := h.Hash("lms-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	switch h.algorithm {
	case AlgorithmArgon2id:
		encoded, err := h.argon.HashEncoded([]byte(password))
		if err != nil {
			return "", fmt.Errorf("argon2id hash: %w", err)
		}
		return string(encoded), nil
	default:
		if len(password) > maxBcryptPasswordLen {
			return "", ErrPasswordTooLong
		}
		encoded, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(encoded), nil
	}
}

func (h *Hasher) Verify(password, encoded string) bool {
	switch algorithmOf(encoded) {
	case AlgorithmBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	case AlgorithmArgon2id:
		ok, err := argon2.VerifyEncoded([]byte(password), []byte(encoded))
		return err == nil && ok
	default:
		return false
	}
}

func (h *Hasher) VerifyDummy(password string) {
	_ = h.Verify(password, h.dummy)
}

func (h *Hasher) NeedsUpgrade(encoded string) bool {
	algorithm := algorithmOf(encoded)
	if algorithm != h.algorithm {
		return true
	}
	if algorithm == AlgorithmBcrypt {
		cost, err := bcrypt.Cost([]byte(encoded))
		return err != nil || cost != BcryptCost
	}

	return false
}

func algorithmOf(encoded string) Algorithm {
	switch {
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return AlgorithmBcrypt
	case strings.HasPrefix(encoded, "$argon2id$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}
