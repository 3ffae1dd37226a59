package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OtpChallenge is a one-time passcode sent to Email for password recovery.
// Only the SHA-256 of the code is stored.
type OtpChallenge struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	CodeHash  string        `bson:"code_hash"`
	Used      bool          `bson:"used"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// IsExpired reports whether the challenge can no longer be accepted at now.
// A challenge is still valid at exactly ExpiresAt.
func (c *OtpChallenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
