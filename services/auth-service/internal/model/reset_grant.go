package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ResetGrant authorises exactly one password change after an OTP was verified.
// The signed grant token carries JTI; this record tracks whether it was spent.
type ResetGrant struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	AccountID bson.ObjectID `bson:"account_id"`
	JTI       string        `bson:"jti"`
	Email     string        `bson:"email"`
	Used      bool          `bson:"used"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// IsExpired reports whether the grant can no longer be spent at now.
func (g *ResetGrant) IsExpired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
