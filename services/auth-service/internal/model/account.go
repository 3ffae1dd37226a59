package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Account represents a learner or staff member able to sign in.
// RefreshToken holds the single live refresh token; empty means signed out.
type Account struct {
	ID                    bson.ObjectID `bson:"_id,omitempty"`
	Name                  string        `bson:"name"`
	Mobile                string        `bson:"mobile"`
	Email                 string        `bson:"email"`
	PasswordHash          string        `bson:"password_hash"`
	RefreshToken          string        `bson:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time     `bson:"refresh_token_expires_at,omitempty"`
	LastLoginAt           time.Time     `bson:"last_login_at,omitempty"`
	CreatedAt             time.Time     `bson:"created_at"`
	UpdatedAt             time.Time     `bson:"updated_at"`
}
