package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
)

// ResetGrantRepository defines the interface for password reset grant operations.
type ResetGrantRepository interface {
	// CreateGrant creates a new, unused reset grant.
	CreateGrant(ctx context.Context, grant *model.ResetGrant) (*model.ResetGrant, error)

	// GetGrantByJTI retrieves a grant by its JTI.
	GetGrantByJTI(ctx context.Context, jti string) (*model.ResetGrant, error)

	// MarkGrantUsed marks an unused grant as used. It returns ErrNotFound when
	// no unused grant with that JTI exists.
	MarkGrantUsed(ctx context.Context, jti string) error

	// InvalidateAccountGrants marks all unused grants of an account as used,
	// except the one identified by keepJTI.
	InvalidateAccountGrants(ctx context.Context, accountID, keepJTI string) error

	// DeleteExpiredGrants removes grants that expired before the given time.
	DeleteExpiredGrants(ctx context.Context, before time.Time) (int64, error)
}

const resetGrantCollection = "reset_grants"

type resetGrantMongoRepository struct {
	db      *mongo.Database
	timeout time.Duration
}

// NewResetGrantMongoRepository creates a new MongoDB repository for reset grants.
func NewResetGrantMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	timeout time.Duration,
) ResetGrantRepository {
	collection := db.Collection(resetGrantCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jti", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	indexCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(indexCtx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create reset grant indexes")
	}

	return &resetGrantMongoRepository{db: db, timeout: timeout}
}

func (r *resetGrantMongoRepository) CreateGrant(
	ctx context.Context,
	grant *model.ResetGrant,
) (*model.ResetGrant, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	grant.CreatedAt = now
	grant.UpdatedAt = now
	grant.Used = false

	result, err := r.db.Collection(resetGrantCollection).InsertOne(ctx, grant)
	if err != nil {
		return nil, translateError(err)
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}
	grant.ID = objectID

	return grant, nil
}

func (r *resetGrantMongoRepository) GetGrantByJTI(ctx context.Context, jti string) (*model.ResetGrant, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var grant model.ResetGrant
	if err := r.db.Collection(resetGrantCollection).FindOne(ctx, bson.M{"jti": jti}).Decode(&grant); err != nil {
		return nil, translateError(err)
	}

	return &grant, nil
}

func (r *resetGrantMongoRepository) MarkGrantUsed(ctx context.Context, jti string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"jti": jti, "used": false}
	update := bson.M{
		"$set": bson.M{
			"used":       true,
			"updated_at": time.Now(),
		},
	}

	result, err := r.db.Collection(resetGrantCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return translateError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *resetGrantMongoRepository) InvalidateAccountGrants(ctx context.Context, accountID, keepJTI string) error {
	objectID, err := bson.ObjectIDFromHex(accountID)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"account_id": objectID,
		"jti":        bson.M{"$ne": keepJTI},
		"used":       false,
	}
	update := bson.M{
		"$set": bson.M{
			"used":       true,
			"updated_at": time.Now(),
		},
	}

	_, err = r.db.Collection(resetGrantCollection).UpdateMany(ctx, filter, update)
	return translateError(err)
}

func (r *resetGrantMongoRepository) DeleteExpiredGrants(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"expires_at": bson.M{"$lt": before},
	}

	result, err := r.db.Collection(resetGrantCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, translateError(err)
	}

	return result.DeletedCount, nil
}
