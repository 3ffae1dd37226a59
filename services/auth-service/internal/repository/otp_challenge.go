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

// OtpChallengeRepository defines the interface for one-time passcode persistence.
type OtpChallengeRepository interface {
	// CreateChallenge stores a new, unused challenge.
	CreateChallenge(ctx context.Context, challenge *model.OtpChallenge) (*model.OtpChallenge, error)

	// FindLatestChallenge returns the most recently created challenge for email
	// whose code hash matches, used or not.
	FindLatestChallenge(ctx context.Context, email, codeHash string) (*model.OtpChallenge, error)

	// MarkChallengeUsed flips an unused challenge to used. It returns ErrNotFound
	// when the challenge does not exist or was already used.
	MarkChallengeUsed(ctx context.Context, id string) error

	// DeleteExpiredChallenges removes challenges that expired before the given time.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}

const otpChallengeCollection = "otp_challenges"

type otpChallengeMongoRepository struct {
	db      *mongo.Database
	timeout time.Duration
}

// NewOtpChallengeMongoRepository creates the MongoDB OTP repository. Expired
// challenges are dropped by a TTL index once retention has passed.
func NewOtpChallengeMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	timeout time.Duration,
	retention time.Duration,
) OtpChallengeRepository {
	collection := db.Collection(otpChallengeCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "code_hash", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		},
	}

	indexCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(indexCtx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create otp challenge indexes")
	}

	return &otpChallengeMongoRepository{db: db, timeout: timeout}
}

func (r *otpChallengeMongoRepository) CreateChallenge(
	ctx context.Context,
	challenge *model.OtpChallenge,
) (*model.OtpChallenge, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	challenge.Used = false

	result, err := r.db.Collection(otpChallengeCollection).InsertOne(ctx, challenge)
	if err != nil {
		return nil, translateError(err)
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}
	challenge.ID = objectID

	return challenge, nil
}

func (r *otpChallengeMongoRepository) FindLatestChallenge(
	ctx context.Context,
	email, codeHash string,
) (*model.OtpChallenge, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"email": email, "code_hash": codeHash}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var challenge model.OtpChallenge
	if err := r.db.Collection(otpChallengeCollection).FindOne(ctx, filter, opts).Decode(&challenge); err != nil {
		return nil, translateError(err)
	}

	return &challenge, nil
}

func (r *otpChallengeMongoRepository) MarkChallengeUsed(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": objectID, "used": false}
	update := bson.M{
		"$set": bson.M{
			"used":       true,
			"updated_at": time.Now(),
		},
	}

	result, err := r.db.Collection(otpChallengeCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return translateError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *otpChallengeMongoRepository) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"expires_at": bson.M{"$lt": before},
	}

	result, err := r.db.Collection(otpChallengeCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, translateError(err)
	}

	return result.DeletedCount, nil
}
