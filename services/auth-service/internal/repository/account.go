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

// AccountRepository defines the interface for account-related database operations.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (*model.Account, error)
}

// UpdateAccountParams defines the optional parameters for updating an account.
// Only the fields that are not nil will be updated. An empty RefreshToken
// revokes the stored one.
type UpdateAccountParams struct {
	PasswordHash          *string
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	LastLoginAt           *time.Time
}

func (p UpdateAccountParams) isEmpty() bool {
	return p.PasswordHash == nil && p.RefreshToken == nil && p.RefreshTokenExpiresAt == nil && p.LastLoginAt == nil
}

var errNoAccountFields = errors.New("no account fields to update")

const accountCollection = "accounts"

type accountMongoRepository struct {
	db      *mongo.Database
	timeout time.Duration
}

// NewAccountMongoRepository creates the MongoDB account repository and its unique email index.
func NewAccountMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	timeout time.Duration,
) AccountRepository {
	collection := db.Collection(accountCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	indexCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(indexCtx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create account indexes")
	}

	return &accountMongoRepository{db: db, timeout: timeout}
}

func (r *accountMongoRepository) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := r.db.Collection(accountCollection).InsertOne(ctx, account)
	if err != nil {
		return nil, translateError(err)
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}
	account.ID = objectID

	return account, nil
}

func (r *accountMongoRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *accountMongoRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *accountMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var account model.Account
	if err := r.db.Collection(accountCollection).FindOne(ctx, filter).Decode(&account); err != nil {
		return nil, translateError(err)
	}

	return &account, nil
}

func (r *accountMongoRepository) UpdateAccount(
	ctx context.Context,
	id string,
	params UpdateAccountParams,
) (*model.Account, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	if params.isEmpty() {
		return nil, errNoAccountFields
	}

	updateMap := bson.M{"updated_at": time.Now()}
	if params.PasswordHash != nil {
		updateMap["password_hash"] = *params.PasswordHash
	}
	if params.RefreshToken != nil {
		updateMap["refresh_token"] = *params.RefreshToken
	}
	if params.RefreshTokenExpiresAt != nil {
		updateMap["refresh_token_expires_at"] = *params.RefreshTokenExpiresAt
	}
	if params.LastLoginAt != nil {
		updateMap["last_login_at"] = *params.LastLoginAt
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var account model.Account
	err = r.db.Collection(accountCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if err != nil {
		return nil, translateError(err)
	}

	return &account, nil
}
