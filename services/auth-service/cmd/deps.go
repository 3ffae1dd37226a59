package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
)

// stores groups the repositories the usecases depend on.
type stores struct {
	accounts   repository.AccountRepository
	challenges repository.OtpChallengeRepository
	grants     repository.ResetGrantRepository
	close      func(context.Context) error
}

// openStores connects to MongoDB, or builds a process-local store when inMemory is set.
func openStores(ctx context.Context, cfg *config.AuthServiceConfig, logger *zerolog.Logger, inMemory bool) (*stores, error) {
	if inMemory {
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		store := repository.NewMemoryStore()
		return &stores{
			accounts:   store,
			challenges: store,
			grants:     store,
			close:      func(context.Context) error { return nil },
		}, nil
	}

	client, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)

	return &stores{
		accounts:   repository.NewAccountMongoRepository(ctx, logger, db, cfg.Mongo.Timeout),
		challenges: repository.NewOtpChallengeMongoRepository(ctx, logger, db, cfg.Mongo.Timeout, cfg.OTP.Retention),
		grants:     repository.NewResetGrantMongoRepository(ctx, logger, db, cfg.Mongo.Timeout),
		close:      client.Disconnect,
	}, nil
}
