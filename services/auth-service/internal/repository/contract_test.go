package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
)

// runAccountContract exercises behaviour every AccountRepository must share.
func runAccountContract(t *testing.T, repo repository.AccountRepository) {
	ctx := context.Background()

	created, err := repo.CreateAccount(ctx, &model.Account{
		Name:         "alice",
		Mobile:       "555-0100",
		Email:        "alice@x.com",
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	require.False(t, created.ID.IsZero())

	t.Run("email is unique", func(t *testing.T) {
		_, err := repo.CreateAccount(ctx, &model.Account{Email: "alice@x.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	})

	t.Run("lookup by id and email", func(t *testing.T) {
		byID, err := repo.GetAccount(ctx, created.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Name)

		byEmail, err := repo.GetAccountByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := repo.GetAccountByEmail(ctx, "bob@x.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = repo.GetAccount(ctx, bson.NewObjectID().Hex())
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = repo.GetAccount(ctx, "not-an-object-id")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("partial update", func(t *testing.T) {
		token := "refresh-1"
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

		updated, err := repo.UpdateAccount(ctx, created.ID.Hex(), repository.UpdateAccountParams{
			RefreshToken:          &token,
			RefreshTokenExpiresAt: &expires,
		})
		require.NoError(t, err)
		assert.Equal(t, "refresh-1", updated.RefreshToken)
		assert.True(t, expires.Equal(updated.RefreshTokenExpiresAt))
		assert.Equal(t, "$2a$10$hash", updated.PasswordHash)

		cleared := ""
		updated, err = repo.UpdateAccount(ctx, created.ID.Hex(), repository.UpdateAccountParams{RefreshToken: &cleared})
		require.NoError(t, err)
		assert.Empty(t, updated.RefreshToken)
	})

	t.Run("update requires fields", func(t *testing.T) {
		_, err := repo.UpdateAccount(ctx, created.ID.Hex(), repository.UpdateAccountParams{})
		assert.Error(t, err)
	})

	t.Run("update missing account", func(t *testing.T) {
		hash := "x"
		_, err := repo.UpdateAccount(ctx, bson.NewObjectID().Hex(), repository.UpdateAccountParams{PasswordHash: &hash})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

// runOtpChallengeContract exercises behaviour every OtpChallengeRepository must share.
func runOtpChallengeContract(t *testing.T, repo repository.OtpChallengeRepository) {
	ctx := context.Background()
	now := time.Now()

	first, err := repo.CreateChallenge(ctx, &model.OtpChallenge{
		Email:     "alice@x.com",
		CodeHash:  "hash-a",
		ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	// Same code issued again later: the newer row governs.
	time.Sleep(5 * time.Millisecond)
	second, err := repo.CreateChallenge(ctx, &model.OtpChallenge{
		Email:     "alice@x.com",
		CodeHash:  "hash-a",
		ExpiresAt: now.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	t.Run("latest match wins", func(t *testing.T) {
		got, err := repo.FindLatestChallenge(ctx, "alice@x.com", "hash-a")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		assert.NotEqual(t, first.ID, got.ID)
	})

	t.Run("scoped to email", func(t *testing.T) {
		_, err := repo.FindLatestChallenge(ctx, "bob@x.com", "hash-a")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("single use", func(t *testing.T) {
		require.NoError(t, repo.MarkChallengeUsed(ctx, second.ID.Hex()))
		assert.ErrorIs(t, repo.MarkChallengeUsed(ctx, second.ID.Hex()), repository.ErrNotFound)

		got, err := repo.FindLatestChallenge(ctx, "alice@x.com", "hash-a")
		require.NoError(t, err)
		assert.True(t, got.Used)
	})

	t.Run("delete expired", func(t *testing.T) {
		deleted, err := repo.DeleteExpiredChallenges(ctx, now.Add(90*time.Second))
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		got, err := repo.FindLatestChallenge(ctx, "alice@x.com", "hash-a")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})
}

// runResetGrantContract exercises behaviour every ResetGrantRepository must share.
func runResetGrantContract(t *testing.T, repo repository.ResetGrantRepository) {
	ctx := context.Background()
	accountID := bson.NewObjectID()
	now := time.Now()

	_, err := repo.CreateGrant(ctx, &model.ResetGrant{
		AccountID: accountID,
		JTI:       "jti-1",
		Email:     "alice@x.com",
		ExpiresAt: now.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	t.Run("lookup", func(t *testing.T) {
		grant, err := repo.GetGrantByJTI(ctx, "jti-1")
		require.NoError(t, err)
		assert.Equal(t, accountID, grant.AccountID)
		assert.False(t, grant.Used)

		_, err = repo.GetGrantByJTI(ctx, "jti-missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("duplicate jti", func(t *testing.T) {
		_, err := repo.CreateGrant(ctx, &model.ResetGrant{AccountID: accountID, JTI: "jti-1", ExpiresAt: now})
		assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	})

	t.Run("single use", func(t *testing.T) {
		require.NoError(t, repo.MarkGrantUsed(ctx, "jti-1"))
		assert.ErrorIs(t, repo.MarkGrantUsed(ctx, "jti-1"), repository.ErrNotFound)
	})

	t.Run("invalidate account grants", func(t *testing.T) {
		for _, jti := range []string{"jti-2", "jti-3"} {
			_, err := repo.CreateGrant(ctx, &model.ResetGrant{
				AccountID: accountID,
				JTI:       jti,
				ExpiresAt: now.Add(10 * time.Minute),
			})
			require.NoError(t, err)
		}

		require.NoError(t, repo.InvalidateAccountGrants(ctx, accountID.Hex(), "jti-3"))

		grant, err := repo.GetGrantByJTI(ctx, "jti-2")
		require.NoError(t, err)
		assert.True(t, grant.Used)

		kept, err := repo.GetGrantByJTI(ctx, "jti-3")
		require.NoError(t, err)
		assert.False(t, kept.Used)

		require.NoError(t, repo.InvalidateAccountGrants(ctx, accountID.Hex(), ""))
		kept, err = repo.GetGrantByJTI(ctx, "jti-3")
		require.NoError(t, err)
		assert.True(t, kept.Used)
	})

	t.Run("delete expired", func(t *testing.T) {
		_, err := repo.CreateGrant(ctx, &model.ResetGrant{
			AccountID: accountID,
			JTI:       "jti-old",
			ExpiresAt: now.Add(-time.Hour),
		})
		require.NoError(t, err)

		deleted, err := repo.DeleteExpiredGrants(ctx, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		_, err = repo.GetGrantByJTI(ctx, "jti-old")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
