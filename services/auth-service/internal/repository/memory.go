package repository

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
)

// MemoryStore keeps accounts, OTP challenges and reset grants in process memory.
// It implements AccountRepository, OtpChallengeRepository and ResetGrantRepository
// and is meant for tests and local development without MongoDB.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[bson.ObjectID]model.Account
	challenges []model.OtpChallenge
	grants     map[string]model.ResetGrant
}

var (
	_ AccountRepository      = (*MemoryStore)(nil)
	_ OtpChallengeRepository = (*MemoryStore)(nil)
	_ ResetGrantRepository   = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[bson.ObjectID]model.Account),
		grants:   make(map[string]model.ResetGrant),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return nil, ErrDuplicateKey
		}
	}

	now := time.Now()
	account.ID = bson.NewObjectID()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account

	stored := *account
	return &stored, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[objectID]
	if !ok {
		return nil, ErrNotFound
	}

	return &account, nil
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.Email == email {
			return &account, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.isEmpty() {
		return nil, errNoAccountFields
	}

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[objectID]
	if !ok {
		return nil, ErrNotFound
	}

	if params.PasswordHash != nil {
		account.PasswordHash = *params.PasswordHash
	}
	if params.RefreshToken != nil {
		account.RefreshToken = *params.RefreshToken
	}
	if params.RefreshTokenExpiresAt != nil {
		account.RefreshTokenExpiresAt = *params.RefreshTokenExpiresAt
	}
	if params.LastLoginAt != nil {
		account.LastLoginAt = *params.LastLoginAt
	}
	account.UpdatedAt = time.Now()
	s.accounts[objectID] = account

	return &account, nil
}

func (s *MemoryStore) CreateChallenge(ctx context.Context, challenge *model.OtpChallenge) (*model.OtpChallenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	challenge.ID = bson.NewObjectID()
	challenge.Used = false
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	s.challenges = append(s.challenges, *challenge)

	stored := *challenge
	return &stored, nil
}

func (s *MemoryStore) FindLatestChallenge(ctx context.Context, email, codeHash string) (*model.OtpChallenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// challenges is append-only, so the last match is the newest.
	for i := len(s.challenges) - 1; i >= 0; i-- {
		c := s.challenges[i]
		if c.Email == email && c.CodeHash == codeHash {
			return &c, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) MarkChallengeUsed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.challenges {
		if s.challenges[i].ID.Hex() == id && !s.challenges[i].Used {
			s.challenges[i].Used = true
			s.challenges[i].UpdatedAt = time.Now()
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.challenges[:0]
	var deleted int64
	for _, c := range s.challenges {
		if c.ExpiresAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.challenges = kept

	return deleted, nil
}

func (s *MemoryStore) CreateGrant(ctx context.Context, grant *model.ResetGrant) (*model.ResetGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[grant.JTI]; exists {
		return nil, ErrDuplicateKey
	}

	now := time.Now()
	grant.ID = bson.NewObjectID()
	grant.Used = false
	grant.CreatedAt = now
	grant.UpdatedAt = now
	s.grants[grant.JTI] = *grant

	stored := *grant
	return &stored, nil
}

func (s *MemoryStore) GetGrantByJTI(ctx context.Context, jti string) (*model.ResetGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[jti]
	if !ok {
		return nil, ErrNotFound
	}

	return &grant, nil
}

func (s *MemoryStore) MarkGrantUsed(ctx context.Context, jti string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[jti]
	if !ok || grant.Used {
		return ErrNotFound
	}

	grant.Used = true
	grant.UpdatedAt = time.Now()
	s.grants[jti] = grant

	return nil
}

func (s *MemoryStore) InvalidateAccountGrants(ctx context.Context, accountID, keepJTI string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, grant := range s.grants {
		if jti != keepJTI && grant.AccountID.Hex() == accountID && !grant.Used {
			grant.Used = true
			grant.UpdatedAt = time.Now()
			s.grants[jti] = grant
		}
	}

	return nil
}

func (s *MemoryStore) DeleteExpiredGrants(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for jti, grant := range s.grants {
		if grant.ExpiresAt.Before(before) {
			delete(s.grants, jti)
			deleted++
		}
	}

	return deleted, nil
}
