package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/token"
	authtypes "github.com/vasapolrittideah/lms-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/lms-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	// Signup creates an account and returns an access token for it.
	Signup(ctx context.Context, params SignupParams) (*authtypes.Tokens, error)

	// Login checks the password and returns an access and refresh token pair.
	// The refresh token replaces whatever was stored for the account before.
	Login(ctx context.Context, params LoginParams) (*authtypes.Tokens, error)

	// Refresh exchanges the stored refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*authtypes.Tokens, error)

	// Logout revokes the stored refresh token.
	Logout(ctx context.Context, refreshToken string) error

	// Authenticate validates an access token.
	Authenticate(ctx context.Context, accessToken string) (*authtypes.JWTClaims, error)

	// GetAccount returns the account with the given ID.
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
}

// SignupParams defines the parameters for account signup.
type SignupParams struct {
	Name     string
	Mobile   string
	Email    string
	Password string
}

// LoginParams defines the parameters for account login.
type LoginParams struct {
	Email    string
	Password string
}

type authUsecase struct {
	logger         *zerolog.Logger
	accountRepo    repository.AccountRepository
	hasher         security.PasswordHasher
	issuer         *token.Issuer
	authServiceCfg *config.AuthServiceConfig
	now            func() time.Time
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	logger *zerolog.Logger,
	accountRepo repository.AccountRepository,
	hasher security.PasswordHasher,
	issuer *token.Issuer,
	authServiceCfg *config.AuthServiceConfig,
	opts ...Option,
) AuthUsecase {
	o := newOptions(opts)

	return &authUsecase{
		logger:         logger,
		accountRepo:    accountRepo,
		hasher:         hasher,
		issuer:         issuer,
		authServiceCfg: authServiceCfg,
		now:            o.now,
	}
}

func (u *authUsecase) Signup(ctx context.Context, params SignupParams) (*authtypes.Tokens, error) {
	email := normalizeEmail(params.Email)

	if err := checkPassword(params.Password, u.authServiceCfg.Password.MinLength); err != nil {
		return nil, err
	}

	if _, err := u.accountRepo.GetAccountByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError("failed to look up account", err)
	}

	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, hashError(err)
	}

	account, err := u.accountRepo.CreateAccount(ctx, &model.Account{
		Name:         strings.TrimSpace(params.Name),
		Mobile:       strings.TrimSpace(params.Mobile),
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		// Lost a race with a concurrent signup for the same email.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, storeError("failed to create account", err)
	}

	access, err := u.issuer.IssueAccess(account.ID.Hex(), account.Email)
	if err != nil {
		return nil, err
	}

	u.logger.Info().Str("account_id", account.ID.Hex()).Msg("account created")

	return &authtypes.Tokens{
		AccessToken:          access.Value,
		AccessTokenExpiresAt: access.ExpiresAt,
	}, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*authtypes.Tokens, error) {
	email := normalizeEmail(params.Email)

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.hasher.VerifyDummy(params.Password)
			return nil, ErrAccountNotFound
		}
		return nil, storeError("failed to look up account", err)
	}

	if !u.hasher.Verify(params.Password, account.PasswordHash) {
		return nil, ErrBadCredentials
	}

	accountID := account.ID.Hex()

	access, err := u.issuer.IssueAccess(accountID, account.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := u.issuer.IssueRefresh(accountID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	update := repository.UpdateAccountParams{
		RefreshToken:          &refresh.Value,
		RefreshTokenExpiresAt: &refresh.ExpiresAt,
		LastLoginAt:           &now,
	}

	if u.hasher.NeedsUpgrade(account.PasswordHash) {
		if upgraded, err := u.hasher.Hash(params.Password); err != nil {
			u.logger.Warn().Err(err).Str("account_id", accountID).Msg("failed to upgrade password hash")
		} else {
			update.PasswordHash = &upgraded
		}
	}

	if _, err := u.accountRepo.UpdateAccount(ctx, accountID, update); err != nil {
		return nil, storeError("failed to store refresh token", err)
	}

	return &authtypes.Tokens{
		AccessToken:           access.Value,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh.Value,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*authtypes.Tokens, error) {
	account, err := u.checkRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	access, err := u.issuer.IssueAccess(account.ID.Hex(), account.Email)
	if err != nil {
		return nil, err
	}

	return &authtypes.Tokens{
		AccessToken:          access.Value,
		AccessTokenExpiresAt: access.ExpiresAt,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	account, err := u.checkRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	if _, err := u.accountRepo.UpdateAccount(ctx, account.ID.Hex(), revokeRefreshToken()); err != nil {
		return storeError("failed to revoke refresh token", err)
	}

	return nil
}

func (u *authUsecase) Authenticate(_ context.Context, accessToken string) (*authtypes.JWTClaims, error) {
	claims, err := u.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return claims, nil
}

func (u *authUsecase) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := u.accountRepo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError("failed to get account", err)
	}

	return account, nil
}

// checkRefreshToken requires a valid signature, an unexpired token, and an exact
// match with the value currently stored on the account.
func (u *authUsecase) checkRefreshToken(ctx context.Context, refreshToken string) (*model.Account, error) {
	claims, err := u.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	account, err := u.accountRepo.GetAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeError("failed to get account", err)
	}

	if account.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, fmt.Errorf("%w: refresh token superseded", ErrUnauthorized)
	}

	if !u.now().Before(account.RefreshTokenExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
	}

	return account, nil
}

func revokeRefreshToken() repository.UpdateAccountParams {
	empty := ""
	var zero time.Time

	return repository.UpdateAccountParams{
		RefreshToken:          &empty,
		RefreshTokenExpiresAt: &zero,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, minLength)
	}

	return nil
}

func hashError(err error) error {
	if errors.Is(err, security.ErrEmptyPassword) || errors.Is(err, security.ErrPasswordTooLong) {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	return fmt.Errorf("failed to hash password: %w", err)
}
