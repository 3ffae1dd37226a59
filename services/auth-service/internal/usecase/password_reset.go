package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/otp"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/token"
	"github.com/vasapolrittideah/lms-api/shared/security"
)

const (
	otpSubject  = "Your OTP"
	otpBodyTmpl = "Your OTP is: %s"
)

// PasswordResetUsecase defines the business logic for OTP based password recovery.
type PasswordResetUsecase interface {
	// RequestPasswordReset sends a one-time passcode to the account's email.
	RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequest, error)

	// VerifyOtp checks a passcode and, on success, hands out a single-use reset grant.
	VerifyOtp(ctx context.Context, email, code string) (*ResetGrant, error)

	// SetNewPassword replaces the password of the account the reset grant was issued for.
	SetNewPassword(ctx context.Context, params SetNewPasswordParams) error
}

// PasswordResetRequest reports the outcome of RequestPasswordReset. The passcode is
// stored even when delivery fails; DeliveryErr then wraps ErrDeliveryError.
type PasswordResetRequest struct {
	ExpiresAt   time.Time
	Delivered   bool
	DeliveryErr error
}

// ResetGrant authorises exactly one SetNewPassword call before ExpiresAt.
type ResetGrant struct {
	Token     string
	ExpiresAt time.Time
}

// SetNewPasswordParams defines the parameters for setting a new password.
type SetNewPasswordParams struct {
	Email       string
	ResetToken  string
	NewPassword string
}

type passwordResetUsecase struct {
	logger         *zerolog.Logger
	accountRepo    repository.AccountRepository
	grantRepo      repository.ResetGrantRepository
	otpManager     *otp.Manager
	issuer         *token.Issuer
	hasher         security.PasswordHasher
	notifier       Notifier
	authServiceCfg *config.AuthServiceConfig
	now            func() time.Time
	notifyBackoff  time.Duration

	// issueLatency is a smoothed duration, in nanoseconds, of the work done for a
	// known account. Requests for unknown accounts wait as long before returning.
	issueLatency atomic.Int64
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	logger *zerolog.Logger,
	accountRepo repository.AccountRepository,
	grantRepo repository.ResetGrantRepository,
	otpManager *otp.Manager,
	issuer *token.Issuer,
	hasher security.PasswordHasher,
	notifier Notifier,
	authServiceCfg *config.AuthServiceConfig,
	opts ...Option,
) PasswordResetUsecase {
	o := newOptions(opts)

	return &passwordResetUsecase{
		logger:         logger,
		accountRepo:    accountRepo,
		grantRepo:      grantRepo,
		otpManager:     otpManager,
		issuer:         issuer,
		hasher:         hasher,
		notifier:       notifier,
		authServiceCfg: authServiceCfg,
		now:            o.now,
		notifyBackoff:  o.notifyBackoff,
	}
}

func (u *passwordResetUsecase) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequest, error) {
	email = normalizeEmail(email)

	if _, err := u.accountRepo.GetAccountByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.waitIssueLatency(ctx)
			return nil, ErrAccountNotFound
		}
		return nil, storeError("failed to look up account", err)
	}

	start := time.Now()

	code, err := u.otpManager.Generate()
	if err != nil {
		return nil, err
	}

	if _, err := u.otpManager.Persist(ctx, email, code); err != nil {
		return nil, storeError("failed to store otp", err)
	}

	result := &PasswordResetRequest{ExpiresAt: code.ExpiresAt, Delivered: true}

	body := fmt.Sprintf(otpBodyTmpl, code.Value)
	if err := deliver(ctx, u.notifier, u.notifyBackoff, email, otpSubject, body); err != nil {
		u.logger.Warn().Err(err).Str("email", email).Msg("failed to deliver otp")
		result.Delivered = false
		result.DeliveryErr = err
	}

	u.observeIssueLatency(time.Since(start))

	return result, nil
}

func (u *passwordResetUsecase) observeIssueLatency(d time.Duration) {
	for {
		old := u.issueLatency.Load()
		next := int64(d)
		if old != 0 {
			next = old + (int64(d)-old)/4
		}
		if u.issueLatency.CompareAndSwap(old, next) {
			return
		}
	}
}

func (u *passwordResetUsecase) waitIssueLatency(ctx context.Context) {
	d := time.Duration(u.issueLatency.Load())
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (u *passwordResetUsecase) VerifyOtp(ctx context.Context, email, code string) (*ResetGrant, error) {
	email = normalizeEmail(email)

	challenge, err := u.otpManager.Verify(ctx, email, code)
	if err != nil {
		return nil, otpError(err)
	}

	account, err := u.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOtp
		}
		return nil, storeError("failed to look up account", err)
	}

	accountID := account.ID.Hex()

	grant, err := u.issuer.IssueResetGrant(accountID, account.Email)
	if err != nil {
		return nil, err
	}

	// The grant is stored before the code is spent, so a failed write leaves the code usable.
	if _, err := u.grantRepo.CreateGrant(ctx, &model.ResetGrant{
		AccountID: account.ID,
		JTI:       grant.ID,
		Email:     account.Email,
		ExpiresAt: grant.ExpiresAt,
	}); err != nil {
		return nil, storeError("failed to store reset grant", err)
	}

	if err := u.otpManager.Consume(ctx, challenge); err != nil {
		// Another request spent the code first; its grant is the one that counts.
		if markErr := u.grantRepo.MarkGrantUsed(ctx, grant.ID); markErr != nil && !errors.Is(markErr, repository.ErrNotFound) {
			u.logger.Error().Err(markErr).Str("account_id", accountID).Msg("failed to discard unclaimed reset grant")
		}
		return nil, otpError(err)
	}

	// Only the newest grant of an account stays spendable. SetNewPassword clears
	// any leftovers if this fails.
	if err := u.grantRepo.InvalidateAccountGrants(ctx, accountID, grant.ID); err != nil {
		u.logger.Warn().Err(err).Str("account_id", accountID).Msg("failed to invalidate older reset grants")
	}

	return &ResetGrant{Token: grant.Value, ExpiresAt: grant.ExpiresAt}, nil
}

func (u *passwordResetUsecase) SetNewPassword(ctx context.Context, params SetNewPasswordParams) error {
	email := normalizeEmail(params.Email)

	if err := checkPassword(params.NewPassword, u.authServiceCfg.Password.MinLength); err != nil {
		return err
	}

	claims, err := u.issuer.VerifyResetGrant(params.ResetToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Email != email {
		return ErrInvalidToken
	}

	grant, err := u.grantRepo.GetGrantByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenNotFound
		}
		return storeError("failed to get reset grant", err)
	}

	if grant.Used {
		return ErrTokenAlreadyUsed
	}

	if grant.IsExpired(u.now()) {
		return ErrTokenExpired
	}

	if grant.Email != email || grant.AccountID.Hex() != claims.Subject {
		return ErrInvalidToken
	}

	account, err := u.accountRepo.GetAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return storeError("failed to get account", err)
	}

	passwordHash, err := u.hasher.Hash(params.NewPassword)
	if err != nil {
		return hashError(err)
	}

	// Spend the grant first so two concurrent calls cannot both change the password.
	if err := u.grantRepo.MarkGrantUsed(ctx, grant.JTI); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenAlreadyUsed
		}
		return storeError("failed to mark reset grant used", err)
	}

	update := revokeRefreshToken()
	update.PasswordHash = &passwordHash

	if _, err := u.accountRepo.UpdateAccount(ctx, account.ID.Hex(), update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return storeError("failed to update password", err)
	}

	if err := u.grantRepo.InvalidateAccountGrants(ctx, account.ID.Hex(), ""); err != nil {
		u.logger.Warn().Err(err).Str("account_id", account.ID.Hex()).Msg("failed to invalidate remaining reset grants")
	}

	u.logger.Info().Str("account_id", account.ID.Hex()).Msg("password reset")

	return nil
}

func otpError(err error) error {
	switch {
	case errors.Is(err, otp.ErrExpired):
		return ErrOtpExpired
	case errors.Is(err, otp.ErrNotFound):
		return ErrInvalidOtp
	default:
		return storeError("otp lookup failed", err)
	}
}
