package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/usecase"
)

const otpPrefix = "Your OTP is: "

func expectOtp(n *mockNotifier, email string) *mock.Call {
	return n.On("SendSimple", []string{email}, "Your OTP", mock.AnythingOfType("string"))
}

// requestCode runs RequestPasswordReset and returns the code that was mailed.
func (f *fixture) requestCode(t *testing.T, email string) string {
	t.Helper()
	expectOtp(f.notifier, email).Return(nil).Once()

	result, err := f.reset.RequestPasswordReset(context.Background(), email)
	require.NoError(t, err)
	require.True(t, result.Delivered)

	body := f.notifier.lastBody(t)
	require.True(t, strings.HasPrefix(body, otpPrefix))
	return strings.TrimPrefix(body, otpPrefix)
}

func (f *fixture) grant(t *testing.T, email string) *usecase.ResetGrant {
	t.Helper()
	grant, err := f.reset.VerifyOtp(context.Background(), email, f.requestCode(t, email))
	require.NoError(t, err)
	return grant
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("mails a six digit code", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		expectOtp(f.notifier, "alice@x.com").Return(nil).Once()

		result, err := f.reset.RequestPasswordReset(ctx, "Alice@X.com")
		require.NoError(t, err)
		assert.True(t, result.Delivered)
		assert.NoError(t, result.DeliveryErr)
		assert.Equal(t, f.clock.Now().Add(time.Minute), result.ExpiresAt)

		code := strings.TrimPrefix(f.notifier.lastBody(t), otpPrefix)
		assert.Regexp(t, `^[1-9][0-9]{5}$`, code)
		f.notifier.AssertExpectations(t)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.reset.RequestPasswordReset(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, usecase.ErrAccountNotFound)
		f.notifier.AssertNotCalled(t, "SendSimple", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("retries delivery once", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		expectOtp(f.notifier, "alice@x.com").Return(errors.New("smtp: 421 try later")).Once()
		expectOtp(f.notifier, "alice@x.com").Return(nil).Once()

		result, err := f.reset.RequestPasswordReset(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.True(t, result.Delivered)
		f.notifier.AssertNumberOfCalls(t, "SendSimple", 2)
	})

	t.Run("stalled notifier gives up at the deadline", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		notifier := &blockingNotifier{release: make(chan struct{})}
		reset := f.resetWith(t, f.store, notifier)

		deadlineCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		result, err := reset.RequestPasswordReset(deadlineCtx, "alice@x.com")
		elapsed := time.Since(start)
		close(notifier.release)

		require.NoError(t, err)
		assert.Less(t, elapsed, time.Second)
		assert.False(t, result.Delivered)
		assert.ErrorIs(t, result.DeliveryErr, usecase.ErrDeliveryError)
		assert.ErrorIs(t, result.DeliveryErr, context.DeadlineExceeded)

		assert.Eventually(t, func() bool { return notifier.active.Load() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("unknown account takes as long as a known one", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		expectOtp(f.notifier, "alice@x.com").
			Run(func(mock.Arguments) { time.Sleep(60 * time.Millisecond) }).
			Return(nil).Once()

		_, err := f.reset.RequestPasswordReset(ctx, "alice@x.com")
		require.NoError(t, err)

		start := time.Now()
		_, err = f.reset.RequestPasswordReset(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, usecase.ErrAccountNotFound)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("delivery failure keeps the challenge", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		expectOtp(f.notifier, "alice@x.com").Return(errors.New("smtp: connection refused"))

		result, err := f.reset.RequestPasswordReset(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.False(t, result.Delivered)
		assert.ErrorIs(t, result.DeliveryErr, usecase.ErrDeliveryError)
		f.notifier.AssertNumberOfCalls(t, "SendSimple", 2)

		code := strings.TrimPrefix(f.notifier.lastBody(t), otpPrefix)
		_, err = f.reset.VerifyOtp(ctx, "alice@x.com", code)
		assert.NoError(t, err)
	})
}

func TestVerifyOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a reset grant", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")

		grant := f.grant(t, "alice@x.com")
		assert.NotEmpty(t, grant.Token)
		assert.Equal(t, f.clock.Now().Add(10*time.Minute), grant.ExpiresAt)
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		code := f.requestCode(t, "alice@x.com")

		wrong := "100000"
		if code == wrong {
			wrong = "100001"
		}
		_, err := f.reset.VerifyOtp(ctx, "alice@x.com", wrong)
		assert.ErrorIs(t, err, usecase.ErrInvalidOtp)
	})

	t.Run("code belongs to another email", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		f.signup(t, "bob@x.com", "Secr3t!")
		code := f.requestCode(t, "alice@x.com")

		_, err := f.reset.VerifyOtp(ctx, "bob@x.com", code)
		assert.ErrorIs(t, err, usecase.ErrInvalidOtp)
	})

	t.Run("single use", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		code := f.requestCode(t, "alice@x.com")

		_, err := f.reset.VerifyOtp(ctx, "alice@x.com", code)
		require.NoError(t, err)

		_, err = f.reset.VerifyOtp(ctx, "alice@x.com", code)
		assert.ErrorIs(t, err, usecase.ErrInvalidOtp)
	})

	t.Run("failed grant write leaves the code usable", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		older := f.grant(t, "alice@x.com")
		code := f.requestCode(t, "alice@x.com")

		grants := &flakyGrants{MemoryStore: f.store, createFailures: 1}
		reset := f.resetWith(t, grants, f.notifier)

		_, err := reset.VerifyOtp(ctx, "alice@x.com", code)
		require.ErrorIs(t, err, usecase.ErrStoreUnavailable)

		// The earlier grant was not revoked by the failed attempt.
		olderGrant, err := f.issuer.VerifyResetGrant(older.Token)
		require.NoError(t, err)
		stored, err := f.store.GetGrantByJTI(ctx, olderGrant.ID)
		require.NoError(t, err)
		assert.False(t, stored.Used)

		grant, err := reset.VerifyOtp(ctx, "alice@x.com", code)
		require.NoError(t, err)
		assert.NoError(t, reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: grant.Token, NewPassword: "N3wer-pass",
		}))
	})

	t.Run("concurrent verification hands out one grant", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		code := f.requestCode(t, "alice@x.com")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted []*usecase.ResetGrant
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				grant, err := f.reset.VerifyOtp(ctx, "alice@x.com", code)
				if err != nil {
					assert.ErrorIs(t, err, usecase.ErrInvalidOtp)
					return
				}
				mu.Lock()
				granted = append(granted, grant)
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Len(t, granted, 1)
		assert.NoError(t, f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: granted[0].Token, NewPassword: "N3wer-pass",
		}))
	})

	t.Run("accepted at expiry, rejected after", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		first := f.requestCode(t, "alice@x.com")

		f.clock.Advance(time.Minute)
		_, err := f.reset.VerifyOtp(ctx, "alice@x.com", first)
		assert.NoError(t, err)

		second := f.requestCode(t, "alice@x.com")
		f.clock.Advance(time.Minute + time.Second)
		_, err = f.reset.VerifyOtp(ctx, "alice@x.com", second)
		assert.ErrorIs(t, err, usecase.ErrOtpExpired)
	})
}

func TestSetNewPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces password and revokes session", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		session, err := f.auth.Login(ctx, usecase.LoginParams{Email: "alice@x.com", Password: "Secr3t!"})
		require.NoError(t, err)

		grant := f.grant(t, "alice@x.com")
		require.NoError(t, f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email:       "alice@x.com",
			ResetToken:  grant.Token,
			NewPassword: "N3wer-pass",
		}))

		_, err = f.auth.Login(ctx, usecase.LoginParams{Email: "alice@x.com", Password: "Secr3t!"})
		assert.ErrorIs(t, err, usecase.ErrBadCredentials)

		_, err = f.auth.Login(ctx, usecase.LoginParams{Email: "alice@x.com", Password: "N3wer-pass"})
		assert.NoError(t, err)

		_, err = f.auth.Refresh(ctx, session.RefreshToken)
		assert.ErrorIs(t, err, usecase.ErrUnauthorized)
	})

	t.Run("grant is single use", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		grant := f.grant(t, "alice@x.com")

		params := usecase.SetNewPasswordParams{Email: "alice@x.com", ResetToken: grant.Token, NewPassword: "N3wer-pass"}
		require.NoError(t, f.reset.SetNewPassword(ctx, params))
		assert.ErrorIs(t, f.reset.SetNewPassword(ctx, params), usecase.ErrTokenAlreadyUsed)
	})

	t.Run("newer grant supersedes older", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		older := f.grant(t, "alice@x.com")
		newer := f.grant(t, "alice@x.com")

		err := f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: older.Token, NewPassword: "N3wer-pass",
		})
		assert.ErrorIs(t, err, usecase.ErrTokenAlreadyUsed)

		assert.NoError(t, f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: newer.Token, NewPassword: "N3wer-pass",
		}))
	})

	t.Run("password change clears leftover grants", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		older := f.grant(t, "alice@x.com")

		grants := &flakyGrants{MemoryStore: f.store, failInvalidate: true}
		reset := f.resetWith(t, grants, f.notifier)

		newer, err := reset.VerifyOtp(ctx, "alice@x.com", f.requestCode(t, "alice@x.com"))
		require.NoError(t, err)

		grants.failInvalidate = false
		require.NoError(t, reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: newer.Token, NewPassword: "N3wer-pass",
		}))

		err = f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: older.Token, NewPassword: "Another-pass",
		})
		assert.ErrorIs(t, err, usecase.ErrTokenAlreadyUsed)
	})

	t.Run("bound to the verified email", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		f.signup(t, "bob@x.com", "Secr3t!")
		grant := f.grant(t, "alice@x.com")

		err := f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "bob@x.com", ResetToken: grant.Token, NewPassword: "N3wer-pass",
		})
		assert.ErrorIs(t, err, usecase.ErrInvalidToken)
	})

	t.Run("expired grant", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		grant := f.grant(t, "alice@x.com")

		f.clock.Advance(10*time.Minute + time.Second)
		err := f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: grant.Token, NewPassword: "N3wer-pass",
		})
		assert.ErrorIs(t, err, usecase.ErrTokenExpired)
	})

	t.Run("forged grant", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		tokens, err := f.auth.Login(ctx, usecase.LoginParams{Email: "alice@x.com", Password: "Secr3t!"})
		require.NoError(t, err)

		for _, forged := range []string{"", "garbage", tokens.AccessToken} {
			err := f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
				Email: "alice@x.com", ResetToken: forged, NewPassword: "N3wer-pass",
			})
			assert.ErrorIs(t, err, usecase.ErrInvalidToken, "token %q", forged)
		}
	})

	t.Run("signed grant without a stored record", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		id := f.account(t, "alice@x.com").ID.Hex()

		unsaved, err := f.issuer.IssueResetGrant(id, "alice@x.com")
		require.NoError(t, err)

		err = f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: unsaved.Value, NewPassword: "N3wer-pass",
		})
		assert.ErrorIs(t, err, usecase.ErrTokenNotFound)
	})

	t.Run("weak password", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "alice@x.com", "Secr3t!")
		grant := f.grant(t, "alice@x.com")

		err := f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: grant.Token, NewPassword: "abc",
		})
		assert.ErrorIs(t, err, usecase.ErrWeakPassword)

		// The grant is still spendable after a rejected password.
		assert.NoError(t, f.reset.SetNewPassword(ctx, usecase.SetNewPasswordParams{
			Email: "alice@x.com", ResetToken: grant.Token, NewPassword: "N3wer-pass",
		}))
	})
}
