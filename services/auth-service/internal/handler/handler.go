// Package handler exposes the auth usecases over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lms-api/shared/interceptor"
	applog "github.com/vasapolrittideah/lms-api/shared/logger"
	"github.com/vasapolrittideah/lms-api/shared/metrics"
	"github.com/vasapolrittideah/lms-api/shared/utilities"
	"github.com/vasapolrittideah/lms-api/shared/validator"
)

const (
	accessTokenCookie  = interceptor.AccessTokenCookie
	refreshTokenCookie = "refresh_token"
)

type authHTTPHandler struct {
	logger               *zerolog.Logger
	authUsecase          usecase.AuthUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	validator            *validator.Validator
	metrics              *metrics.Metrics
	authServiceCfg       *config.AuthServiceConfig
	now                  func() time.Time
}

// NewRouter builds the auth-service HTTP router.
func NewRouter(
	logger *zerolog.Logger,
	authUsecase usecase.AuthUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	validator *validator.Validator,
	metrics *metrics.Metrics,
	authServiceCfg *config.AuthServiceConfig,
) http.Handler {
	h := &authHTTPHandler{
		logger:               logger,
		authUsecase:          authUsecase,
		passwordResetUsecase: passwordResetUsecase,
		validator:            validator,
		metrics:              metrics,
		authServiceCfg:       authServiceCfg,
		now:                  time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(applog.RequestLogger(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/lmsusers", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refreshToken)
		r.Post("/logout", h.logout)

		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/verify-otp", h.verifyOtp)
		r.Put("/new-password", h.newPassword)

		r.Group(func(r chi.Router) {
			r.Use(interceptor.NewJWTInterceptor(authUsecase, logger))
			r.Get("/me", h.me)
		})
	})

	return r
}

func (h *authHTTPHandler) health(w http.ResponseWriter, _ *http.Request) {
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// normalizer is implemented by payloads that accept legacy field names.
type normalizer interface {
	Normalize()
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *authHTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := utilities.DecodeJSON(r, w, v); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}

	if n, ok := v.(normalizer); ok {
		n.Normalize()
	}

	if err := h.validator.Struct(v); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			utilities.WriteJSON(w, http.StatusBadRequest, utilities.ErrorResponse{
				Error:  "validation failed",
				Fields: verr.Fields,
			})
			return false
		}

		h.logger.Error().Err(err).Msg("failed to validate request")
		utilities.WriteError(w, http.StatusInternalServerError, "something went wrong")
		return false
	}

	return true
}

// writeError maps usecase errors to HTTP replies. Unknown errors are logged and
// reported as a bare 500.
func (h *authHTTPHandler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, usecase.ErrDuplicateAccount):
		utilities.WriteError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, usecase.ErrAccountNotFound), errors.Is(err, usecase.ErrBadCredentials):
		utilities.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, usecase.ErrUnauthorized):
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, usecase.ErrWeakPassword):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrInvalidOtp):
		utilities.WriteError(w, http.StatusBadRequest, "invalid otp")
	case errors.Is(err, usecase.ErrOtpExpired):
		utilities.WriteError(w, http.StatusBadRequest, "otp has expired")
	case errors.Is(err, usecase.ErrTokenNotFound):
		utilities.WriteError(w, http.StatusNotFound, "password reset token not found")
	case errors.Is(err, usecase.ErrTokenAlreadyUsed):
		utilities.WriteError(w, http.StatusConflict, "password reset token has already been used")
	case errors.Is(err, usecase.ErrTokenExpired):
		utilities.WriteError(w, http.StatusUnauthorized, "password reset token has expired")
	case errors.Is(err, usecase.ErrInvalidToken):
		utilities.WriteError(w, http.StatusUnauthorized, "invalid password reset token")
	case errors.Is(err, usecase.ErrStoreUnavailable):
		h.logger.Error().Err(err).Msg(op)
		utilities.WriteError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.logger.Error().Err(err).Msg(op)
		utilities.WriteError(w, http.StatusInternalServerError, "something went wrong")
	}
}

func (h *authHTTPHandler) setCookie(w http.ResponseWriter, name, value, path string, lifetime time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.authServiceCfg.Cookie.Domain,
		MaxAge:   int(lifetime / time.Second),
		Expires:  h.now().Add(lifetime),
		HttpOnly: true,
		Secure:   h.authServiceCfg.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHTTPHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.authServiceCfg.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.authServiceCfg.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
