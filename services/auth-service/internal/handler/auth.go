package handler

import (
	"errors"
	"net/http"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lms-api/shared/interceptor"
	"github.com/vasapolrittideah/lms-api/shared/utilities"
)

// refreshCookiePath limits the refresh token cookie to the auth routes.
const refreshCookiePath = "/lmsusers"

func (h *authHTTPHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req payload.SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokens, err := h.authUsecase.Signup(r.Context(), usecase.SignupParams{
		Name:     req.Name,
		Mobile:   req.Mobile,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.metrics.RecordAuthEvent("signup", "failure")
		h.writeError(w, err, "failed to sign up")
		return
	}

	h.metrics.RecordAuthEvent("signup", "success")
	h.setCookie(w, accessTokenCookie, tokens.AccessToken, "/", h.authServiceCfg.Token.AccessTokenExpiresIn)

	utilities.WriteJSON(w, http.StatusCreated, payload.SignupResponse{
		AccessToken:          tokens.AccessToken,
		AccessTokenExpiresAt: tokens.AccessTokenExpiresAt,
	})
}

func (h *authHTTPHandler) login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokens, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.metrics.RecordAuthEvent("login", "failure")
		h.writeError(w, err, "failed to log in")
		return
	}

	h.metrics.RecordAuthEvent("login", "success")
	h.setCookie(w, accessTokenCookie, tokens.AccessToken, "/", h.authServiceCfg.Token.AccessTokenExpiresIn)
	h.setCookie(w, refreshTokenCookie, tokens.RefreshToken, refreshCookiePath, h.authServiceCfg.Token.RefreshTokenExpiresIn)

	utilities.WriteJSON(w, http.StatusOK, payload.LoginResponse{
		AccessToken:           tokens.AccessToken,
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshToken:          tokens.RefreshToken,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
	})
}

func (h *authHTTPHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.readRefreshToken(w, r)
	if !ok {
		return
	}

	tokens, err := h.authUsecase.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.metrics.RecordAuthEvent("refresh", "failure")
		h.writeError(w, err, "failed to refresh token")
		return
	}

	h.metrics.RecordAuthEvent("refresh", "success")
	h.setCookie(w, accessTokenCookie, tokens.AccessToken, "/", h.authServiceCfg.Token.AccessTokenExpiresIn)

	utilities.WriteJSON(w, http.StatusOK, payload.RefreshTokenResponse{
		AccessToken:          tokens.AccessToken,
		AccessTokenExpiresAt: tokens.AccessTokenExpiresAt,
	})
}

// logout always clears the cookies. An unknown or superseded refresh token is
// not an error: the session is already gone.
func (h *authHTTPHandler) logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.readRefreshToken(w, r)
	if !ok {
		return
	}

	if err := h.authUsecase.Logout(r.Context(), refreshToken); err != nil && !errors.Is(err, usecase.ErrUnauthorized) {
		h.writeError(w, err, "failed to log out")
		return
	}

	h.clearCookie(w, accessTokenCookie, "/")
	h.clearCookie(w, refreshTokenCookie, refreshCookiePath)

	utilities.WriteJSON(w, http.StatusOK, payload.MessageResponse{Message: "logged out"})
}

func (h *authHTTPHandler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.authUsecase.GetAccount(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) {
			utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.writeError(w, err, "failed to get account")
		return
	}

	utilities.WriteJSON(w, http.StatusOK, payload.AccountResponse{
		ID:     account.ID.Hex(),
		Name:   account.Name,
		Mobile: account.Mobile,
		Email:  account.Email,
	})
}

// readRefreshToken takes the refresh token from its cookie, or from the JSON body
// for clients that cannot hold cookies.
func (h *authHTTPHandler) readRefreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	var req payload.RefreshTokenRequest
	if r.ContentLength != 0 {
		if err := utilities.DecodeJSON(r, w, &req); err != nil {
			utilities.WriteError(w, http.StatusBadRequest, err.Error())
			return "", false
		}
	}

	if req.RefreshToken == "" {
		utilities.WriteError(w, http.StatusUnauthorized, "missing refresh token")
		return "", false
	}

	return req.RefreshToken, true
}
