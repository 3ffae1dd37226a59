package handler

import (
	"errors"
	"net/http"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lms-api/shared/utilities"
)

const forgotPasswordMessage = "if the account exists, an otp has been sent to its email"

func (h *authHTTPHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.passwordResetUsecase.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case errors.Is(err, usecase.ErrAccountNotFound):
		// Same reply as for a real account so emails cannot be enumerated.
		h.metrics.RecordAuthEvent("otp_request", "unknown_account")
	case err != nil:
		h.metrics.RecordAuthEvent("otp_request", "failure")
		h.writeError(w, err, "failed to request password reset")
		return
	case !result.Delivered:
		h.metrics.RecordAuthEvent("otp_request", "delivery_failed")
	default:
		h.metrics.RecordAuthEvent("otp_request", "success")
	}

	utilities.WriteJSON(w, http.StatusOK, payload.MessageResponse{Message: forgotPasswordMessage})
}

func (h *authHTTPHandler) verifyOtp(w http.ResponseWriter, r *http.Request) {
	var req payload.VerifyOtpRequest
	if !h.decode(w, r, &req) {
		return
	}

	grant, err := h.passwordResetUsecase.VerifyOtp(r.Context(), req.Email, req.Otp)
	if err != nil {
		h.metrics.RecordAuthEvent("otp_verify", "failure")
		h.writeError(w, err, "failed to verify otp")
		return
	}

	h.metrics.RecordAuthEvent("otp_verify", "success")

	utilities.WriteJSON(w, http.StatusOK, payload.VerifyOtpResponse{
		ResetToken: grant.Token,
		ExpiresAt:  grant.ExpiresAt,
	})
}

func (h *authHTTPHandler) newPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.NewPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.passwordResetUsecase.SetNewPassword(r.Context(), usecase.SetNewPasswordParams{
		Email:       req.Email,
		ResetToken:  req.ResetToken,
		NewPassword: req.NewPassword,
	}); err != nil {
		h.metrics.RecordAuthEvent("password_reset", "failure")
		h.writeError(w, err, "failed to set new password")
		return
	}

	h.metrics.RecordAuthEvent("password_reset", "success")

	// The stored refresh token was revoked along with the old password.
	h.clearCookie(w, refreshTokenCookie, refreshCookiePath)

	utilities.WriteJSON(w, http.StatusOK, payload.MessageResponse{Message: "password updated"})
}
