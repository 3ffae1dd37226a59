package payload

import "time"

// EmailAddress accepts the address under "email" or under the legacy "emailid"
// key older LMS clients send.
type EmailAddress struct {
	Email   string `json:"email"   validate:"required,email"`
	EmailID string `json:"emailid" validate:"-"`
}

// Normalize moves a legacy emailid into Email.
func (e *EmailAddress) Normalize() {
	if e.Email == "" {
		e.Email = e.EmailID
	}
}

type SignupRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Mobile   string `json:"mobile"   validate:"required,max=32"`
	EmailAddress
	Password string `json:"password" validate:"required,max=72"`
}

type SignupResponse struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
}

type LoginRequest struct {
	EmailAddress
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// RefreshTokenRequest is optional; the refresh_token cookie takes precedence.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
}

type AccountResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Email  string `json:"email"`
}

type ForgotPasswordRequest struct {
	EmailAddress
}

type VerifyOtpRequest struct {
	EmailAddress
	Otp string `json:"otp" validate:"required,len=6,numeric"`
}

type VerifyOtpResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type NewPasswordRequest struct {
	EmailAddress
	ResetToken        string `json:"reset_token"  validate:"required"`
	NewPassword       string `json:"new_password" validate:"required,max=72"`
	LegacyNewPassword string `json:"newPassword"  validate:"-"`
}

// Normalize also accepts the legacy newPassword key.
func (r *NewPasswordRequest) Normalize() {
	r.EmailAddress.Normalize()
	if r.NewPassword == "" {
		r.NewPassword = r.LegacyNewPassword
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}
