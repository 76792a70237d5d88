package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain/users"
	"storefront/internal/mailer"
)

type RegisterUserPayload struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type VerifyOTPPayload struct {
	Email string `json:"email" validate:"required,email,max=255"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type LoginPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ForgotPasswordPayload struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordPayload struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *users.User `json:"user"`
}

type otpMail struct {
	Name      string
	OTP       string
	ExpiresIn string
}

// issueOTP stores a fresh code for user and returns the plain value.
func (app *application) issueOTP(r *http.Request, user *users.User) (string, error) {
	code, err := users.GenerateOTP()
	if err != nil {
		return "", err
	}
	if err := app.store.Users.SetOTP(r.Context(), user.ID, users.HashOTP(code), time.Now().Add(app.otpTTL())); err != nil {
		return "", err
	}
	return code, nil
}

func (app *application) otpTTL() time.Duration {
	if app.config.mail.otpExp > 0 {
		return app.config.mail.otpExp
	}
	return users.OTPTTL
}

// registerUserHandler godoc
//
//	@Summary		Register a user
//	@Description	Creates the account and mails a 6 digit verification code. If the mail cannot be sent the account is removed again.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterUserPayload	true	"User"
//	@Success		201		{object}	users.User
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error	"Email already registered"
//	@Failure		502		{object}	error	"Verification mail failed"
//	@Router			/users/register [post]
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	code, err := users.GenerateOTP()
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	otpHash := users.HashOTP(code)
	expiry := time.Now().Add(app.otpTTL())

	user := &users.User{
		Name:      payload.Name,
		Email:     payload.Email,
		Status:    users.StatusActive,
		Role:      users.RoleUser,
		OTP:       &otpHash,
		OTPExpiry: &expiry,
	}
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx := r.Context()

	if err := app.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			app.conflictResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	messageID, err := app.mailer.Send(mailer.VerifyEmailTemplate, user.Name, user.Email, otpMail{
		Name:      user.Name,
		OTP:       code,
		ExpiresIn: app.otpTTL().String(),
	})
	if err != nil {
		// rollback user creation if email fails (SAGA pattern)
		if err := app.store.Users.Delete(ctx, user.ID); err != nil {
			app.logger.Errorw("error deleting user after failed verification mail", "user", user.ID, "error", err)
		}

		app.upstreamErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("verification email sent", "user", user.ID, "message_id", messageID)

	if err := app.jsonResponse(w, http.StatusCreated, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

// verifyEmailHandler godoc
//
//	@Summary		Verify email
//	@Description	Confirms the address with the code sent at registration.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		VerifyOTPPayload	true	"Email and code"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error	"Invalid, expired or locked code"
//	@Failure		404		{object}	error
//	@Router			/users/verify-email [post]
func (app *application) verifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var payload VerifyOTPPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, ok := app.userByEmail(w, r, payload.Email)
	if !ok {
		return
	}

	if !app.checkOTP(w, r, user, payload.OTP) {
		return
	}

	if err := app.store.Users.MarkEmailVerified(r.Context(), user.ID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "email verified"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// loginHandler godoc
//
//	@Summary		Log in
//	@Description	Exchanges credentials for an access and a refresh token. Both are also set as HttpOnly cookies.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		LoginPayload	true	"Credentials"
//	@Success		200		{object}	TokenResponse
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error	"Account inactive, banned or unverified"
//	@Router			/users/login [post]
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	if user.Status != users.StatusActive {
		app.forbiddenResponse(w, r, fmt.Errorf("account is %s, contact support", user.Status))
		return
	}
	if !user.VerifyEmail {
		app.forbiddenResponse(w, r, errors.New("email is not verified"))
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(user.ID, string(user.Role))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	now := time.Now()
	if err := app.store.Users.RecordLogin(r.Context(), user.ID, refreshToken, now); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	user.LastLoginDate = &now

	app.setAuthCookies(w, accessToken, refreshToken)

	resp := TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken, User: user}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// logoutHandler godoc
//
//	@Summary		Log out
//	@Description	Revokes the stored refresh token.
//	@Tags			users
//	@Success		204
//	@Security		ApiKeyAuth
//	@Router			/users/logout [post]
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Users.DeleteRefreshToken(r.Context(), user.ID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// refreshTokenHandler godoc
//
//	@Summary		Refresh tokens
//	@Description	Validates the refresh token (body or refresh_token cookie) against the stored one and rotates both tokens.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RefreshPayload	true	"Refresh token"
//	@Success		200		{object}	TokenResponse
//	@Failure		401		{object}	error
//	@Router			/users/refresh-token [post]
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.RefreshToken == "" {
		payload.RefreshToken = cookieValue(r, refreshTokenCookie)
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid refresh token: %w", err))
		return
	}

	userID, err := auth.SubjectID(token)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if user.RefreshToken == nil || *user.RefreshToken != payload.RefreshToken {
		app.unauthorizedErrorResponse(w, r, users.ErrStaleRefreshToken)
		return
	}
	if user.Status != users.StatusActive {
		app.forbiddenResponse(w, r, fmt.Errorf("account is %s", user.Status))
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(user.ID, string(user.Role))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.RotateRefreshToken(r.Context(), user.ID, payload.RefreshToken, refreshToken); err != nil {
		if errors.Is(err, users.ErrStaleRefreshToken) {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.setAuthCookies(w, accessToken, refreshToken)

	resp := TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken, User: user}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// forgotPasswordHandler godoc
//
//	@Summary		Request a password reset code
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ForgotPasswordPayload	true	"Email"
//	@Success		200		{object}	map[string]string
//	@Failure		404		{object}	error
//	@Failure		502		{object}	error
//	@Router			/users/forgot-password [post]
func (app *application) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload ForgotPasswordPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, ok := app.userByEmail(w, r, payload.Email)
	if !ok {
		return
	}

	code, err := app.issueOTP(r, user)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if _, err := app.mailer.Send(mailer.ForgotPasswordTemplate, user.Name, user.Email, otpMail{
		Name:      user.Name,
		OTP:       code,
		ExpiresIn: app.otpTTL().String(),
	}); err != nil {
		app.upstreamErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "check your email for the reset code"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// verifyForgotPasswordOTPHandler godoc
//
//	@Summary		Verify a password reset code
//	@Description	A valid code opens a short window in which reset-password is accepted.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		VerifyOTPPayload	true	"Email and code"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error	"Invalid, expired or locked code"
//	@Failure		404		{object}	error
//	@Router			/users/verify-forgot-password-otp [post]
func (app *application) verifyForgotPasswordOTPHandler(w http.ResponseWriter, r *http.Request) {
	var payload VerifyOTPPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, ok := app.userByEmail(w, r, payload.Email)
	if !ok {
		return
	}

	if !app.checkOTP(w, r, user, payload.OTP) {
		return
	}

	if err := app.store.Users.AllowPasswordReset(r.Context(), user.ID, time.Now().Add(users.ResetWindowTTL)); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "code verified"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// resetPasswordHandler godoc
//
//	@Summary		Reset the password
//	@Description	Requires a reset code verified within the last 10 minutes. Logs out every session.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ResetPasswordPayload	true	"New password"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Router			/users/reset-password [post]
func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload ResetPasswordPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, ok := app.userByEmail(w, r, payload.Email)
	if !ok {
		return
	}

	if !users.CanResetPassword(user, time.Now()) {
		app.badRequestResponse(w, r, users.ErrResetNotAllowed)
		return
	}

	if err := user.Password.Set(payload.NewPassword); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.UpdatePassword(r.Context(), user.ID, user.Password.Hash()); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// the notice is informational, a failed send does not undo the reset
	if _, err := app.mailer.Send(mailer.PasswordChangedTemplate, user.Name, user.Email, otpMail{Name: user.Name}); err != nil {
		app.logger.Warnw("password changed notice not sent", "user", user.ID, "error", err)
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// userByEmail writes the error response itself and reports whether to go on.
func (app *application) userByEmail(w http.ResponseWriter, r *http.Request, email string) (*users.User, bool) {
	user, err := app.store.Users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, errors.New("no account with that email"))
			return nil, false
		}
		app.internalServerError(w, r, err)
		return nil, false
	}
	return user, true
}

// checkOTP validates code for user and counts wrong guesses. After
// users.MaxOTPAttempts misses the pending code is gone and a new one has to
// be requested.
func (app *application) checkOTP(w http.ResponseWriter, r *http.Request, user *users.User, code string) bool {
	err := users.CheckOTP(user, code, time.Now())
	if err == nil {
		return true
	}
	if !errors.Is(err, users.ErrInvalidOTP) || user.OTP == nil {
		app.badRequestResponse(w, r, err)
		return false
	}

	locked, lerr := app.store.Users.RecordFailedOTP(r.Context(), user.ID, users.MaxOTPAttempts)
	if lerr != nil {
		app.internalServerError(w, r, lerr)
		return false
	}
	if locked {
		app.logger.Warnw("otp locked after repeated failures", "user_id", user.ID)
		err = users.ErrOTPLocked
	}
	app.badRequestResponse(w, r, err)
	return false
}
