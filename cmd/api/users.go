package main

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/users"
	"storefront/internal/mailer"
)

type UpdateUserDetailsPayload struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email  *string `json:"email" validate:"omitempty,email,max=255"`
	Mobile *string `json:"mobile" validate:"omitempty,mobile"`
}

// userDetailsHandler godoc
//
//	@Summary		Fetch the current user
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	users.User
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/user-details [get]
func (app *application) userDetailsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateUserDetailsHandler godoc
//
//	@Summary		Update profile details
//	@Description	Changing the email resets verification and mails a new code to the new address.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UpdateUserDetailsPayload	true	"Fields to change"
//	@Success		200		{object}	users.User
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error	"Email already registered"
//	@Security		ApiKeyAuth
//	@Router			/users/update-details [put]
func (app *application) updateUserDetailsHandler(w http.ResponseWriter, r *http.Request) {
	var payload UpdateUserDetailsPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	d := users.DetailsUpdate{Name: payload.Name, Email: payload.Email, Mobile: payload.Mobile}
	if d.Empty() {
		app.badRequestResponse(w, r, users.ErrNoFields)
		return
	}

	current := getUserFromContext(r)
	emailChanged := payload.Email != nil && !strings.EqualFold(*payload.Email, current.Email)

	updated, err := app.store.Users.UpdateDetails(r.Context(), current.ID, d)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrDuplicateEmail):
			app.conflictResponse(w, r, err)
		case errors.Is(err, users.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if emailChanged {
		app.sendVerification(r, updated)
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// sendVerification mails a fresh code after an email change. The update is
// already committed, so failures are logged and the user can request again.
func (app *application) sendVerification(r *http.Request, user *users.User) {
	code, err := app.issueOTP(r, user)
	if err != nil {
		app.logger.Errorw("could not issue verification code", "user", user.ID, "error", err)
		return
	}

	_, err = app.mailer.Send(mailer.VerifyEmailTemplate, user.Name, user.Email, otpMail{
		Name:      user.Name,
		OTP:       code,
		ExpiresIn: app.otpTTL().String(),
	})
	if err != nil {
		app.logger.Warnw("verification email not sent", "user", user.ID, "error", err)
	}
}

// uploadAvatarHandler godoc
//
//	@Summary		Replace the avatar
//	@Tags			users
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			avatar	formData	file	true	"Avatar image"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/avatar [put]
func (app *application) uploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	files, err := parseImageForm(w, r, "avatar", 1)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	urls, err := app.uploadImages(r.Context(), files, "avatars")
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetAvatar(r.Context(), user.ID, urls[0]); err != nil {
		app.destroyImagesAsync(urls)
		app.internalServerError(w, r, err)
		return
	}

	if user.Avatar != "" {
		app.destroyImagesAsync([]string{user.Avatar})
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"avatar": urls[0]}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteAvatarHandler godoc
//
//	@Summary		Remove the avatar
//	@Tags			users
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/avatar [delete]
func (app *application) deleteAvatarHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user.Avatar == "" {
		app.notFoundResponse(w, r, errors.New("no avatar set"))
		return
	}

	if err := app.store.Users.SetAvatar(r.Context(), user.ID, ""); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.destroyImagesAsync([]string{user.Avatar})

	w.WriteHeader(http.StatusNoContent)
}
