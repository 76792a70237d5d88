package mailer

import (
	"embed"
	"errors"
)

const (
	FromName                = "Storefront"
	maxRetries              = 3
	VerifyEmailTemplate     = "verify_email.tmpl"
	ForgotPasswordTemplate  = "forgot_password.tmpl"
	PasswordChangedTemplate = "password_changed.tmpl"
)

var ErrDeliveryFailed = errors.New("mail relay rejected the message")

//go:embed "templates"
var FS embed.FS

// Client delivers a rendered template and returns the relay's message id.
type Client interface {
	Send(templateFile, username, email string, data any) (string, error)
}
