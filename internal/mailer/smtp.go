package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/mail.v2"
)

// Sender is the part of *gomail.Dialer the client needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPClient struct {
	fromEmail string
	domain    string
	sender    Sender
	backoff   time.Duration
}

func NewSMTPClient(host string, port int, username, password, fromEmail string) *SMTPClient {
	dialer := gomail.NewDialer(host, port, username, password)
	dialer.Timeout = 10 * time.Second
	return NewSMTPClientWithSender(dialer, fromEmail)
}

func NewSMTPClientWithSender(sender Sender, fromEmail string) *SMTPClient {
	domain := "storefront.local"
	if at := strings.LastIndexByte(fromEmail, '@'); at >= 0 && at < len(fromEmail)-1 {
		domain = fromEmail[at+1:]
	}
	return &SMTPClient{
		fromEmail: fromEmail,
		domain:    domain,
		sender:    sender,
		backoff:   time.Second,
	}
}

// Send renders templateFile and hands it to the relay, retrying up to
// maxRetries times.
func (m *SMTPClient) Send(templateFile, username, email string, data any) (string, error) {
	subject, plainBody, htmlBody, err := render(templateFile, data)
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.domain)

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	var retryErr error
	for i := 0; i < maxRetries; i++ {
		retryErr = m.sender.DialAndSend(msg)
		if retryErr == nil {
			return messageID, nil
		}
		// linear backoff
		time.Sleep(m.backoff * time.Duration(i+1))
	}

	return "", fmt.Errorf("%w: after %d attempts: %v", ErrDeliveryFailed, maxRetries, retryErr)
}

func render(templateFile string, data any) (subject, plainBody, htmlBody string, err error) {
	textTmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", "", fmt.Errorf("parse template %s: %w", templateFile, err)
	}

	var buf bytes.Buffer
	if err := textTmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", "", err
	}
	subject = buf.String()

	buf.Reset()
	if err := textTmpl.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return "", "", "", err
	}
	plainBody = buf.String()

	htmlTmpl, err := htmltemplate.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", "", fmt.Errorf("parse template %s: %w", templateFile, err)
	}
	buf.Reset()
	if err := htmlTmpl.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
		return "", "", "", err
	}
	htmlBody = buf.String()

	return subject, plainBody, htmlBody, nil
}
