package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Sender delivers a rendered email to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

type EmailService struct {
	sender       Sender
	renderer     *emailRenderer
	appURL       string
	appName      string
	verifyExpiry time.Duration
	resetExpiry  time.Duration
}

func NewEmailService(sender Sender, appURL, appName string, verifyExpiry, resetExpiry time.Duration) (*EmailService, error) {
	renderer, err := newEmailRenderer()
	if err != nil {
		return nil, err
	}

	return &EmailService{
		sender:       sender,
		renderer:     renderer,
		appURL:       strings.TrimRight(appURL, "/"),
		appName:      appName,
		verifyExpiry: verifyExpiry,
		resetExpiry:  resetExpiry,
	}, nil
}

// SendVerificationEmail sends the one-time link that activates an account.
func (s *EmailService) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	return s.send(ctx, "verification", verifyEmailTemplate, to, emailData{
		AppName: s.appName,
		Name:    name,
		Link:    s.link("/auth/verify", token),
		Expiry:  humanizeDuration(s.verifyExpiry),
	})
}

// SendPasswordResetEmail sends the one-time link that allows choosing a new password.
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	return s.send(ctx, "password_reset", resetPasswordTemplate, to, emailData{
		AppName: s.appName,
		Name:    name,
		Link:    s.link("/auth/reset-password", token),
		Expiry:  humanizeDuration(s.resetExpiry),
	})
}

func (s *EmailService) send(ctx context.Context, kind, template, to string, data emailData) error {
	msg, err := s.renderer.render(template, data)
	if err != nil {
		return err
	}

	err = s.sender.Send(ctx, to, msg.Subject, msg.HTML, msg.Text)
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}

func (s *EmailService) link(path, token string) string {
	return s.appURL + path + "?" + url.Values{"token": {token}}.Encode()
}
