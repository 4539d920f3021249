// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email renders and sends the confirmation and welcome mails.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"codeberg.org/oliverandrich/waitlist/internal/templates"
	"github.com/a-h/templ"
)

// Options configure the rendered content.
type Options struct {
	BaseURL     string
	SiteName    string
	TokenMaxAge time.Duration
}

// Service renders waitlist mails and hands them to a Provider.
type Service struct {
	provider Provider
	opts     Options
}

// NewService creates a new email service.
func NewService(provider Provider, opts Options) *Service {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &Service{provider: provider, opts: opts}
}

// ConfirmURL builds the link that confirms email with token.
func (s *Service) ConfirmURL(token, email string) string {
	return fmt.Sprintf("%s/api/confirm?token=%s&email=%s",
		s.opts.BaseURL, url.QueryEscape(token), url.QueryEscape(email))
}

// SendConfirmation sends the double opt-in mail carrying token.
func (s *Service) SendConfirmation(ctx context.Context, to, name, token string) error {
	data := templates.ConfirmationEmail{
		Site:       s.opts.SiteName,
		Name:       name,
		ConfirmURL: s.ConfirmURL(token, to),
		ValidHours: int(s.opts.TokenMaxAge.Hours()),
	}

	html, err := renderHTML(ctx, templates.ConfirmationEmailHTML(data))
	if err != nil {
		return fmt.Errorf("rendering confirmation email: %w", err)
	}

	return s.provider.Send(ctx, &Message{
		To:      to,
		ToName:  name,
		Subject: i18n.T(ctx, "email_confirm_subject"),
		Text:    templates.ConfirmationEmailText(ctx, data),
		HTML:    html,
	})
}

// SendWelcome sends the mail that follows a successful confirmation.
func (s *Service) SendWelcome(ctx context.Context, to, name string) error {
	data := templates.WelcomeEmail{
		Site:    s.opts.SiteName,
		Name:    name,
		SiteURL: s.opts.BaseURL,
	}

	html, err := renderHTML(ctx, templates.WelcomeEmailHTML(data))
	if err != nil {
		return fmt.Errorf("rendering welcome email: %w", err)
	}

	return s.provider.Send(ctx, &Message{
		To:      to,
		ToName:  name,
		Subject: i18n.TData(ctx, "email_welcome_subject", map[string]any{"Site": s.opts.SiteName}),
		Text:    templates.WelcomeEmailText(ctx, data),
		HTML:    html,
	})
}

func renderHTML(ctx context.Context, c templ.Component) (string, error) {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := c.Render(ctx, buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
