// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/waitlist/internal/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Provider delivers rendered messages.
type Provider interface {
	Send(ctx context.Context, msg *Message) error
}

// NewProvider creates the provider selected in the mail configuration.
func NewProvider(cfg *config.MailConfig, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.MailProviderLog, "":
		return NewLogProvider(logger), nil
	case config.MailProviderSMTP:
		return NewSMTPProvider(cfg.SMTP, cfg.From, cfg.FromName)
	case config.MailProviderSendGrid:
		return NewSendGridProvider(cfg.SendGrid, cfg.From, cfg.FromName, logger)
	default:
		return nil, fmt.Errorf("unknown mail provider: %s", cfg.Provider)
	}
}

// LogProvider logs emails instead of sending them. Used in development.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider creates a new log provider.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

// Send logs the email.
func (p *LogProvider) Send(_ context.Context, msg *Message) error {
	p.logger.Info("email not sent, log provider active",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
		"html_length", len(msg.HTML))
	return nil
}
