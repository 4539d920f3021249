// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"github.com/wneessen/go-mail"
)

// SMTPProvider sends emails through an SMTP server.
type SMTPProvider struct {
	cfg      config.SMTPConfig
	from     string
	fromName string
}

// NewSMTPProvider creates a new SMTP provider.
func NewSMTPProvider(cfg config.SMTPConfig, from, fromName string) (*SMTPProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if from == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPProvider{cfg: cfg, from: from, fromName: fromName}, nil
}

// Send delivers the message with a fresh connection.
func (p *SMTPProvider) Send(ctx context.Context, msg *Message) error {
	m, err := p.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(p.cfg.Host, p.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (p *SMTPProvider) buildMessage(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if p.fromName != "" {
		if err := m.FromFormat(p.fromName, p.from); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := m.From(p.from); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}

	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("setting to address: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (p *SMTPProvider) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(p.cfg.Port),
	}

	switch p.cfg.TLS {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "tls":
		opts = append(opts, mail.WithSSL(), mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Port 465 only speaks implicit TLS
		if p.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	}

	if p.cfg.Username != "" && p.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(p.cfg.Username),
			mail.WithPassword(p.cfg.Password),
		)
	}

	return opts
}
