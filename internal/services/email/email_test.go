// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type recordingProvider struct {
	mu   sync.Mutex
	msgs []*Message
	err  error
}

func (p *recordingProvider) Send(_ context.Context, msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, provider Provider) *Service {
	t.Helper()
	require.NoError(t, i18n.Init())
	return NewService(provider, Options{
		BaseURL:     "https://acme.test/",
		SiteName:    "Acme",
		TokenMaxAge: 24 * time.Hour,
	})
}

func TestConfirmURL(t *testing.T) {
	svc := newTestService(t, &recordingProvider{})

	got := svc.ConfirmURL("abc.def.123", "jane+test@example.com")

	assert.Equal(t, "https://acme.test/api/confirm?token=abc.def.123&email=jane%2Btest%40example.com", got)
}

func TestSendConfirmation(t *testing.T) {
	provider := &recordingProvider{}
	svc := newTestService(t, provider)
	ctx := i18n.WithLocale(context.Background(), language.English)

	err := svc.SendConfirmation(ctx, "jane@example.com", "Jane", "tok.salt.1")

	require.NoError(t, err)
	require.Len(t, provider.msgs, 1)
	msg := provider.msgs[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Jane", msg.ToName)
	assert.Equal(t, "Please confirm your email address", msg.Subject)
	assert.Contains(t, msg.Text, "https://acme.test/api/confirm?token=tok.salt.1&email=jane%40example.com")
	assert.Contains(t, msg.Text, "24 hours")
	assert.Contains(t, msg.HTML, "token=tok.salt.1&amp;email=jane%40example.com")
}

func TestSendConfirmation_German(t *testing.T) {
	provider := &recordingProvider{}
	svc := newTestService(t, provider)
	ctx := i18n.WithLocale(context.Background(), language.German)

	require.NoError(t, svc.SendConfirmation(ctx, "jane@example.com", "", "tok.salt.1"))

	require.Len(t, provider.msgs, 1)
	assert.Equal(t, "Bitte bestätige deine E-Mail-Adresse", provider.msgs[0].Subject)
	assert.Contains(t, provider.msgs[0].Text, "Hallo,")
}

func TestSendWelcome(t *testing.T) {
	provider := &recordingProvider{}
	svc := newTestService(t, provider)
	ctx := i18n.WithLocale(context.Background(), language.English)

	require.NoError(t, svc.SendWelcome(ctx, "jane@example.com", "Jane"))

	require.Len(t, provider.msgs, 1)
	assert.Equal(t, "Welcome to the Acme waitlist", provider.msgs[0].Subject)
	assert.Contains(t, provider.msgs[0].Text, "https://acme.test")
	assert.NotContains(t, provider.msgs[0].Text, "https://acme.test/\n")
}

func TestSend_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(t, &recordingProvider{err: boom})

	err := svc.SendWelcome(context.Background(), "jane@example.com", "")

	require.ErrorIs(t, err, boom)
}

func TestNewProvider(t *testing.T) {
	logger := discardLogger()

	p, err := NewProvider(&config.MailConfig{Provider: config.MailProviderLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogProvider{}, p)

	p, err = NewProvider(&config.MailConfig{
		Provider: config.MailProviderSMTP,
		From:     "hello@acme.test",
		SMTP:     config.SMTPConfig{Host: "mail.acme.test", Port: 587},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPProvider{}, p)

	p, err = NewProvider(&config.MailConfig{
		Provider: config.MailProviderSendGrid,
		From:     "hello@acme.test",
		SendGrid: config.SendGridConfig{APIKey: "key"},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SendGridProvider{}, p)

	_, err = NewProvider(&config.MailConfig{Provider: "pigeon"}, logger)
	require.Error(t, err)

	_, err = NewProvider(&config.MailConfig{Provider: config.MailProviderSMTP}, logger)
	require.Error(t, err)
}

func TestLogProvider(t *testing.T) {
	p := NewLogProvider(discardLogger())

	err := p.Send(context.Background(), &Message{To: "a@example.com", Subject: "hi"})

	assert.NoError(t, err)
}
