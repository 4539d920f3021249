// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package waitlist runs the double opt-in signup flow: an entry is created
// unconfirmed, a confirmation token is mailed, and a valid token moves the
// entry to confirmed exactly once.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/metrics"
	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/token"
)

// ErrInvalidToken is returned when a confirmation token fails verification,
// whether it is malformed, expired or was issued for another email.
var ErrInvalidToken = errors.New("invalid or expired confirmation token")

// DefaultNotifyTimeout bounds a single background email.
const DefaultNotifyTimeout = 30 * time.Second

// Store persists waitlist entries.
type Store interface {
	CreateEntry(ctx context.Context, in *models.NewEntry) (*models.WaitlistEntry, error)
	ConfirmEntry(ctx context.Context, email string) (*models.WaitlistEntry, error)
	GetEntryByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error)
	CountEntries(ctx context.Context) (int64, error)
}

// Notifier sends the waitlist emails.
type Notifier interface {
	SendConfirmation(ctx context.Context, to, name, token string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// Broadcaster publishes the current signup count.
type Broadcaster interface {
	BroadcastCount(count int64)
}

// SignupInput is the raw signup request.
type SignupInput struct {
	Email       string
	Name        string
	GDPRConsent bool
}

// Service orchestrates signups and confirmations.
type Service struct {
	store         Store
	tokens        *token.Service
	notifier      Notifier
	broadcaster   Broadcaster
	metrics       *metrics.Metrics
	logger        *slog.Logger
	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithBroadcaster publishes count changes to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifyTimeout bounds each background email. Non-positive values are ignored.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewService creates a new waitlist service.
func NewService(store Store, tokens *token.Service, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tokens:        tokens,
		notifier:      notifier,
		logger:        slog.Default(),
		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup validates the input, stores a new unconfirmed entry and mails the
// confirmation token in the background. A failed mail does not undo the signup.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.WaitlistEntry, error) {
	newEntry, err := models.ValidateSignup(in.Email, in.Name, in.GDPRConsent)
	if err != nil {
		s.metrics.Signup(metrics.ResultInvalid)
		return nil, err
	}

	tok, err := s.tokens.Issue(newEntry.Email)
	if err != nil {
		s.metrics.Signup(metrics.ResultError)
		return nil, fmt.Errorf("failed to issue confirmation token: %w", err)
	}

	entry, err := s.store.CreateEntry(ctx, newEntry)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			s.metrics.Signup(metrics.ResultDuplicate)
			return nil, err
		}
		s.metrics.Signup(metrics.ResultError)
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	s.metrics.Signup(metrics.ResultCreated)

	s.logger.Info("waitlist signup", "id", entry.ID)

	s.background(ctx, func(ctx context.Context) {
		s.sendConfirmation(ctx, entry, tok)
		s.broadcastCount(ctx)
	})

	return entry, nil
}

// Confirm verifies token for email and confirms the entry. Storage is only
// touched when the token is valid.
func (s *Service) Confirm(ctx context.Context, tok, email string) (*models.WaitlistEntry, error) {
	email = models.NormalizeEmail(email)

	if !s.tokens.Verify(tok, email) {
		s.metrics.Confirmation(metrics.ResultInvalidToken)
		return nil, ErrInvalidToken
	}

	entry, err := s.store.ConfirmEntry(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		s.metrics.Confirmation(metrics.ResultNotFound)
		return nil, err
	case errors.Is(err, models.ErrAlreadyConfirmed):
		s.metrics.Confirmation(metrics.ResultAlreadyConfirmed)
		return nil, err
	default:
		s.metrics.Confirmation(metrics.ResultError)
		return nil, fmt.Errorf("failed to confirm entry: %w", err)
	}
	s.metrics.Confirmation(metrics.ResultConfirmed)

	s.logger.Info("waitlist entry confirmed", "id", entry.ID)

	s.background(ctx, func(ctx context.Context) {
		err := s.notifier.SendWelcome(ctx, entry.Email, entry.DisplayName())
		s.metrics.Email(metrics.EmailWelcome, err)
		if err != nil {
			s.logger.Error("failed to send welcome email", "id", entry.ID, "error", err)
		}
	})

	return entry, nil
}

// Resend mails a fresh confirmation token to an unconfirmed entry.
// Earlier tokens stay valid until they expire.
func (s *Service) Resend(ctx context.Context, email string) error {
	email, err := models.ValidateEmail(email)
	if err != nil {
		return err
	}

	entry, err := s.store.GetEntryByEmail(ctx, email)
	if err != nil {
		return err
	}
	if entry.Confirmed {
		return models.ErrAlreadyConfirmed
	}

	tok, err := s.tokens.Issue(entry.Email)
	if err != nil {
		return fmt.Errorf("failed to issue confirmation token: %w", err)
	}

	s.background(ctx, func(ctx context.Context) {
		s.sendConfirmation(ctx, entry, tok)
	})
	return nil
}

// Count returns the number of signups.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountEntries(ctx)
}

// Wait blocks until all background notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// background runs fn detached from the request's cancellation but keeps its
// values, so the locale chosen for the request carries over to the email.
func (s *Service) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Service) sendConfirmation(ctx context.Context, entry *models.WaitlistEntry, tok string) {
	err := s.notifier.SendConfirmation(ctx, entry.Email, entry.DisplayName(), tok)
	s.metrics.Email(metrics.EmailConfirmation, err)
	if err != nil {
		s.logger.Error("failed to send confirmation email", "id", entry.ID, "error", err)
	}
}

func (s *Service) broadcastCount(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	count, err := s.store.CountEntries(ctx)
	if err != nil {
		s.logger.Error("failed to count entries", "error", err)
		return
	}
	s.broadcaster.BroadcastCount(count)
}
