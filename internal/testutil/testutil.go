// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/waitlist/internal/database"
	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewFileTestDB creates a file backed SQLite database in a temp dir.
// Use it where several connections must see the same data.
func NewFileTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/waitlist.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestEntry creates an unconfirmed waitlist entry in the database.
func NewTestEntry(t *testing.T, repo *repository.Repository, email string) *models.WaitlistEntry {
	t.Helper()
	entry, err := repo.CreateEntry(context.Background(), &models.NewEntry{
		Email:       email,
		GDPRConsent: true,
	})
	require.NoError(t, err)
	return entry
}

// NewConfirmedTestEntry creates a confirmed waitlist entry in the database.
func NewConfirmedTestEntry(t *testing.T, repo *repository.Repository, email string) *models.WaitlistEntry {
	t.Helper()
	NewTestEntry(t, repo, email)
	entry, err := repo.ConfirmEntry(context.Background(), email)
	require.NoError(t, err)
	return entry
}

// SentMail is a notification captured by RecordingNotifier.
type SentMail struct {
	Kind  string
	To    string
	Name  string
	Token string
}

// RecordingNotifier records confirmation and welcome mails instead of sending them.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

// SendConfirmation records a confirmation mail.
func (n *RecordingNotifier) SendConfirmation(_ context.Context, to, name, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMail{Kind: "confirmation", To: to, Name: name, Token: token})
	return n.Err
}

// SendWelcome records a welcome mail.
func (n *RecordingNotifier) SendWelcome(_ context.Context, to, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMail{Kind: "welcome", To: to, Name: name})
	return n.Err
}

// Sent returns a copy of all recorded mails.
func (n *RecordingNotifier) Sent() []SentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentMail, len(n.sent))
	copy(out, n.sent)
	return out
}

// LastOf returns the most recent mail of the given kind.
func (n *RecordingNotifier) LastOf(kind string) (SentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return SentMail{}, false
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
