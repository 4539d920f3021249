// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package waitlist_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/metrics"
	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/services/waitlist"
	"codeberg.org/oliverandrich/waitlist/internal/testutil"
	"codeberg.org/oliverandrich/waitlist/internal/token"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// memoryStore is a Store backed by a map.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.WaitlistEntry
	err     error
	confirm int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*models.WaitlistEntry{}}
}

func (s *memoryStore) CreateEntry(_ context.Context, in *models.NewEntry) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if _, ok := s.entries[in.Email]; ok {
		return nil, models.ErrDuplicateEmail
	}
	e := &models.WaitlistEntry{ID: in.Email, Email: in.Email, Name: in.Name, GDPRConsent: in.GDPRConsent}
	s.entries[in.Email] = e
	return e, nil
}

func (s *memoryStore) ConfirmEntry(_ context.Context, email string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm++
	e, ok := s.entries[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	if e.Confirmed {
		return nil, models.ErrAlreadyConfirmed
	}
	e.Confirmed = true
	now := time.Now()
	e.ConfirmedAt = &now
	return e, nil
}

func (s *memoryStore) GetEntryByEmail(_ context.Context, email string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) CountEntries(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *memoryStore) confirmCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirm
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	counts []int64
}

func (b *recordingBroadcaster) BroadcastCount(count int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts = append(b.counts, count)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc         *waitlist.Service
	store       *memoryStore
	notifier    *testutil.RecordingNotifier
	broadcaster *recordingBroadcaster
	metrics     *metrics.Metrics
	tokens      *token.Service
}

func newFixture(tokenOpts ...token.Option) *fixture {
	f := &fixture{
		store:       newMemoryStore(),
		notifier:    &testutil.RecordingNotifier{},
		broadcaster: &recordingBroadcaster{},
		metrics:     metrics.New(),
		tokens:      token.NewService(tokenOpts...),
	}
	f.svc = waitlist.NewService(f.store, f.tokens, f.notifier,
		waitlist.WithBroadcaster(f.broadcaster),
		waitlist.WithMetrics(f.metrics),
		waitlist.WithLogger(quietLogger()),
		waitlist.WithNotifyTimeout(time.Second),
	)
	return f
}

func (f *fixture) signupCount(result string) float64 {
	return promtestutil.ToFloat64(f.metrics.Signups().WithLabelValues(result))
}

func (f *fixture) confirmationCount(result string) float64 {
	return promtestutil.ToFloat64(f.metrics.Confirmations().WithLabelValues(result))
}

func TestSignup(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()

	entry, err := f.svc.Signup(ctx, waitlist.SignupInput{
		Email:       "  Jane@Example.com ",
		Name:        " Jane ",
		GDPRConsent: true,
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, "jane@example.com", entry.Email)
	assert.Equal(t, "Jane", entry.DisplayName())
	assert.Equal(t, models.StateUnconfirmed, entry.State())

	mail, ok := f.notifier.LastOf("confirmation")
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", mail.To)
	assert.Equal(t, "Jane", mail.Name)
	assert.True(t, f.tokens.Verify(mail.Token, "jane@example.com"))

	assert.Equal(t, []int64{1}, f.broadcaster.counts)
	assert.InDelta(t, 1, f.signupCount(metrics.ResultCreated), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(
		f.metrics.Emails().WithLabelValues(metrics.EmailConfirmation, metrics.StatusSent)), 0)
}

func TestSignup_Duplicate(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()
	in := waitlist.SignupInput{Email: "dup@example.com", GDPRConsent: true}

	_, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.Signup(ctx, in)
	f.svc.Wait()

	require.ErrorIs(t, err, models.ErrDuplicateEmail)
	assert.Len(t, f.notifier.Sent(), 1)
	assert.InDelta(t, 1, f.signupCount(metrics.ResultDuplicate), 0)
}

func TestSignup_Invalid(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()

	_, err := f.svc.Signup(context.Background(), waitlist.SignupInput{Email: "nope", GDPRConsent: true})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.notifier.Sent())
	assert.InDelta(t, 1, f.signupCount(metrics.ResultInvalid), 0)
}

func TestSignup_ConsentRequired(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()

	_, err := f.svc.Signup(context.Background(), waitlist.SignupInput{Email: "a@b.com"})

	require.ErrorIs(t, err, models.ErrConsentRequired)
	count, countErr := f.svc.Count(context.Background())
	require.NoError(t, countErr)
	assert.Equal(t, int64(0), count)
}

func TestSignup_EntropyFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(token.WithRandom(failingReader{}))

	_, err := f.svc.Signup(context.Background(), waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})

	require.Error(t, err)
	count, _ := f.svc.Count(context.Background())
	assert.Equal(t, int64(0), count, "no entry without a token")
	assert.InDelta(t, 1, f.signupCount(metrics.ResultError), 0)
}

func TestSignup_StoreError(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	f.store.err = errors.New("disk full")

	_, err := f.svc.Signup(context.Background(), waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSignup_NotifierFailureKeepsEntry(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	f.notifier.Err = errors.New("smtp down")

	entry, err := f.svc.Signup(context.Background(), waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()

	stored, err := f.store.GetEntryByEmail(context.Background(), entry.Email)
	require.NoError(t, err)
	assert.False(t, stored.Confirmed)
	assert.InDelta(t, 1, promtestutil.ToFloat64(
		f.metrics.Emails().WithLabelValues(metrics.EmailConfirmation, metrics.StatusFailed)), 0)
}

func TestSignup_CanceledRequestStillSendsMail(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	cancel()
	f.svc.Wait()

	_, ok := f.notifier.LastOf("confirmation")
	assert.True(t, ok)
}

func TestConfirm(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", Name: "Ann", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()
	mail, _ := f.notifier.LastOf("confirmation")

	entry, err := f.svc.Confirm(ctx, mail.Token, "A@B.com")
	require.NoError(t, err)
	f.svc.Wait()

	assert.True(t, entry.Confirmed)
	assert.Equal(t, models.StateConfirmed, entry.State())
	welcome, ok := f.notifier.LastOf("welcome")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", welcome.To)
	assert.Equal(t, "Ann", welcome.Name)
	assert.InDelta(t, 1, f.confirmationCount(metrics.ResultConfirmed), 0)

	_, err = f.svc.Confirm(ctx, mail.Token, "a@b.com")
	require.ErrorIs(t, err, models.ErrAlreadyConfirmed)
	assert.InDelta(t, 1, f.confirmationCount(metrics.ResultAlreadyConfirmed), 0)
}

func TestConfirm_InvalidTokenDoesNotTouchStore(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()
	mail, _ := f.notifier.LastOf("confirmation")

	for _, tok := range []string{"", "garbage", mail.Token + "0"} {
		_, err := f.svc.Confirm(ctx, tok, "a@b.com")
		require.ErrorIs(t, err, waitlist.ErrInvalidToken)
	}
	_, err = f.svc.Confirm(ctx, mail.Token, "other@b.com")
	require.ErrorIs(t, err, waitlist.ErrInvalidToken)

	assert.Equal(t, 0, f.store.confirmCalls())
	assert.InDelta(t, 4, f.confirmationCount(metrics.ResultInvalidToken), 0)
}

func TestConfirm_Expired(t *testing.T) {
	defer goleak.VerifyNone(t)
	now := time.UnixMilli(1700000000000)
	clock := func() time.Time { return now }
	f := newFixture(token.WithClock(clock), token.WithMaxAge(time.Hour))
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()
	mail, _ := f.notifier.LastOf("confirmation")

	now = now.Add(time.Hour + time.Millisecond)
	_, err = f.svc.Confirm(ctx, mail.Token, "a@b.com")

	require.ErrorIs(t, err, waitlist.ErrInvalidToken)
}

func TestConfirm_NotFound(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	tok, err := f.tokens.Issue("ghost@b.com")
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), tok, "ghost@b.com")

	require.ErrorIs(t, err, models.ErrNotFound)
	assert.InDelta(t, 1, f.confirmationCount(metrics.ResultNotFound), 0)
}

func TestResend(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()
	first, _ := f.notifier.LastOf("confirmation")

	require.NoError(t, f.svc.Resend(ctx, " A@b.com"))
	f.svc.Wait()

	second, ok := f.notifier.LastOf("confirmation")
	require.True(t, ok)
	assert.NotEqual(t, first.Token, second.Token)
	assert.True(t, f.tokens.Verify(first.Token, "a@b.com"))
	assert.True(t, f.tokens.Verify(second.Token, "a@b.com"))
}

func TestResend_Errors(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	ctx := context.Background()

	var verr *models.ValidationError
	require.ErrorAs(t, f.svc.Resend(ctx, "nope"), &verr)
	require.ErrorIs(t, f.svc.Resend(ctx, "ghost@b.com"), models.ErrNotFound)

	_, err := f.svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	f.svc.Wait()
	mail, _ := f.notifier.LastOf("confirmation")
	_, err = f.svc.Confirm(ctx, mail.Token, "a@b.com")
	require.NoError(t, err)
	f.svc.Wait()

	require.ErrorIs(t, f.svc.Resend(ctx, "a@b.com"), models.ErrAlreadyConfirmed)
}

func TestNewService_WithoutBroadcaster(t *testing.T) {
	defer goleak.VerifyNone(t)
	svc := waitlist.NewService(newMemoryStore(), token.NewService(), &testutil.RecordingNotifier{},
		waitlist.WithLogger(quietLogger()))

	_, err := svc.Signup(context.Background(), waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	svc.Wait()
}

// End to end on SQLite: signup, verify, confirm, confirm again.
func TestSignupConfirmFlow_SQLite(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	notifier := &testutil.RecordingNotifier{}
	tokens := token.NewService()
	svc := waitlist.NewService(repo, tokens, notifier, waitlist.WithLogger(quietLogger()))
	ctx := context.Background()

	entry, err := svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	svc.Wait()
	assert.False(t, entry.Confirmed)

	mail, ok := notifier.LastOf("confirmation")
	require.True(t, ok)
	require.True(t, tokens.Verify(mail.Token, "a@b.com"))

	confirmed, err := svc.Confirm(ctx, mail.Token, "a@b.com")
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)
	assert.Equal(t, entry.ID, confirmed.ID)

	_, err = svc.Confirm(ctx, mail.Token, "a@b.com")
	require.ErrorIs(t, err, models.ErrAlreadyConfirmed)
	svc.Wait()

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentConfirm_SQLite(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	notifier := &testutil.RecordingNotifier{}
	tokens := token.NewService()
	svc := waitlist.NewService(repo, tokens, notifier, waitlist.WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := svc.Signup(ctx, waitlist.SignupInput{Email: "a@b.com", GDPRConsent: true})
	require.NoError(t, err)
	svc.Wait()
	mail, _ := notifier.LastOf("confirmation")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Confirm(ctx, mail.Token, "a@b.com")
		}()
	}
	wg.Wait()
	svc.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyConfirmed)
	}
	assert.Equal(t, 1, successes)

	stored, err := repo.GetEntryByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)
	assert.NotNil(t, stored.ConfirmedAt)
}
