// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/waitlist/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.Signup(metrics.ResultCreated)
	m.Signup(metrics.ResultCreated)
	m.Signup(metrics.ResultDuplicate)
	m.Confirmation(metrics.ResultConfirmed)
	m.Email(metrics.EmailConfirmation, nil)
	m.Email(metrics.EmailConfirmation, errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.Signups().WithLabelValues(metrics.ResultCreated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Signups().WithLabelValues(metrics.ResultDuplicate)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Confirmations().WithLabelValues(metrics.ResultConfirmed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Emails().WithLabelValues(metrics.EmailConfirmation, metrics.StatusSent)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Emails().WithLabelValues(metrics.EmailConfirmation, metrics.StatusFailed)), 0)
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.Signup(metrics.ResultCreated)
		m.Confirmation(metrics.ResultConfirmed)
		m.Email(metrics.EmailWelcome, nil)
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.Signup(metrics.ResultCreated)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `waitlist_signups_total{result="created"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
