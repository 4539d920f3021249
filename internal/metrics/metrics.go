// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes waitlist counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	ResultCreated          = "created"
	ResultDuplicate        = "duplicate"
	ResultInvalid          = "invalid"
	ResultConfirmed        = "confirmed"
	ResultInvalidToken     = "invalid_token"
	ResultNotFound         = "not_found"
	ResultAlreadyConfirmed = "already_confirmed"
	ResultError            = "error"

	EmailConfirmation = "confirmation"
	EmailWelcome      = "welcome"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Metrics holds the application counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	signups       *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	emails        *prometheus.CounterVec
}

// New creates the counters on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_signups_total",
			Help: "Signup attempts by result",
		}, []string{"result"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_confirmations_total",
			Help: "Confirmation attempts by result",
		}, []string{"result"}),
		emails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_emails_total",
			Help: "Notification emails by kind and delivery status",
		}, []string{"kind", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Signup counts a signup attempt.
func (m *Metrics) Signup(result string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(result).Inc()
}

// Confirmation counts a confirmation attempt.
func (m *Metrics) Confirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

// Email counts a notification email.
func (m *Metrics) Email(kind string, err error) {
	if m == nil {
		return
	}
	status := StatusSent
	if err != nil {
		status = StatusFailed
	}
	m.emails.WithLabelValues(kind, status).Inc()
}

// Signups returns the signup counter vector.
func (m *Metrics) Signups() *prometheus.CounterVec {
	return m.signups
}

// Confirmations returns the confirmation counter vector.
func (m *Metrics) Confirmations() *prometheus.CounterVec {
	return m.confirmations
}

// Emails returns the email counter vector.
func (m *Metrics) Emails() *prometheus.CounterVec {
	return m.emails
}
