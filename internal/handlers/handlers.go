// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers for the waitlist API and pages.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/services/waitlist"
	"codeberg.org/oliverandrich/waitlist/internal/sse"
	"codeberg.org/oliverandrich/waitlist/internal/templates"
	"github.com/labstack/echo/v4"
)

// Waitlist is the signup flow used by the handlers.
type Waitlist interface {
	Signup(ctx context.Context, in waitlist.SignupInput) (*models.WaitlistEntry, error)
	Confirm(ctx context.Context, token, email string) (*models.WaitlistEntry, error)
	Resend(ctx context.Context, email string) error
	Count(ctx context.Context) (int64, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	waitlist  Waitlist
	hub       *sse.Hub
	siteName  string
	heartbeat time.Duration
}

// Option customises Handlers.
type Option func(*Handlers)

// WithHeartbeat sets the interval between SSE keep-alive comments.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handlers) { h.heartbeat = d }
}

// New creates a new Handlers instance.
func New(wl Waitlist, hub *sse.Hub, siteName string, opts ...Option) *Handlers {
	h := &Handlers{
		waitlist:  wl,
		hub:       hub,
		siteName:  siteName,
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home renders the landing page.
func (h *Handlers) Home(c echo.Context) error {
	count, err := h.waitlist.Count(c.Request().Context())
	if err != nil {
		slog.Error("failed to count signups", "error", err)
		count = 0
	}
	return Render(c, http.StatusOK, templates.Home(h.siteName, count))
}

// ThankYou renders the page shown after signup and confirmation.
func (h *Handlers) ThankYou(c echo.Context) error {
	status := templates.ParseThankYouStatus(c.QueryParam("confirmed"), c.QueryParam("error"))
	return Render(c, http.StatusOK, templates.ThankYou(h.siteName, status))
}
