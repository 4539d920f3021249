// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/services/waitlist"
	"codeberg.org/oliverandrich/waitlist/internal/templates"
	"github.com/labstack/echo/v4"
)

// Cache-Control values for the public count endpoint.
const (
	countCacheControl   = "public, s-maxage=60, stale-while-revalidate=300"
	noCacheCacheControl = "no-cache, no-store, must-revalidate"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

// SubscribeRequest is the body of POST /api/subscribe.
type SubscribeRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	GDPRConsent bool   `json:"gdprConsent"`
}

// ResendRequest is the body of POST /api/resend.
type ResendRequest struct {
	Email string `json:"email"`
}

// CountData is the payload of GET /api/count.
type CountData struct {
	Count int64 `json:"count"`
}

func respond(c echo.Context, status int, success bool, messageID string) error {
	return c.JSON(status, Response{Success: success, Message: i18n.T(c.Request().Context(), messageID)})
}

func respondInvalid(c echo.Context, messageID string, err error) error {
	resp := Response{
		Message: i18n.T(c.Request().Context(), messageID),
		Error:   err.Error(),
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	return c.JSON(http.StatusBadRequest, resp)
}

// Subscribe adds an email address to the waitlist.
func (h *Handlers) Subscribe(c echo.Context) error {
	var req SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, false, "api_bad_request")
	}

	entry, err := h.waitlist.Signup(c.Request().Context(), waitlist.SignupInput{
		Email:       req.Email,
		Name:        req.Name,
		GDPRConsent: req.GDPRConsent,
	})

	var verr *models.ValidationError
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, Response{
			Success: true,
			Message: i18n.T(c.Request().Context(), "api_subscribe_success"),
			Data:    entry,
		})
	case errors.As(err, &verr):
		return respondInvalid(c, "api_subscribe_invalid", err)
	case errors.Is(err, models.ErrConsentRequired):
		return respond(c, http.StatusBadRequest, false, "api_subscribe_consent_required")
	case errors.Is(err, models.ErrDuplicateEmail):
		return respond(c, http.StatusConflict, false, "api_subscribe_duplicate")
	default:
		slog.Error("signup failed", "error", err)
		return respond(c, http.StatusInternalServerError, false, "api_server_error")
	}
}

// Confirm checks the emailed link and redirects to the thank-you page.
func (h *Handlers) Confirm(c echo.Context) error {
	tok := strings.TrimSpace(c.QueryParam("token"))
	email := c.QueryParam("email")

	if _, err := models.ValidateEmail(email); tok == "" || err != nil {
		return redirectThankYou(c, templates.ThankYouInvalidLink)
	}

	_, err := h.waitlist.Confirm(c.Request().Context(), tok, email)
	switch {
	case err == nil:
		return redirectThankYou(c, templates.ThankYouConfirmed)
	case errors.Is(err, waitlist.ErrInvalidToken):
		return redirectThankYou(c, templates.ThankYouExpiredLink)
	case errors.Is(err, models.ErrNotFound):
		return redirectThankYou(c, templates.ThankYouNotFound)
	case errors.Is(err, models.ErrAlreadyConfirmed):
		return redirectThankYou(c, templates.ThankYouAlreadyConfirmed)
	default:
		slog.Error("confirmation failed", "error", err)
		return redirectThankYou(c, templates.ThankYouServerError)
	}
}

func redirectThankYou(c echo.Context, status templates.ThankYouStatus) error {
	q := url.Values{}
	if status == templates.ThankYouConfirmed {
		q.Set("confirmed", "true")
	} else {
		q.Set("error", string(status))
	}
	return c.Redirect(http.StatusFound, "/thank-you?"+q.Encode())
}

// Resend mails a new confirmation link to an unconfirmed address.
func (h *Handlers) Resend(c echo.Context) error {
	var req ResendRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, false, "api_bad_request")
	}

	err := h.waitlist.Resend(c.Request().Context(), req.Email)

	var verr *models.ValidationError
	switch {
	case err == nil:
		return respond(c, http.StatusOK, true, "api_resend_success")
	case errors.As(err, &verr):
		return respondInvalid(c, "api_resend_invalid", err)
	case errors.Is(err, models.ErrNotFound):
		return respond(c, http.StatusNotFound, false, "api_resend_not_found")
	case errors.Is(err, models.ErrAlreadyConfirmed):
		return respond(c, http.StatusConflict, false, "api_resend_already_confirmed")
	default:
		slog.Error("resend failed", "error", err)
		return respond(c, http.StatusInternalServerError, false, "api_server_error")
	}
}

// Count returns the number of signups.
func (h *Handlers) Count(c echo.Context) error {
	count, err := h.waitlist.Count(c.Request().Context())
	if err != nil {
		slog.Error("failed to count signups", "error", err)
		c.Response().Header().Set(echo.HeaderCacheControl, noCacheCacheControl)
		return respond(c, http.StatusInternalServerError, false, "api_server_error")
	}

	c.Response().Header().Set(echo.HeaderCacheControl, countCacheControl)
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: i18n.T(c.Request().Context(), "api_count_success"),
		Data:    CountData{Count: count},
	})
}
