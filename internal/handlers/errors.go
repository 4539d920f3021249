// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"codeberg.org/oliverandrich/waitlist/internal/templates"
	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler answers API requests with the JSON envelope and all other
// requests with a small HTML error page.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}

	var werr error
	switch {
	case c.Request().Method == http.MethodHead:
		werr = c.NoContent(code)
	case IsAPIPath(c.Request().URL.Path):
		werr = c.JSON(code, Response{
			Message: i18n.T(c.Request().Context(), apiErrorMessage(code)),
		})
	default:
		text := http.StatusText(code)
		if text == "" {
			text = "Error"
		}
		werr = Render(c, code, templates.ErrorPage(code, text))
	}
	if werr != nil {
		slog.Error("failed to write error response", "error", werr)
	}
}

// IsAPIPath reports whether path belongs to the JSON API.
func IsAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func apiErrorMessage(code int) string {
	switch code {
	case http.StatusMethodNotAllowed:
		return "api_method_not_allowed"
	case http.StatusNotFound:
		return "api_not_found"
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return "api_bad_request"
	default:
		return "api_server_error"
	}
}
