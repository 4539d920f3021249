// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the HTML pages and email bodies.
package templates

import (
	"context"
	"io"
	"strings"

	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"github.com/a-h/templ"
)

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return i18n.TData(ctx, messageID, data)
}

// TPlural translates a plural message for count.
func TPlural(ctx context.Context, messageID string, count int64) string {
	return i18n.TPlural(ctx, messageID, int(count))
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// Greeting returns the salutation for an email recipient.
func Greeting(ctx context.Context, name string) string {
	if strings.TrimSpace(name) == "" {
		return T(ctx, "email_greeting_anonymous")
	}
	return TData(ctx, "email_greeting", map[string]any{"Name": name})
}

// htmlWriter collects the first write error so components can be written
// as a flat sequence of calls.
type htmlWriter struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// text writes escaped text.
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr writes an escaped attribute value.
func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}
