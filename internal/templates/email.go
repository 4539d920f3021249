// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const emailStyle = "font-family:Arial,Helvetica,sans-serif;font-size:15px;line-height:1.5;color:#1f2933"

const buttonStyle = "display:inline-block;padding:10px 18px;background:#1f2933;color:#ffffff;text-decoration:none;border-radius:4px"

// ConfirmationEmail is the data for the confirmation mail.
type ConfirmationEmail struct {
	Site       string
	Name       string
	ConfirmURL string
	ValidHours int
}

// WelcomeEmail is the data for the welcome mail.
type WelcomeEmail struct {
	Site    string
	Name    string
	SiteURL string
}

func emailFrame(site string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html")
		h.attr("lang", Locale(ctx))
		h.raw("><head><meta charset=\"utf-8\"><title>")
		h.text(site)
		h.raw("</title></head><body")
		h.attr("style", emailStyle)
		h.raw(">")
		h.component(ctx, body)
		h.raw("<p>")
		h.text(TData(ctx, "email_signoff", map[string]any{"Site": site}))
		h.raw("</p></body></html>")
		return h.err
	})
}

// ConfirmationEmailHTML renders the HTML part of the confirmation mail.
func ConfirmationEmailHTML(data ConfirmationEmail) templ.Component {
	return emailFrame(data.Site, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<p>")
		h.text(Greeting(ctx, data.Name))
		h.raw("</p><p>")
		h.text(TData(ctx, "email_confirm_intro", map[string]any{"Site": data.Site}))
		h.raw("</p><p><a")
		h.attr("href", data.ConfirmURL)
		h.attr("style", buttonStyle)
		h.raw(">")
		h.text(T(ctx, "email_confirm_action"))
		h.raw("</a></p><p>")
		h.text(TData(ctx, "email_confirm_validity", map[string]any{"Hours": data.ValidHours}))
		h.raw("</p><p style=\"font-size:13px;color:#52606d\">")
		h.text(data.ConfirmURL)
		h.raw("</p><p>")
		h.text(T(ctx, "email_confirm_ignore"))
		h.raw("</p>")
		return h.err
	}))
}

// ConfirmationEmailText renders the plain text part of the confirmation mail.
func ConfirmationEmailText(ctx context.Context, data ConfirmationEmail) string {
	return Greeting(ctx, data.Name) + "\n\n" +
		TData(ctx, "email_confirm_intro", map[string]any{"Site": data.Site}) + "\n\n" +
		data.ConfirmURL + "\n\n" +
		TData(ctx, "email_confirm_validity", map[string]any{"Hours": data.ValidHours}) + "\n" +
		T(ctx, "email_confirm_ignore") + "\n\n" +
		TData(ctx, "email_signoff", map[string]any{"Site": data.Site}) + "\n"
}

// WelcomeEmailHTML renders the HTML part of the welcome mail.
func WelcomeEmailHTML(data WelcomeEmail) templ.Component {
	return emailFrame(data.Site, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<p>")
		h.text(Greeting(ctx, data.Name))
		h.raw("</p><p>")
		h.text(TData(ctx, "email_welcome_intro", map[string]any{"Site": data.Site}))
		h.raw("</p><p><a")
		h.attr("href", data.SiteURL)
		h.raw(">")
		h.text(data.SiteURL)
		h.raw("</a></p>")
		return h.err
	}))
}

// WelcomeEmailText renders the plain text part of the welcome mail.
func WelcomeEmailText(ctx context.Context, data WelcomeEmail) string {
	return Greeting(ctx, data.Name) + "\n\n" +
		TData(ctx, "email_welcome_intro", map[string]any{"Site": data.Site}) + "\n\n" +
		data.SiteURL + "\n\n" +
		TData(ctx, "email_signoff", map[string]any{"Site": data.Site}) + "\n"
}
