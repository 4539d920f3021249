// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:36rem;margin:4rem auto;padding:0 1rem;color:#1f2933}
form{display:grid;gap:.75rem}input[type=email],input[type=text]{padding:.5rem;font-size:1rem}
button{padding:.6rem;font-size:1rem;cursor:pointer}.error{color:#b42318}.ok{color:#027a48}`

// homeScript posts the signup form as JSON and follows the live counter.
const homeScript = `(function(){
var f=document.getElementById("signup"),m=document.getElementById("message"),c=document.getElementById("count"),i=f.elements;
f.addEventListener("submit",function(e){e.preventDefault();
fetch("/api/subscribe",{method:"POST",headers:{"Content-Type":"application/json"},
body:JSON.stringify({name:i.namedItem("name").value,email:i.namedItem("email").value,gdprConsent:i.namedItem("gdprConsent").checked})})
.then(function(r){return r.json().then(function(b){return{ok:r.ok,body:b}})})
.then(function(r){if(r.ok){window.location="/thank-you";return}m.className="error";m.textContent=r.body.message})
.catch(function(){m.className="error";m.textContent=f.dataset.error})});
if(window.EventSource){var s=new EventSource("/api/count/events");
s.addEventListener("count",function(e){var d=JSON.parse(e.data);c.textContent=d.label})}
})();`

// Layout wraps body in the HTML document.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html")
		h.attr("lang", Locale(ctx))
		h.raw("><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>")
		h.text(title)
		h.raw("</title><style>" + pageStyle + "</style></head><body>")
		h.component(ctx, body)
		h.raw("</body></html>")
		return h.err
	})
}

// CountLabel returns the localized signup counter text.
func CountLabel(ctx context.Context, count int64) string {
	return TPlural(ctx, "page_home_count", count)
}

// Home renders the landing page with the signup form.
func Home(site string, count int64) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<main><h1>")
		h.text(T(ctx, "page_home_title"))
		h.raw("</h1><p>")
		h.text(TData(ctx, "page_home_lead", map[string]any{"Site": site}))
		h.raw("</p><p id=\"count\">")
		h.text(CountLabel(ctx, count))
		h.raw("</p><form id=\"signup\" method=\"post\" action=\"/api/subscribe\"")
		h.attr("data-error", T(ctx, "api_server_error"))
		h.raw("><label>")
		h.text(T(ctx, "page_home_email"))
		h.raw(" <input type=\"email\" name=\"email\" required maxlength=\"255\"></label><label>")
		h.text(T(ctx, "page_home_name"))
		h.raw(" <input type=\"text\" name=\"name\" maxlength=\"100\"></label><label><input type=\"checkbox\" name=\"gdprConsent\" required> ")
		h.text(T(ctx, "page_home_consent"))
		h.raw("</label><button type=\"submit\">")
		h.text(T(ctx, "page_home_submit"))
		h.raw("</button><p id=\"message\" role=\"status\"></p></form></main><script>" + homeScript + "</script>")
		return h.err
	})
	return Layout(site, body)
}

// ThankYouStatus is the outcome shown on the thank-you page.
type ThankYouStatus string

// Thank-you page outcomes. The error values match the confirm redirect reasons.
const (
	ThankYouPending          ThankYouStatus = "pending"
	ThankYouConfirmed        ThankYouStatus = "confirmed"
	ThankYouInvalidLink      ThankYouStatus = "invalid-link"
	ThankYouExpiredLink      ThankYouStatus = "expired-link"
	ThankYouNotFound         ThankYouStatus = "not-found"
	ThankYouAlreadyConfirmed ThankYouStatus = "already-confirmed"
	ThankYouServerError      ThankYouStatus = "server-error"
)

var thankYouMessages = map[ThankYouStatus]string{
	ThankYouPending:          "page_thanks_pending",
	ThankYouConfirmed:        "page_thanks_confirmed",
	ThankYouInvalidLink:      "page_thanks_invalid_link",
	ThankYouExpiredLink:      "page_thanks_expired_link",
	ThankYouNotFound:         "page_thanks_not_found",
	ThankYouAlreadyConfirmed: "page_thanks_already_confirmed",
	ThankYouServerError:      "page_thanks_server_error",
}

// IsError reports whether the status describes a failed confirmation.
func (s ThankYouStatus) IsError() bool {
	return s != ThankYouPending && s != ThankYouConfirmed
}

// ParseThankYouStatus maps the confirmed/error query values to a status.
// Unknown error values are shown as invalid links.
func ParseThankYouStatus(confirmed, errorReason string) ThankYouStatus {
	if errorReason != "" {
		s := ThankYouStatus(errorReason)
		if _, ok := thankYouMessages[s]; ok && s.IsError() {
			return s
		}
		return ThankYouInvalidLink
	}
	if confirmed == "true" {
		return ThankYouConfirmed
	}
	return ThankYouPending
}

// ThankYou renders the page shown after signup and confirmation.
func ThankYou(site string, status ThankYouStatus) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "ok"
		if status.IsError() {
			class = "error"
		}
		h := &htmlWriter{w: w}
		h.raw("<main><h1>")
		h.text(T(ctx, "page_thanks_title"))
		h.raw("</h1><p")
		h.attr("class", class)
		h.attr("data-status", string(status))
		h.raw(">")
		h.text(T(ctx, thankYouMessages[status]))
		h.raw("</p><p><a href=\"/\">")
		h.text(site)
		h.raw("</a></p></main>")
		return h.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(T(ctx, "page_thanks_title")+" | "+site, body).Render(ctx, w)
	})
}

// ErrorPage renders a minimal page for HTTP errors outside the API.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<main><h1>")
		h.text(strconv.Itoa(code))
		h.raw("</h1><p class=\"error\">")
		h.text(message)
		h.raw("</p><p><a href=\"/\">")
		h.text(T(ctx, "app_name"))
		h.raw("</a></p></main>")
		return h.err
	})
	return Layout(message, body)
}
