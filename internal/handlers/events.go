// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"codeberg.org/oliverandrich/waitlist/internal/sse"
	"codeberg.org/oliverandrich/waitlist/internal/templates"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

// CountEventName is the SSE event carrying counter updates.
const CountEventName = "count"

// reconnectDelay is sent to clients as the SSE retry interval.
const reconnectDelay = 5 * time.Second

// CountEvent is the payload of a counter update.
type CountEvent struct {
	Count int64  `json:"count"`
	Label string `json:"label"`
}

func formatCountEvent(ctx context.Context, count int64) string {
	data, err := json.Marshal(CountEvent{Count: count, Label: templates.CountLabel(ctx, count)})
	if err != nil {
		slog.Error("failed to encode count event", "error", err)
		return ""
	}
	return sse.FormatEvent(CountEventName, string(data))
}

// CountEvents streams the signup counter as server-sent events.
func (h *Handlers) CountEvents(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.waitlist.Count(ctx)
	if err != nil {
		slog.Error("failed to count signups", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	ch := h.hub.Register(i18n.GetLocale(ctx))
	defer h.hub.Unregister(ch)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write := func(msg string) error {
		if _, err := w.Write([]byte(msg)); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	if err := write(sse.FormatRetry(int(reconnectDelay.Milliseconds())) + formatCountEvent(ctx, count)); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := write(msg); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := write(sse.Heartbeat); err != nil {
				return nil
			}
		}
	}
}

// CountBroadcaster pushes counter updates to all connected SSE clients,
// rendering the label once per client locale.
type CountBroadcaster struct {
	hub *sse.Hub
}

// NewCountBroadcaster creates a CountBroadcaster for hub.
func NewCountBroadcaster(hub *sse.Hub) *CountBroadcaster {
	return &CountBroadcaster{hub: hub}
}

// BroadcastCount implements waitlist.Broadcaster.
func (b *CountBroadcaster) BroadcastCount(count int64) {
	b.hub.BroadcastLocalized(func(locale string) string {
		ctx := i18n.WithLocale(context.Background(), language.Make(locale))
		return formatCountEvent(ctx, count)
	})
}
