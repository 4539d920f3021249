// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse fans out server-sent events to connected browsers.
package sse

import (
	"sync"

	"github.com/samber/lo"
)

// bufferSize is the number of pending events per client before new
// events are dropped for it.
const bufferSize = 10

// client is a connected SSE client with its preferred locale.
type client struct {
	ch     chan string
	locale string
}

// Hub tracks connected clients and broadcasts events to them.
// Sends never block: a client with a full buffer misses the event.
type Hub struct {
	clients []client
	closed  bool
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{}
}

// Register adds a client and returns the channel to receive events on.
// The channel is closed by Unregister or Close.
func (h *Hub) Register(locale string) chan string {
	ch := make(chan string, bufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch
	}
	h.clients = append(h.clients, client{ch: ch, locale: locale})
	return ch
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	before := len(h.clients)
	h.clients = lo.Filter(h.clients, func(c client, _ int) bool {
		return c.ch != ch
	})
	if len(h.clients) < before {
		close(ch)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		send(c.ch, message)
	}
}

// BroadcastLocalized renders the message once per locale and sends it to
// the clients of that locale.
func (h *Hub) BroadcastLocalized(render func(locale string) string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byLocale := lo.GroupBy(h.clients, func(c client) string {
		return c.locale
	})
	for locale, clients := range byLocale {
		message := render(locale)
		for _, c := range clients {
			send(c.ch, message)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Locales returns the distinct locales of the connected clients.
func (h *Hub) Locales() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Uniq(lo.Map(h.clients, func(c client, _ int) string {
		return c.locale
	}))
}

// Close disconnects all clients. Later registrations get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		close(c.ch)
	}
	h.clients = nil
	h.closed = true
}

func send(ch chan string, message string) {
	select {
	case ch <- message:
	default:
		// Channel full, skip
	}
}
