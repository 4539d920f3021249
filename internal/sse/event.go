// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"strconv"
	"strings"
)

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is split into several "data:" lines.
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		sb.WriteString("event: ")
		sb.WriteString(eventName)
		sb.WriteString("\n")
	}

	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatRetry tells the client how long to wait before reconnecting.
func FormatRetry(millis int) string {
	return "retry: " + strconv.Itoa(millis) + "\n\n"
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
