// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"github.com/codeGROOVE-dev/retry"
)

const sendGridSendPath = "/v3/mail/send"

// SendGridProvider sends emails through the SendGrid v3 API.
type SendGridProvider struct {
	apiKey   string
	baseURL  string
	fromAddr string
	fromName string
	client   *http.Client
	logger   *slog.Logger
	attempts uint
	delay    time.Duration
}

// SendGridOption customises a SendGridProvider.
type SendGridOption func(*SendGridProvider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) SendGridOption {
	return func(p *SendGridProvider) { p.client = c }
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) SendGridOption {
	return func(p *SendGridProvider) {
		p.attempts = attempts
		p.delay = delay
	}
}

// NewSendGridProvider creates a new SendGrid provider.
func NewSendGridProvider(cfg config.SendGridConfig, fromAddr, fromName string, logger *slog.Logger, opts ...SendGridOption) (*SendGridProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SendGrid API key is required")
	}
	if fromAddr == "" {
		return nil, fmt.Errorf("SendGrid from address is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}

	p := &SendGridProvider{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridContact           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridContact `json:"to"`
}

type sendGridContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sendgrid: HTTP %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether a request with this status may succeed later.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Send sends an email via the SendGrid API.
func (p *SendGridProvider) Send(ctx context.Context, msg *Message) error {
	content := []sendGridContent{{Type: "text/plain", Value: msg.Text}}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	jsonData, err := json.Marshal(sendGridRequest{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridContact{{Email: msg.To, Name: msg.ToName}}},
		},
		From:    sendGridContact{Email: p.fromAddr, Name: p.fromName},
		Subject: msg.Subject,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			return p.post(ctx, jsonData, msg.To)
		},
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(max(p.delay, time.Millisecond)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("retrying SendGrid send after error", "attempt", n, "error", err)
		}),
	)
}

func (p *SendGridProvider) post(ctx context.Context, body []byte, to string) error {
	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+sendGridSendPath, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		p.logger.Warn("SendGrid request failed",
			"to", to,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		p.logger.Warn("SendGrid returned non-2xx status",
			"status_code", resp.StatusCode,
			"to", to)
		if !statusErr.retryable() {
			return retry.Unrecoverable(statusErr)
		}
		return statusErr
	}

	p.logger.Debug("SendGrid request completed",
		"to", to,
		"duration_ms", duration.Milliseconds())
	return nil
}

// IsStatus reports whether err carries the given SendGrid HTTP status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
