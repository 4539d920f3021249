// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies stateless email confirmation tokens.
//
// A token has the form
//
//	<64 hex digest>.<32 hex salt>.<decimal epoch millis>
//
// where digest = SHA-256(email ":" salt ":" millis), or HMAC-SHA256 keyed with a
// server secret when one is configured. Nothing is persisted; verification
// recomputes the digest from the claimed email and the token's salt and timestamp.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// SaltLength is the number of random bytes in a token salt.
	SaltLength = 16
	// DefaultMaxAge is how long a token stays valid unless configured otherwise.
	DefaultMaxAge = 24 * time.Hour

	separator = "."
)

// Service issues and verifies confirmation tokens. It holds no mutable state and
// is safe for concurrent use.
type Service struct {
	now    func() time.Time
	random io.Reader
	secret []byte
	maxAge time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSecret keys the digest with HMAC-SHA256. An empty secret keeps plain SHA-256.
func WithSecret(secret []byte) Option {
	return func(s *Service) {
		s.secret = secret
	}
}

// WithMaxAge sets the validity window used by Verify.
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Service) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRandom replaces the entropy source. Production code must keep crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		s.random = r
	}
}

// NewService creates a token service.
func NewService(opts ...Option) *Service {
	s := &Service{
		now:    time.Now,
		random: rand.Reader,
		maxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAge returns the validity window used by Verify.
func (s *Service) MaxAge() time.Duration {
	return s.maxAge
}

// Issue creates a new token bound to email. The email must already be normalised.
// An error means no secure randomness was available and no token can be issued.
func (s *Service) Issue(email string) (string, error) {
	saltBytes := make([]byte, SaltLength)
	if _, err := io.ReadFull(s.random, saltBytes); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	salt := hex.EncodeToString(saltBytes)
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	digest := s.digest(email, salt, timestamp)

	return digest + separator + salt + separator + timestamp, nil
}

// Verify checks token against email using the service's max age.
func (s *Service) Verify(token, email string) bool {
	return s.VerifyMaxAge(token, email, s.maxAge)
}

// VerifyMaxAge checks token against email within maxAge of issuance.
// Malformed, expired and mismatched tokens all yield false.
func (s *Service) VerifyMaxAge(token, email string, maxAge time.Duration) bool {
	parts := strings.Split(token, separator)
	if len(parts) != 3 {
		return false
	}
	digest, salt, timestamp := parts[0], parts[1], parts[2]
	if digest == "" || salt == "" || timestamp == "" {
		return false
	}

	issuedAt, ok := parseMillis(timestamp)
	if !ok {
		return false
	}
	age := s.now().UnixMilli() - issuedAt
	if age < 0 || age > maxAge.Milliseconds() {
		return false
	}

	return TimingSafeEqual(digest, s.digest(email, salt, timestamp))
}

func (s *Service) digest(email, salt, timestamp string) string {
	var h hash.Hash
	if len(s.secret) > 0 {
		h = hmac.New(sha256.New, s.secret)
	} else {
		h = sha256.New()
	}
	// hash.Hash writes never fail.
	_, _ = io.WriteString(h, email+":"+salt+":"+timestamp)
	return hex.EncodeToString(h.Sum(nil))
}

// parseMillis accepts only unsigned decimal integers.
func parseMillis(s string) (int64, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TimingSafeEqual compares a and b without short-circuiting on the first
// differing byte. Unequal lengths return false immediately; digest length is
// fixed and public.
func TimingSafeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
