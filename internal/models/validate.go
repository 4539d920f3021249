// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MaxEmailLength is the longest accepted email address.
	MaxEmailLength = 255
	// MaxNameLength is the longest accepted display name.
	MaxNameLength = 100
)

// NormalizeEmail trims and lower-cases an email address.
// Token issuance and verification must both see the normalised form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims a display name. Empty names become nil.
func NormalizeName(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &name
}

// IsValidEmail reports whether email is a bare RFC 5322 address.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > MaxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Jane <jane@example.com>".
	return addr.Address == email
}

// ValidateEmail normalises and validates a single email address.
func ValidateEmail(email string) (string, error) {
	verr := &ValidationError{}
	email = validateEmail(verr, email)
	if len(verr.Fields) > 0 {
		return "", verr
	}
	return email, nil
}

func validateEmail(verr *ValidationError, email string) string {
	email = NormalizeEmail(email)
	switch {
	case email == "":
		verr.add("email", "Email is required")
	case len(email) > MaxEmailLength:
		verr.add("email", "Email must be less than 255 characters")
	case !IsValidEmail(email):
		verr.add("email", "Invalid email address")
	}
	return email
}

// ValidateSignup normalises and validates signup input.
func ValidateSignup(email, name string, gdprConsent bool) (*NewEntry, error) {
	verr := &ValidationError{}

	email = validateEmail(verr, email)

	n := NormalizeName(name)
	if n != nil && utf8.RuneCountInString(*n) > MaxNameLength {
		verr.add("name", "Name must be less than 100 characters")
	}

	if len(verr.Fields) > 0 {
		if !gdprConsent {
			verr.add("gdprConsent", ErrConsentRequired.Error())
		}
		return nil, verr
	}
	if !gdprConsent {
		return nil, ErrConsentRequired
	}

	return &NewEntry{
		Email:       email,
		Name:        n,
		GDPRConsent: true,
	}, nil
}
