// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no entry exists for an email address.
	ErrNotFound = errors.New("email not in waitlist")
	// ErrAlreadyConfirmed is returned when confirming an entry that is already confirmed.
	ErrAlreadyConfirmed = errors.New("email already confirmed")
	// ErrDuplicateEmail is returned when signing up with an email that is already registered.
	ErrDuplicateEmail = errors.New("email address is already registered")
	// ErrConsentRequired is returned when a signup lacks GDPR consent.
	ErrConsentRequired = errors.New("GDPR consent is required")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors for a rejected input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}
