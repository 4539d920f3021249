// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// State is the confirmation state of a waitlist entry.
type State string

const (
	StateUnconfirmed State = "unconfirmed"
	StateConfirmed   State = "confirmed"
)

// WaitlistEntry is a single signup on the waiting list.
type WaitlistEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string     `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	Name        *string    `db:"name" json:"name,omitempty"`
	Confirmed   bool       `db:"confirmed" json:"confirmed"`
	GDPRConsent bool       `db:"gdpr_consent" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// State returns the current confirmation state.
func (e *WaitlistEntry) State() State {
	if e.Confirmed {
		return StateConfirmed
	}
	return StateUnconfirmed
}

// DisplayName returns the name if set, otherwise an empty string.
func (e *WaitlistEntry) DisplayName() string {
	if e.Name == nil {
		return ""
	}
	return *e.Name
}

// NewEntry holds the normalised input for creating an unconfirmed entry.
type NewEntry struct {
	Email       string
	Name        *string
	GDPRConsent bool
}
