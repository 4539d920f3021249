// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/waitlist/internal/models"
	"github.com/google/uuid"
)

// CreateEntry inserts a new unconfirmed waitlist entry.
// Returns models.ErrDuplicateEmail if the email is already registered.
func (r *Repository) CreateEntry(ctx context.Context, in *models.NewEntry) (*models.WaitlistEntry, error) {
	now := r.now()
	entry := &models.WaitlistEntry{
		ID:          uuid.NewString(),
		Email:       in.Email,
		Name:        in.Name,
		Confirmed:   false,
		GDPRConsent: in.GDPRConsent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO waiting_list (id, email, name, confirmed, gdpr_consent, created_at, updated_at)
		 VALUES (:id, :email, :name, :confirmed, :gdpr_consent, :created_at, :updated_at)`,
		entry)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	return entry, nil
}

// GetEntryByEmail retrieves an entry by its normalised email.
func (r *Repository) GetEntryByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM waiting_list WHERE email = ?`, email)
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return &entry, nil
}

// EmailExists checks if an entry with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM waiting_list WHERE email = ?`, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConfirmEntry moves an entry from unconfirmed to confirmed.
//
// The transition is a single conditional UPDATE, so concurrent callers for the
// same email see exactly one success; the others get models.ErrAlreadyConfirmed.
// Returns models.ErrNotFound if no entry exists.
func (r *Repository) ConfirmEntry(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	now := r.now()

	var entry models.WaitlistEntry
	err := r.db.GetContext(ctx, &entry,
		`UPDATE waiting_list
		 SET confirmed = 1, confirmed_at = ?, updated_at = ?
		 WHERE email = ? AND confirmed = 0
		 RETURNING *`,
		now, now, email)
	if err == nil {
		return &entry, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to confirm email: %w", err)
	}

	exists, err := r.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm email: %w", err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}
	return nil, models.ErrAlreadyConfirmed
}

// CountEntries returns the total number of signups.
func (r *Repository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM waiting_list`); err != nil {
		return 0, fmt.Errorf("failed to get signup count: %w", err)
	}
	return count, nil
}

// CountConfirmed returns the number of confirmed signups.
func (r *Repository) CountConfirmed(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM waiting_list WHERE confirmed = 1`); err != nil {
		return 0, fmt.Errorf("failed to get confirmed count: %w", err)
	}
	return count, nil
}
