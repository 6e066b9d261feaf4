package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Mutter0815/MassTexter/internal/campaign"
)

func (s *Store) GetConsent(ctx context.Context, phone string) (campaign.Consent, error) {
	var c campaign.Consent
	err := s.DB.QueryRowContext(ctx, `
		SELECT phone_number, status, email_status, last_sent_at, last_reply_at
		FROM consents
		WHERE phone_number = $1
	`, phone).Scan(&c.PhoneNumber, &c.Status, &c.EmailStatus, &c.LastSentAt, &c.LastReplyAt)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Consent{}, ErrNotFound
	}
	return c, err
}

// TouchSent records an outbound send for the phone. First contact
// creates the row as pending; an existing opted_in/opted_out status is
// left alone, only last_sent_at moves.
func (s *Store) TouchSent(ctx context.Context, phone string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO consents (phone_number, status, last_sent_at)
		VALUES ($1, 'pending', $2)
		ON CONFLICT (phone_number) DO UPDATE SET
			status = CASE WHEN consents.status = 'unknown' THEN 'pending' ELSE consents.status END,
			last_sent_at = EXCLUDED.last_sent_at
	`, phone, at)
	return err
}

// ApplyReply records an inbound reply. newStatus is empty for
// unrecognized keywords: last_reply_at still moves, status does not.
// A reply older than the one already recorded is dropped.
func (s *Store) ApplyReply(ctx context.Context, phone, newStatus string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO consents (phone_number, status, last_reply_at)
		VALUES ($1, CASE WHEN $2 = '' THEN 'unknown' ELSE $2 END, $3)
		ON CONFLICT (phone_number) DO UPDATE SET
			status = CASE WHEN $2 = '' THEN consents.status ELSE $2 END,
			last_reply_at = EXCLUDED.last_reply_at
		WHERE consents.last_reply_at IS NULL OR consents.last_reply_at <= EXCLUDED.last_reply_at
	`, phone, newStatus, at)
	return err
}

// SetEmailOptIn updates the email channel only; the phone keyword
// status is untouched.
func (s *Store) SetEmailOptIn(ctx context.Context, phone, emailStatus string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO consents (phone_number, status, email_status)
		VALUES ($1, 'unknown', $2)
		ON CONFLICT (phone_number) DO UPDATE SET
			email_status = EXCLUDED.email_status
	`, phone, emailStatus)
	return err
}
