package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Mutter0815/MassTexter/internal/campaign"
)

func (s *Store) InsertCampaign(ctx context.Context, tx *sql.Tx, accountID int64, body string, recipients []string, scheduledAt *time.Time) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
	INSERT INTO campaigns (account_id,body,recipients,scheduled_at,status)
	VALUES ($1,$2,$3,$4,'draft') RETURNING id`,
		accountID, body, stringSlice(recipients), scheduledAt).Scan(&id)
	return id, err
}

func (s *Store) GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error) {
	var (
		c    campaign.Campaign
		recs stringSlice
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, account_id, body, recipients, scheduled_at, status, sent_count, created_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(&c.ID, &c.AccountID, &c.Body, &recs, &c.ScheduledAt, &c.Status, &c.SentCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, ErrNotFound
	}
	if err != nil {
		return campaign.Campaign{}, err
	}
	c.Recipients = recs
	return c, nil
}

// QueueCampaign moves draft -> queued and pins the scheduled time.
func (s *Store) QueueCampaign(ctx context.Context, id int64, at time.Time) error {
	return s.transition(ctx, id, `
		UPDATE campaigns SET status='queued', scheduled_at=$2
		WHERE id=$1 AND status='draft'
	`, at)
}

// CancelCampaign moves queued -> draft, the single allowed backward edge.
// A campaign the scheduler has already claimed cannot be cancelled.
func (s *Store) CancelCampaign(ctx context.Context, id int64) error {
	return s.transition(ctx, id, `
		UPDATE campaigns SET status='draft', scheduled_at=NULL
		WHERE id=$1 AND status='queued'
	`)
}

func (s *Store) transition(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// DueCampaigns returns queued campaigns whose scheduled time has passed.
func (s *Store) DueCampaigns(ctx context.Context, now time.Time) ([]campaign.Campaign, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, account_id, body, recipients, scheduled_at, status, sent_count, created_at
		FROM campaigns
		WHERE status='queued' AND scheduled_at <= $1
		ORDER BY scheduled_at, id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		var (
			c    campaign.Campaign
			recs stringSlice
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Body, &recs, &c.ScheduledAt, &c.Status, &c.SentCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Recipients = recs
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimCampaign is the queued -> sending compare-and-set. Exactly one
// concurrent caller observes true; everyone else skips the campaign
// this cycle.
func (s *Store) ClaimCampaign(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET status='sending'
		WHERE id=$1 AND status='queued'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) MarkCampaignSent(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET status='sent'
		WHERE id=$1 AND status='sending'
	`, id)
	return err
}

func (s *Store) IncrementSentCount(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET sent_count = sent_count + 1
		WHERE id=$1
	`, id)
	return err
}

func (s *Store) ListCampaigns(ctx context.Context, limit, offset int) ([]campaign.Campaign, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, account_id, body, recipients, scheduled_at, status, sent_count, created_at
		FROM campaigns
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		var (
			c    campaign.Campaign
			recs stringSlice
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Body, &recs, &c.ScheduledAt, &c.Status, &c.SentCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Recipients = recs
		out = append(out, c)
	}
	return out, rows.Err()
}
