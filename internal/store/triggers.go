package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

const triggerColumns = `post_id, fire_at, state, lease_expires_at, created_at, updated_at`

// RegisterTrigger records that a post is due for dispatch at fireAt. The
// insert is keyed on post_id and ignores conflicts, so registering twice
// while a live trigger exists never duplicates it.
func (s *Store) RegisterTrigger(ctx context.Context, postID string, fireAt time.Time) error {
	query := `
		INSERT INTO postsync.post_triggers (post_id, fire_at, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, postID, fireAt, string(models.TriggerStateScheduled))
	return err
}

// ClaimDueTriggers atomically claims every scheduled trigger whose fire time
// has passed, flipping it to firing with a lease. The single conditional
// UPDATE is the safety boundary between concurrent pollers: a row can only
// move scheduled -> firing once per lease.
func (s *Store) ClaimDueTriggers(ctx context.Context, now time.Time, lease time.Duration) ([]models.Trigger, error) {
	query := `
		UPDATE postsync.post_triggers
		SET state = 'firing',
		    lease_expires_at = $2,
		    updated_at = NOW()
		WHERE state = 'scheduled' AND fire_at <= $1
		RETURNING ` + triggerColumns

	rows, err := s.db.QueryContext(ctx, query, now, now.Add(lease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []models.Trigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *trigger)
	}
	return claims, rows.Err()
}

// CompleteTrigger consumes a trigger after a dispatch attempt, regardless of
// the publish outcome. Deleting the row is what prevents re-firing.
func (s *Store) CompleteTrigger(ctx context.Context, postID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM postsync.post_triggers WHERE post_id = $1`, postID)
	return err
}

// ReclaimExpiredTriggers returns firing triggers whose lease has lapsed to
// the scheduled state. A worker that crashed mid-dispatch left its claim
// behind; the next poll cycle retries the dispatch attempt. This makes
// delivery at-least-once: a crash after the publish call but before
// CompleteTrigger can produce a duplicate publish.
func (s *Store) ReclaimExpiredTriggers(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE postsync.post_triggers
		SET state = 'scheduled',
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE state = 'firing' AND lease_expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanTrigger(row rowScanner) (*models.Trigger, error) {
	var trigger models.Trigger
	var leaseExpiresAt sql.NullTime

	err := row.Scan(
		&trigger.PostID, &trigger.FireAt, &trigger.State,
		&leaseExpiresAt, &trigger.CreatedAt, &trigger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leaseExpiresAt.Valid {
		trigger.LeaseExpiresAt = &leaseExpiresAt.Time
	}
	return &trigger, nil
}
