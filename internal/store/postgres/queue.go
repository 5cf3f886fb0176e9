package postgres

import (
	"context"
	"fmt"
	"time"

	"jobtrack/internal/store"

	"github.com/lib/pq"
)

// Default retry policy for notification delivery.
const (
	MaxDeliveryAttempts = 5
	VisibilityTimeout   = 5 * time.Minute
)

// EnqueueNotification adds one delivery target to the outbox. It runs inside
// the scheduler's transaction so entries and the reminder's sent flag commit
// together.
func (s *Store) EnqueueNotification(ctx context.Context, tx store.DBTransaction, entry *store.NotificationEntry) (int64, error) {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO notification_queue (reminder_id, tenant_id, channel, recipient, message, visible_after)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`

	var id int64
	err := executor.QueryRowContext(ctx, query,
		entry.ReminderID,
		entry.TenantID,
		entry.Channel,
		entry.Recipient,
		entry.Message,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue notification for reminder %s: %w", entry.ReminderID, err)
	}

	entry.ID = id
	return id, nil
}

// ClaimBatch claims up to 'limit' pending entries atomically using
// SELECT ... FOR UPDATE SKIP LOCKED, extends their visibility window, and
// bumps the attempt counter. Returns nil slice when nothing is due.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]store.NotificationEntry, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT id, reminder_id, tenant_id, channel, recipient, message, status, attempt, last_error, created_at
		FROM notification_queue
		WHERE status = 'pending' AND visible_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`

	rows, err := tx.QueryContext(ctx, selectQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("claim batch query failed: %w", err)
	}
	defer rows.Close()

	var entries []store.NotificationEntry
	var ids []int64

	for rows.Next() {
		var e store.NotificationEntry
		if err := rows.Scan(
			&e.ID, &e.ReminderID, &e.TenantID, &e.Channel, &e.Recipient,
			&e.Message, &e.Status, &e.Attempt, &e.LastError, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("claim batch scan failed: %w", err)
		}
		e.Attempt++
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim batch rows error: %w", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE notification_queue
		SET visible_after = NOW() + ($1 * INTERVAL '1 second'), attempt = attempt + 1
		WHERE id = ANY($2)
	`, VisibilityTimeout.Seconds(), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("claim batch visibility update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notification_queue SET status = 'sent' WHERE id = $1", id)
	return err
}

// MarkFailed reschedules the entry with exponential backoff, or marks it
// terminally failed once the retry budget is spent. Failed entries stay
// visible for manual follow-up.
func (s *Store) MarkFailed(ctx context.Context, id int64, attempt int, errMsg string, terminal bool) error {
	if terminal || attempt >= MaxDeliveryAttempts {
		_, err := s.db.ExecContext(ctx, `
			UPDATE notification_queue
			SET status = 'failed', last_error = $1
			WHERE id = $2
		`, errMsg, id)
		return err
	}

	// 10s * 2^attempt
	backoff := time.Duration(10*(1<<attempt)) * time.Second
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_queue
		SET visible_after = NOW() + ($1 * INTERVAL '1 second'), last_error = $2
		WHERE id = $3
	`, backoff.Seconds(), errMsg, id)
	return err
}

func (s *Store) CountPendingNotifications(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notification_queue WHERE status = 'pending'").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
