package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

const reminderColumns = "id, job_id, tenant_id, question_id, response_id, recipient_id, fire_at, sent, created_at"

// CreateReminder inserts the reminder unless the (job, question, response)
// triple already exists. Either way the surviving row is returned, so a
// repeated schedule attempt can never produce a duplicate.
func (s *Store) CreateReminder(ctx context.Context, reminder *store.Reminder) (*store.Reminder, error) {
	query := fmt.Sprintf(`
		INSERT INTO reminders (id, job_id, tenant_id, question_id, response_id, recipient_id, fire_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id, question_id, response_id) DO NOTHING
		RETURNING %s
	`, reminderColumns)

	row := s.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.JobID,
		reminder.TenantID,
		reminder.QuestionID,
		reminder.ResponseID,
		reminder.RecipientID,
		reminder.FireAt,
		reminder.CreatedAt,
	)

	created, err := scanReminder(row)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create reminder for job %s: %w", reminder.JobID, err)
	}

	// Conflict path: the triple exists, return the original row.
	lookup := fmt.Sprintf(`
		SELECT %s FROM reminders
		WHERE job_id = $1 AND question_id = $2 AND response_id = $3
	`, reminderColumns)

	existing, err := scanReminder(s.db.QueryRowContext(ctx, lookup,
		reminder.JobID, reminder.QuestionID, reminder.ResponseID))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing reminder: %w", err)
	}
	return existing, nil
}

func (s *Store) DueReminders(ctx context.Context, now time.Time, limit int) ([]store.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM reminders
		WHERE sent = FALSE AND fire_at <= $1
		ORDER BY fire_at ASC
		LIMIT $2
	`, reminderColumns)

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due reminders query failed: %w", err)
	}
	defer rows.Close()

	var due []store.Reminder
	for rows.Next() {
		var r store.Reminder
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.TenantID, &r.QuestionID, &r.ResponseID,
			&r.RecipientID, &r.FireAt, &r.Sent, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("due reminders scan failed: %w", err)
		}
		due = append(due, r)
	}

	return due, rows.Err()
}

// MarkSent flips the sent flag. The scheduler calls this inside the same
// transaction that inserted the queue entries, never before.
func (s *Store) MarkSent(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error {
	executor := s.getExecutor(tx)
	_, err := executor.ExecContext(ctx, "UPDATE reminders SET sent = TRUE WHERE id = $1", id)
	return err
}

func scanReminder(row *sql.Row) (*store.Reminder, error) {
	var r store.Reminder
	err := row.Scan(
		&r.ID, &r.JobID, &r.TenantID, &r.QuestionID, &r.ResponseID,
		&r.RecipientID, &r.FireAt, &r.Sent, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
