// Package reminder derives scheduled notifications from dated responses and
// fans due reminders out to the notification queue.
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"
	"jobtrack/internal/workflow"

	"github.com/google/uuid"
)

// Store is the persistence surface for scheduling and dispatch.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
	CreateReminder(ctx context.Context, reminder *store.Reminder) (*store.Reminder, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]store.Reminder, error)
	MarkSent(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error
	EnqueueNotification(ctx context.Context, tx store.DBTransaction, entry *store.NotificationEntry) (int64, error)
}

// Resolver resolves an acting principal. Satisfied by authz.Directory.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (authz.Principal, error)
}

// Response is the answer that may trigger a reminder. Enabled is the
// question-level default; Override, when set, wins.
type Response struct {
	QuestionID uuid.UUID
	ResponseID uuid.UUID
	IsDate     bool
	Date       time.Time
	Enabled    bool
	Override   *bool
}

// Scheduler creates reminders and dispatches the due ones.
type Scheduler struct {
	store     Store
	directory Resolver
	logger    *slog.Logger
	batchSize int

	// now is swappable for tests.
	now func() time.Time
}

func NewScheduler(s Store, directory Resolver, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     s,
		directory: directory,
		logger:    logger,
		batchSize: 100,
		now:       time.Now,
	}
}

// Schedule creates a reminder offsetHours before the response date. A
// response that is not a date, has reminders disabled, or whose computed
// fire time is already past produces no reminder and no error. The
// (job, question, response) triple is the idempotency key: scheduling twice
// yields exactly one reminder.
func (s *Scheduler) Schedule(ctx context.Context, principalID, jobID uuid.UUID, resp Response, offsetHours int) (*store.Reminder, error) {
	enabled := resp.Enabled
	if resp.Override != nil {
		enabled = *resp.Override
	}
	if !resp.IsDate || !enabled {
		return nil, nil
	}

	fireAt := resp.Date.Add(-time.Duration(offsetHours) * time.Hour)
	if !fireAt.After(s.now()) {
		// A reminder for the past is a no-op, not a failure.
		return nil, nil
	}

	p, err := s.directory.Resolve(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}

	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &workflow.NotFound{Kind: "job", ID: jobID}
		}
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	res := authz.Resource{
		Kind:      authz.KindReminder,
		ID:        resp.ResponseID,
		TenantID:  &job.TenantID,
		CreatedBy: p.ID,
	}
	if err := authz.Authorize(p, authz.ActionCreate, res); err != nil {
		return nil, err
	}

	reminder := &store.Reminder{
		ID:          uuid.New(),
		JobID:       jobID,
		TenantID:    job.TenantID,
		QuestionID:  resp.QuestionID,
		ResponseID:  resp.ResponseID,
		RecipientID: p.ID,
		FireAt:      fireAt,
		CreatedAt:   s.now().UTC(),
	}

	return s.store.CreateReminder(ctx, reminder)
}

// DispatchDue fans every due reminder out to the notification queue: one
// entry per known channel for the recipient. The sent flag flips in the same
// transaction that inserts the entries, after they exist, so on a partial
// failure the reminder stays unsent and the next scan retries it
// (at-least-once enqueue).
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueReminders(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("due scan failed: %w", err)
	}

	dispatched := 0
	for _, r := range due {
		if err := s.dispatchOne(ctx, r); err != nil {
			// Keep going: one bad reminder must not starve the rest.
			s.logger.Warn("failed to dispatch reminder",
				"reminder_id", r.ID, "job_id", r.JobID, "error", err)
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, r store.Reminder) error {
	recipient, err := s.store.GetUserByID(ctx, r.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	message := fmt.Sprintf("Reminder: job %s has a dated response due at %s",
		r.JobID, r.FireAt.UTC().Format(time.RFC3339))

	var entries []*store.NotificationEntry
	if recipient.Email != nil && *recipient.Email != "" {
		entries = append(entries, &store.NotificationEntry{
			ReminderID: r.ID,
			TenantID:   r.TenantID,
			Channel:    store.ChannelEmail,
			Recipient:  *recipient.Email,
			Message:    message,
		})
	}
	if recipient.Phone != nil && *recipient.Phone != "" {
		entries = append(entries, &store.NotificationEntry{
			ReminderID: r.ID,
			TenantID:   r.TenantID,
			Channel:    store.ChannelSMS,
			Recipient:  *recipient.Phone,
			Message:    message,
		})
	}

	if len(entries) == 0 {
		s.logger.Warn("reminder recipient has no known channel, marking sent",
			"reminder_id", r.ID, "recipient_id", r.RecipientID)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := s.store.EnqueueNotification(ctx, tx, e); err != nil {
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}

	// Only after the entries are durably queued.
	if err := s.store.MarkSent(ctx, tx, r.ID); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return tx.Commit()
}
