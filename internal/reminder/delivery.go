package reminder

import (
	"context"
	"log/slog"

	"jobtrack/internal/store"
)

// LogDeliverer writes notifications to the log instead of an external
// provider. Used in development and as the default until a provider is
// configured.
type LogDeliverer struct {
	logger *slog.Logger
}

func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(ctx context.Context, entry store.NotificationEntry) error {
	d.logger.Info("delivering notification",
		"entry_id", entry.ID,
		"reminder_id", entry.ReminderID,
		"channel", entry.Channel,
		"recipient", entry.Recipient,
		"message", entry.Message,
	)
	return nil
}
