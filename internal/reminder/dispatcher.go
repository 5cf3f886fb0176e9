package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobtrack/internal/store"
)

// ErrTerminalDelivery marks a delivery failure that must not be retried
// (bad address, rejected recipient). The entry goes straight to failed.
var ErrTerminalDelivery = errors.New("terminal delivery failure")

// Deliverer is the external delivery contract. A nil return means sent; a
// plain error is retriable; an error wrapping ErrTerminalDelivery is final.
type Deliverer interface {
	Deliver(ctx context.Context, entry store.NotificationEntry) error
}

// QueueStore is the outbox surface the dispatcher consumes.
type QueueStore interface {
	ClaimBatch(ctx context.Context, limit int) ([]store.NotificationEntry, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempt int, errMsg string, terminal bool) error
}

// DispatcherConfig holds tunables for the delivery loop.
type DispatcherConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MaxBackoff   time.Duration // backoff cap when the queue is empty
}

// Dispatcher is the pull-loop that claims pending notification entries and
// hands them to the Deliverer. It is the only recurring background worker:
// transitions themselves are synchronous and request-scoped.
type Dispatcher struct {
	queue     QueueStore
	deliverer Deliverer
	config    DispatcherConfig
	logger    *slog.Logger
}

func NewDispatcher(q QueueStore, d Deliverer, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}

	return &Dispatcher{
		queue:     q,
		deliverer: d,
		config:    config,
		logger:    logger,
	}
}

// Run polls the queue until the context is cancelled. An empty queue backs
// the poll interval off up to MaxBackoff; finding work resets it.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher starting",
		"concurrency", d.config.Concurrency, "poll_interval", d.config.PollInterval)

	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	backoff := d.config.PollInterval

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-time.After(backoff):
		}

		entries, err := d.queue.ClaimBatch(ctx, d.config.Concurrency)
		if err != nil {
			d.logger.Error("failed to claim notification batch", "error", err)
			continue
		}

		if len(entries) == 0 {
			backoff = min(backoff*2, d.config.MaxBackoff)
			continue
		}
		backoff = d.config.PollInterval

		for _, entry := range entries {
			sem <- struct{}{}
			wg.Add(1)
			go func(e store.NotificationEntry) {
				defer wg.Done()
				defer func() { <-sem }()
				d.deliver(ctx, e)
			}(entry)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, entry store.NotificationEntry) {
	err := d.deliverer.Deliver(ctx, entry)
	if err == nil {
		if markErr := d.queue.MarkDelivered(ctx, entry.ID); markErr != nil {
			d.logger.Error("failed to mark notification delivered",
				"entry_id", entry.ID, "error", markErr)
		}
		return
	}

	terminal := errors.Is(err, ErrTerminalDelivery)
	d.logger.Warn("notification delivery failed",
		"entry_id", entry.ID,
		"channel", entry.Channel,
		"attempt", entry.Attempt,
		"terminal", terminal,
		"error", err)

	if markErr := d.queue.MarkFailed(ctx, entry.ID, entry.Attempt, err.Error(), terminal); markErr != nil {
		d.logger.Error("failed to mark notification failed",
			"entry_id", entry.ID, "error", markErr)
	}
}
