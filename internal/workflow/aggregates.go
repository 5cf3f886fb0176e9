package workflow

import (
	"context"
	"log/slog"
	"time"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// AggregateStore recomputes derived rollups. Implemented by the postgres
// store.
type AggregateStore interface {
	RefreshStageCompletion(ctx context.Context, tenantID uuid.UUID, entityType store.EntityType) error
}

type refreshKey struct {
	tenantID   uuid.UUID
	entityType store.EntityType
}

// Refresher updates derived aggregates off the transition path. Failures
// here are contained: logged at warn level and retried with backoff, never
// propagated to the transition that queued them.
type Refresher struct {
	store      AggregateStore
	logger     *slog.Logger
	queue      chan refreshKey
	maxRetries int
	backoff    time.Duration
}

func NewRefresher(s AggregateStore, logger *slog.Logger) *Refresher {
	return &Refresher{
		store:      s,
		logger:     logger,
		queue:      make(chan refreshKey, 256),
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

// Enqueue requests a refresh. Never blocks the caller: if the queue is full
// the request is dropped and logged, and a later transition will requeue it.
func (r *Refresher) Enqueue(tenantID uuid.UUID, entityType store.EntityType) {
	select {
	case r.queue <- refreshKey{tenantID: tenantID, entityType: entityType}:
	default:
		r.logger.Warn("aggregate refresh queue full, dropping request",
			"tenant_id", tenantID, "entity_type", entityType)
	}
}

// Run processes refresh requests until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-r.queue:
			r.refresh(ctx, key)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, key refreshKey) {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}

		err = r.store.RefreshStageCompletion(ctx, key.tenantID, key.entityType)
		if err == nil {
			return
		}
	}

	r.logger.Warn("derived aggregate refresh failed",
		"tenant_id", key.tenantID,
		"entity_type", key.entityType,
		"error", err)
}
