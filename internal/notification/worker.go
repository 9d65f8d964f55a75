package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Worker consumes workflow event bodies from a message transport.
type Worker struct {
	router *Router
	redis  *redis.Client
	logger *slog.Logger
}

// NewWorker creates a worker. redisClient may be nil, which disables
// duplicate delivery detection.
func NewWorker(router *Router, redisClient *redis.Client, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{router: router, redis: redisClient, logger: logger}
}

func eventKey(id string) string {
	return fmt.Sprintf("notif:event:%s", id)
}

// ProcessEvent handles one delivery. Redeliveries of an event already
// processed are skipped; reconciliation is idempotent anyway, so this only
// saves work.
func (w *Worker) ProcessEvent(ctx context.Context, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		EventsProcessed.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	kind := string(event.Kind)

	if w.redis != nil && event.ID != "" {
		exists, err := w.redis.Exists(ctx, eventKey(event.ID)).Result()
		if err != nil {
			w.logger.WarnContext(ctx, "redis error checking event idempotency", "error", err)
		} else if exists > 0 {
			w.logger.InfoContext(ctx, "event already processed", "event_id", event.ID, "kind", kind)
			EventsProcessed.WithLabelValues(kind, "duplicate").Inc()
			return nil
		}
	}

	if err := w.router.Route(ctx, &event); err != nil {
		EventsProcessed.WithLabelValues(kind, "failed").Inc()
		return err
	}

	if w.redis != nil && event.ID != "" {
		if err := w.redis.Set(ctx, eventKey(event.ID), "1", 24*time.Hour).Err(); err != nil {
			w.logger.WarnContext(ctx, "failed to record processed event", "event_id", event.ID, "error", err)
		}
	}
	EventsProcessed.WithLabelValues(kind, "ok").Inc()
	w.logger.InfoContext(ctx, "processed workflow event", "event_id", event.ID, "kind", kind)
	return nil
}
