package service

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vcontests/vscubing-back/internal/common"
)

// FinishQueue schedules a finish check for a round session.
type FinishQueue interface {
	EnqueueFinishCheck(ctx context.Context, sessionID string) error
}

// RedisFinishQueue pushes session IDs onto a Redis list drained by the
// finish worker.
type RedisFinishQueue struct {
	rdb       *redis.Client
	queueName string
	logger    *slog.Logger
}

func NewRedisFinishQueue(rdb *redis.Client, queueName string, logger *slog.Logger) *RedisFinishQueue {
	return &RedisFinishQueue{rdb: rdb, queueName: queueName, logger: logger}
}

func (q *RedisFinishQueue) EnqueueFinishCheck(ctx context.Context, sessionID string) error {
	if err := q.rdb.LPush(ctx, q.queueName, sessionID).Err(); err != nil {
		return common.Errorf("failed to push session %s to finish queue: %w", sessionID, err)
	}
	q.logger.DebugContext(ctx, "Finish check enqueued", "session_id", sessionID, "queue", q.queueName)
	return nil
}

// InlineFinishQueue evaluates the session on the spot. Used when no Redis
// is configured.
type InlineFinishQueue struct {
	sessions *RoundSessionService
}

func NewInlineFinishQueue(sessions *RoundSessionService) *InlineFinishQueue {
	return &InlineFinishQueue{sessions: sessions}
}

func (q *InlineFinishQueue) EnqueueFinishCheck(ctx context.Context, sessionID string) error {
	_, err := q.sessions.EvaluateFinish(ctx, sessionID)
	return err
}
