package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Requeue(ctx context.Context, id string) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// Evaluator decides and applies the finish of one round session.
type Evaluator interface {
	EvaluateFinish(ctx context.Context, sessionID string) (bool, error)
}

// FinishWorker drains finish checks. A session is evaluated by one worker
// at a time across all instances sharing the Redis.
type FinishWorker struct {
	queue      Queue
	locker     Locker
	evaluator  Evaluator
	lockPrefix string
	lockTTL    time.Duration
	popTimeout time.Duration
	backoff    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

type Options struct {
	LockPrefix string
	LockTTL    time.Duration
	PopTimeout time.Duration
	Backoff    time.Duration
	// RetryDelay is waited before a contended session goes back on the queue.
	RetryDelay time.Duration
}

func NewFinishWorker(queue Queue, locker Locker, evaluator Evaluator, opts Options, logger *slog.Logger) *FinishWorker {
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &FinishWorker{
		queue:      queue,
		locker:     locker,
		evaluator:  evaluator,
		lockPrefix: opts.LockPrefix,
		lockTTL:    opts.LockTTL,
		popTimeout: opts.PopTimeout,
		backoff:    opts.Backoff,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// Start runs until ctx is cancelled.
func (w *FinishWorker) Start(ctx context.Context) {
	w.logger.Info("Finish worker started")
	defer w.logger.Info("Finish worker stopped")

	for ctx.Err() == nil {
		sessionID, err := w.queue.Pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("Failed to pop from finish queue", "error", err)
			w.sleep(ctx, w.backoff)
			continue
		}
		if sessionID == "" {
			continue
		}
		w.processWithLock(ctx, sessionID)
	}
}

func (w *FinishWorker) processWithLock(ctx context.Context, sessionID string) {
	key := w.lockPrefix + ":" + sessionID
	token, ok, err := w.locker.Acquire(ctx, key, w.lockTTL)
	if err != nil {
		w.logger.Error("Lock acquisition failed", "session_id", sessionID, "error", err)
		w.sleep(ctx, w.retryDelay)
		w.requeue(ctx, sessionID)
		return
	}
	if !ok {
		w.logger.Debug("Session is being evaluated elsewhere, re-queueing", "session_id", sessionID)
		w.sleep(ctx, w.retryDelay)
		w.requeue(ctx, sessionID)
		return
	}

	defer func() {
		// The worker's ctx may already be cancelled; the lock must still go.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		released, err := w.locker.Release(releaseCtx, key, token)
		switch {
		case err != nil:
			w.logger.Error("Failed to release finish lock", "session_id", sessionID, "error", err)
		case !released:
			w.logger.Warn("Finish lock expired before release", "session_id", sessionID)
		}
	}()

	finished, err := w.evaluator.EvaluateFinish(ctx, sessionID)
	if err != nil {
		w.logger.Error("Finish evaluation failed", "session_id", sessionID, "error", err)
		return
	}
	w.logger.Debug("Finish evaluated", "session_id", sessionID, "finished", finished)
}

// requeue survives ctx cancellation so a popped id is not lost on shutdown.
func (w *FinishWorker) requeue(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := w.queue.Requeue(ctx, sessionID); err != nil {
		w.logger.Error("Failed to re-queue finish check", "session_id", sessionID, "error", err)
	}
}

func (w *FinishWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
