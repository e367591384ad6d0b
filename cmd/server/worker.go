package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vcontests/vscubing-back/internal/app/worker"
	"github.com/vcontests/vscubing-back/internal/platform/queue"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Drain round-session finish checks without serving HTTP",
		Long: `Runs only the finish worker. Any number of workers may share one
Redis; a per-session lock keeps evaluations of the same session apart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := bootstrap(ctx, !opts.skipMigrate)
			if err != nil {
				return err
			}
			defer cleanup()
			if queue.RDB == nil {
				return errors.New("the worker needs REDIS_ADDR")
			}

			newFinishWorker(a).Start(ctx)
			return nil
		},
	}
}

func newFinishWorker(a *app) *worker.FinishWorker {
	return worker.NewFinishWorker(
		worker.NewRedisQueue(queue.RDB, a.cfg.FinishQueueName),
		worker.NewRedisLocker(queue.RDB),
		a.sessions,
		worker.Options{
			LockPrefix: a.cfg.FinishLockPrefix,
			LockTTL:    time.Duration(a.cfg.FinishLockTTLSeconds) * time.Second,
		},
		a.logger,
	)
}
