package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vcontests/vscubing-back/internal/api"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/platform/queue"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the finish worker when Redis is configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := bootstrap(ctx, !opts.skipMigrate)
	if err != nil {
		return err
	}
	defer cleanup()

	var wg sync.WaitGroup
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	if queue.RDB != nil {
		w := newFinishWorker(a)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(workerCtx)
		}()
	}

	router := api.NewRouter(api.Services{
		Auth:     service.NewAuthService(a.users),
		Solves:   a.solveService(),
		Sessions: a.sessions,
		Contests: service.NewContestService(a.contests, a.disciplines),
	}, a.logger)

	server := &http.Server{
		Addr:         ":" + a.cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "port", a.cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			workerCancel()
			wg.Wait()
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	workerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()
	a.logger.Info("Server and worker stopped gracefully")
	return nil
}
