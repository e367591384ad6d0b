package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/app/validation"
	"github.com/vcontests/vscubing-back/internal/common/security"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
	"github.com/vcontests/vscubing-back/internal/platform/config"
	"github.com/vcontests/vscubing-back/internal/platform/database"
	"github.com/vcontests/vscubing-back/internal/platform/logging"
	"github.com/vcontests/vscubing-back/internal/platform/queue"
)

type rootOptions struct {
	skipMigrate bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vscubing",
		Short: "Virtual speedcubing contest backend",
		Long: `Serves the contest API, drains round-session finish checks and
provisions contests from YAML files.

Configuration comes from the environment (or a .env file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.skipMigrate, "skip-migrate", false, "do not apply the schema on startup")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand(opts))
	return cmd
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	contests    repository.ContestRepository
	disciplines repository.DisciplineRepository
	scrambles   repository.ScrambleRepository
	solves      repository.SolveRepository
	users       repository.UserRepository

	sessions    *service.RoundSessionService
	resolver    *service.ContextResolver
	finishQueue service.FinishQueue
}

// bootstrap loads configuration and opens the stores. The returned cleanup
// closes them.
func bootstrap(ctx context.Context, migrate bool) (*app, func(), error) {
	config.Load()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	security.InitJWT()

	if err := database.Connect(); err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, database.DB, database.Driver); err != nil {
			database.Close()
			return nil, nil, err
		}
	}
	if err := queue.ConnectRedis(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	cleanup := func() {
		queue.CloseRedis()
		database.Close()
	}

	policy, err := service.PolicyFromNames(cfg.FinishPolicy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		contests:    repository.NewSQLContestRepository(database.DB),
		disciplines: repository.NewSQLDisciplineRepository(database.DB),
		scrambles:   repository.NewSQLScrambleRepository(database.DB),
		solves:      repository.NewSQLSolveRepository(database.DB),
		users:       repository.NewSQLUserRepository(database.DB),
	}
	selector := service.NewSequentialSelector(a.scrambles, a.solves)
	a.resolver = service.NewContextResolver(a.disciplines, service.NewStoreContestProvider(a.contests, nil, logger), selector)
	a.sessions = service.NewRoundSessionService(database.DB, repository.NewSQLRoundSessionRepository(database.DB),
		a.solves, a.contests, a.disciplines, selector, policy, nil, logger)

	if queue.RDB != nil {
		a.finishQueue = service.NewRedisFinishQueue(queue.RDB, cfg.FinishQueueName, logger)
	} else {
		a.finishQueue = service.NewInlineFinishQueue(a.sessions)
	}
	return a, cleanup, nil
}

func (a *app) solveService() *service.SolveService {
	validator := validation.NewFromConfig(a.cfg, a.logger)
	return service.NewSolveService(database.DB, a.solves, a.scrambles, a.contests, a.resolver,
		a.sessions, validator, a.finishQueue, nil, a.logger)
}

func (a *app) provisioningService() *service.ProvisioningService {
	return service.NewProvisioningService(database.DB, a.contests, a.disciplines, a.scrambles,
		a.sessions, a.finishQueue, nil, a.logger)
}
