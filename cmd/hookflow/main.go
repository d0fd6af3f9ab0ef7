// Command hookflow runs the trigger dispatch and execution orchestrator
// backend: the "serve" subcommand starts the HTTP server described by
// spec.md §6, and "migrate" applies the Postgres schema migrations ahead
// of a deploy, mirroring the teacher cli's build-then-run command split.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/client"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/monitoring"
	"github.com/hookflow/hookflow/engine/infra/postgres"
	"github.com/hookflow/hookflow/engine/infra/server"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/lifecycle"
	"github.com/hookflow/hookflow/engine/runtime"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/pkg/config"
	"github.com/hookflow/hookflow/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "hookflow",
		Short: "Workflow trigger dispatch and execution orchestrator",
	}
	root.PersistentFlags().String("config", "", "path to a YAML config overlay")
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	mgr := config.NewManager(nil)
	return mgr.Load(cmd.Context(), config.NewDefaultProvider(), config.NewYAMLProvider(path), config.NewEnvProvider())
}

func rootContext(cfg *config.Config) context.Context {
	log := logger.NewLogger(nil)
	ctx := logger.ContextWithLogger(context.Background(), log)
	ctx = config.ContextWithConfig(ctx, cfg)
	return ctx
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := rootContext(cfg)
			return postgres.ApplyMigrationsWithLock(ctx, cfg.Postgres.DSN)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := rootContext(cfg)
			srv, stop, err := buildServer(ctx, cfg)
			if err != nil {
				return err
			}
			defer stop()
			return srv.Run()
		},
	}
}

// buildServer wires every collaborator described in SPEC_FULL.md's
// component table into one *server.Server, following the teacher's
// lifecycle.go shape for the HTTP listener itself while doing the
// dependency construction inline, since this core has no DI container to
// mirror.
func buildServer(ctx context.Context, cfg *config.Config) (*server.Server, func(), error) {
	store, err := postgres.NewStore(ctx, &postgres.Config{
		ConnString:      cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	triggers := postgres.NewTriggerRepository(store)
	providers := postgres.NewProviderRepository(store)
	workflows := postgres.NewWorkflowRepository(store)
	runtimes := postgres.NewRuntimeRepository(store)
	history := postgres.NewExecutionRepository(store)
	schedulerStore := postgres.NewSchedulerRepository(store)

	secrets, err := secretbox.NewBox(cfg.Secret.EncryptionKey)
	if err != nil {
		store.Close(ctx) //nolint:errcheck
		return nil, nil, fmt.Errorf("build secretbox: %w", err)
	}

	backend, err := runtime.NewBackend(cfg)
	if err != nil {
		store.Close(ctx) //nolint:errcheck
		return nil, nil, fmt.Errorf("build runtime backend: %w", err)
	}
	resolver, resolverCleanup, err := buildImageResolver(cfg)
	if err != nil {
		store.Close(ctx) //nolint:errcheck
		return nil, nil, err
	}

	signer := execution.NewJWTSigner(cfg.Workflow.JWTSecret, cfg.Workflow.JWTExpiration)
	dispatcher := execution.NewDispatcher(
		history, workflows, providers, runtimes, backend, resolver, signer, secrets, cfg.PublicAPIURL,
	)

	metrics := monitoring.New()

	sched := scheduler.New(schedulerStore, lifecycle.NewCronExecuteFunc(triggers, history, dispatcher))
	sched.SetMisfireHook(metrics.RecordMisfire)

	mgr := lifecycle.New(triggers, providers, workflows, sched, secrets, cfg.PublicAPIURL)

	state := &appstate.State{
		Triggers:   triggers,
		Providers:  providers,
		Workflows:  workflows,
		Runtimes:   runtimes,
		History:    history,
		Scheduler:  sched,
		Lifecycle:  mgr,
		Dispatcher: dispatcher,
		Signer:     signer,
		Secrets:    secrets,
		Metrics:    metrics,
		PublicURL:  cfg.PublicAPIURL,
	}

	srv := server.New(ctx, state)

	if err := restoreScheduledJobs(ctx, sched); err != nil {
		store.Close(ctx) //nolint:errcheck
		return nil, nil, fmt.Errorf("restore scheduled jobs: %w", err)
	}
	sched.Start()

	srv.RegisterCleanup(func() {
		shutdownCtx := sched.Stop()
		<-shutdownCtx.Done()
	})
	srv.RegisterCleanup(resolverCleanup)
	srv.RegisterCleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.FromContext(ctx).Error("Failed to close postgres store", "error", err)
		}
	})

	return srv, func() { srv.Shutdown() }, nil
}

// buildImageResolver builds the Docker digest resolver for the container
// backend, or a no-op resolver for the function/pod backends, which invoke
// source code directly and have no image to resolve (engine/runtime's
// Backend implementations already encode this distinction; the resolver
// only needs a matching Docker client when cfg.Runtime.Type is docker).
func buildImageResolver(cfg *config.Config) (execution.ImageResolver, func(), error) {
	if cfg.Runtime.Type != config.RuntimeDocker {
		return execution.StaticImageResolver{}, func() {}, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, nil, fmt.Errorf("build docker client for image resolver: %w", err)
	}
	return runtime.NewDockerImageResolver(cli), func() { cli.Close() }, nil //nolint:errcheck
}

// restoreScheduledJobs reconciles every durable recurring task back onto
// the in-process cron (spec.md §4.6: scheduled jobs must resume across a
// process restart without a fresh Sync call).
func restoreScheduledJobs(ctx context.Context, sched *scheduler.Scheduler) error {
	jobs, err := sched.ListJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := sched.AddJob(ctx, job.ID, job.Schedule); err != nil {
			return fmt.Errorf("restore job %s: %w", job.ID, err)
		}
	}
	return nil
}
