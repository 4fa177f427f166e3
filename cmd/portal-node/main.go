// Package main is the entrypoint for portal-node.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/morezero/portal-node/internal/config"
	"github.com/morezero/portal-node/internal/server"
	"github.com/morezero/portal-node/pkg/db"
)

// buildCommit is set with -ldflags "-X main.buildCommit=...".
var buildCommit = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal-node",
		Short: "Portal network node JSON-RPC gateway",
		Long: `portal-node serves the portal JSON-RPC API over HTTP and NATS, validates
every request and routes it to the overlay, history or state actor.

Environment: DATABASE_URL (optional; peers stay in memory without it),
MIGRATION_PATH, HTTP_ADDR, NATS_ENABLED, NATS_URL, NODE_KEY. See README.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the node (default)",
			RunE:  runServe,
		},
		newMigrateCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the client version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printVersion(cmd.OutOrStdout())
			},
		},
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the peer record schema",
	}
	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run database migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					migrations, err := db.LoadMigrationFiles(afero.NewOsFs(), cfg.MigrationPath)
					if err != nil {
						return fmt.Errorf("load migrations: %w", err)
					}
					if err := db.RunMigrations(ctx, pool, migrations); err != nil {
						return fmt.Errorf("run migrations: %w", err)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
					return db.MigrationStatus(ctx, pool, afero.NewOsFs(), cfg.MigrationPath, cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back (not supported; migrations are forward-only)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return db.MigrationDown(cmd.Context(), nil, cmd.OutOrStdout())
			},
		},
	)
	return migrate
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg, cmd.ErrOrStderr())
}

func printVersion(w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	v, err := cfg.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "portal-node %s (commit %s)\n", v, buildCommit)
	return nil
}
