// Package cli implements the unitctl command line: template download,
// dry-run validation and imports of unit registry files.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/condoreg/internal/config"
	"github.com/JonMunkholm/condoreg/internal/core"
	"github.com/JonMunkholm/condoreg/internal/database"
	"github.com/JonMunkholm/condoreg/internal/logging"
)

// ServiceOpener builds the import service for a command. requireStore
// demands a database-backed store; otherwise a store is attached only when
// a database is configured. The returned func releases its resources.
type ServiceOpener func(ctx context.Context, cfg *config.Config, requireStore bool) (*core.Service, func(), error)

// errNoDatabase is returned by import when no database is configured.
var errNoDatabase = errors.New("DATABASE_URL is required for import")

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfg      *config.Config
	open     ServiceOpener
	logLevel string
}

// NewRootCmd returns the unitctl command tree backed by Postgres.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openPostgres)
}

func newRootCmd(open ServiceOpener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "unitctl",
		Short: "Validate and import condominium unit registries",
		Long: `unitctl reads CSV or XLSX unit registry files, reports every problem
in one pass and commits clean files to the registry database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; the environment is used as is.
			_ = godotenv.Load()

			cfg, err := config.LoadOffline()
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.Logging.Level
			if a.logLevel != "" {
				level = a.logLevel
			}
			logging.SetupWriter(cmd.ErrOrStderr(), level, cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")

	root.AddCommand(
		newTemplateCmd(),
		newValidateCmd(a),
		newImportCmd(a),
	)
	return root
}

// openPostgres attaches a PostgresStore when a database is configured.
func openPostgres(ctx context.Context, cfg *config.Config, requireStore bool) (*core.Service, func(), error) {
	opts := core.ServiceOptionsFromConfig(cfg.Import)

	if !cfg.HasDatabase() {
		if requireStore {
			return nil, nil, errNoDatabase
		}
		return core.NewService(nil, opts), func() {}, nil
	}

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	store := core.NewPostgresStore(pool)
	return core.NewService(store, opts).WithHistory(store), pool.Close, nil
}
