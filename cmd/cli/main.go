package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/cmd/cli/commands"
	"github.com/jakechorley/shiftsync/internal/config"
	"github.com/jakechorley/shiftsync/pkg/clients/shiftsclient"
	"github.com/jakechorley/shiftsync/pkg/postgres"
	"github.com/jakechorley/shiftsync/pkg/utils/logging"
)

var (
	env string
	app *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shiftsync",
		Short: "shiftsync - batch shift booking against an upstream shifts API",
		Long:  `A service that accepts batches of shift bookings, fans them out against an upstream shifts API with retries, and tracks per-shift progress in PostgreSQL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.Postgres != nil {
					app.Postgres.Close()
				}
				if app.Logger != nil {
					app.Logger.Sync()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.ServeCmd(appRef()))
	rootCmd.AddCommand(commands.MigrateCmd(appRef()))
	rootCmd.AddCommand(commands.SubmitCmd(appRef()))
	rootCmd.AddCommand(commands.StatusCmd(appRef()))
	rootCmd.AddCommand(commands.ListRequestsCmd(appRef()))
	rootCmd.AddCommand(commands.TestBookCmd(appRef()))
	rootCmd.AddCommand(commands.InteractiveCmd(appRef()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appRef returns the shared AppContext, allocated up front so command
// constructors can capture it before initApp fills it in.
func appRef() *commands.AppContext {
	if app == nil {
		app = &commands.AppContext{
			Ctx: context.Background(),
		}
	}
	return app
}

// initApp sets up logger, config, upstream client, and database
func initApp() error {
	var err error
	app = appRef()

	app.Logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	app.Logger.Info("Initializing upstream shifts client", zap.String("base_url", app.Cfg.UpstreamBaseURL))
	app.Client = shiftsclient.NewClient(app.Cfg.UpstreamBaseURL, app.Cfg.UpstreamTimeout())

	app.Logger.Info("Connecting to database")
	app.Postgres, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.Database = app.Postgres
	app.Logger.Info("Database connection established")

	return nil
}
