package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/config"
	"github.com/garyjia/people-workflow/internal/container"
	httpapi "github.com/garyjia/people-workflow/internal/interfaces/http"
	"github.com/garyjia/people-workflow/internal/templates"
	"github.com/garyjia/people-workflow/pkg/utils"
)

var version = "1.0.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "people-workflow",
		Short:   "Workflow engine for people, asset and document lifecycles",
		Version: version,
		// errors are logged by the subcommands
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the YAML config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSeedCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("WORKFLOW_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return "configs/config.yaml"
	}
	return ""
}

// bootstrap loads configuration and builds the logger
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			httpapi.Version = version
			logger.Info("Starting people workflow service",
				zap.String("version", version),
				zap.String("addr", cfg.Server.Addr()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Error("Container shutdown failed", zap.Error(err))
				}
			}()

			if err := c.Start(ctx); err != nil {
				logger.Error("Failed to start container", zap.Error(err))
				return err
			}
			if err := c.StartSubscriber(); err != nil {
				logger.Error("Failed to start event subscriber", zap.Error(err))
				return err
			}

			srv, err := c.HTTPServer()
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				logger.Error("HTTP server stopped with error", zap.Error(err))
				return err
			}

			logger.Info("Shutdown complete")
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if dir != "" {
				cfg.Database.MigrationsDir = dir
			}
			db, err := container.ProvideDatabase(cmd.Context(), cfg.Database, logger)
			if err != nil {
				logger.Error("Migration failed", zap.Error(err))
				return err
			}
			defer db.DB.Close()

			logger.Info("Database is up to date", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Apply migrations from this directory instead of the bundled schema")
	return cmd
}

func newSeedCommand() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>...",
		Short: "Create templates from YAML definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// seeding needs no event bus
			cfg.NATS.URL = ""

			c, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Start(ctx); err != nil {
				return err
			}

			importer := c.Services().Importer
			total := 0
			for _, path := range args {
				defs, err := templates.LoadFile(path)
				if err != nil {
					logger.Error("Failed to load templates", zap.String("file", path), zap.Error(err))
					return err
				}
				created, err := importer.Import(ctx, defs, orgID)
				total += len(created)
				if err != nil {
					logger.Error("Failed to import templates", zap.String("file", path), zap.Error(err))
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d templates\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Create every template in this organization")
	return cmd
}
