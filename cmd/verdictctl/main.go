package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/lib/pq" // PostgreSQL driver

	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/pkg/bootstrap"
	"verdict/pkg/logging"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "verdictctl",
		Short: "Operator tooling for the compliance audit service",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(interpretRulesCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and connects to Postgres. Callers
// must invoke the returned cleanup when done.
func setup(ctx context.Context) (*config.Config, logger.Logger, *sql.DB, func(), error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, nil, nil, err
	}

	connector := bootstrap.NewDatabaseConnector(cfg, log)
	db, err := connector.InitPostgreSQL(ctx)
	if err != nil {
		log.Sync()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		db.Close()
		log.Sync()
	}
	return cfg, log, db, cleanup, nil
}
