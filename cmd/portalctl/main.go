// Command portalctl is the operator CLI for the patient portal.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/patient-portal/cmd/mainconfig"
	"github.com/wolfman30/patient-portal/internal/app/bootstrap"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var (
	// Global flags
	verbose bool
	asJSON  bool

	cfg    *appconfig.Config
	logger *logging.Logger
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	app    *bootstrap.App
)

var rootCmd = &cobra.Command{
	Use:   "portalctl",
	Short: "Operate the clinic patient portal",
	Long: `portalctl runs portal operations from a terminal: resolve a patient,
inspect appointments, talk to the assistant as a patient, and read the
message audit trail.

Configuration comes from the same environment variables as the API server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		_ = godotenv.Load()
		cfg = appconfig.Load()

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger = logging.NewWithWriter(level, os.Stderr)

		ctx := cmd.Context()
		if cfg.DatabaseURL != "" {
			var err error
			pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			sqlDB = stdlib.OpenDBFromPool(pool)
		}

		var awsCfg *aws.Config
		if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
			awsCfg = &loaded
		}

		var err error
		app, err = bootstrap.BuildPortal(ctx, cfg, bootstrap.Infra{
			Pool:  pool,
			SQLDB: sqlDB,
			Redis: bootstrap.BuildRedisClient(ctx, cfg, logger, true),
			AWS:   awsCfg,
		}, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		if pool != nil {
			pool.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(appointmentsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
