// =============================================================================
// shopinvoice - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (shopinvoice)
//   ├── syncCmd     (shopinvoice sync)
//   ├── generateCmd (shopinvoice generate)
//   ├── verifyCmd   (shopinvoice verify)
//   └── versionCmd  (shopinvoice version)
//
// CONFIGURATION:
//   Settings are resolved in this order, later wins:
//   1. Built-in defaults
//   2. The YAML config file (--config, default shopinvoice.yaml)
//   3. SHOPINVOICE_* environment variables
//   4. Command-line flags
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopinvoice/shopinvoice/internal/config"
	"github.com/shopinvoice/shopinvoice/internal/logging"
	"github.com/shopinvoice/shopinvoice/internal/storage"
	"github.com/shopinvoice/shopinvoice/internal/types"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose switches logging from warnings to progress messages.
var verbose bool

// Shop credentials given on the command line.
var (
	storeName  string
	apiKey     string
	apiPass    string
	apiVersion string
)

// mainConfig and logger are set up before any subcommand runs.
var (
	mainConfig *config.MainConfig
	logger     *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "shopinvoice",
	Short: "Shopify order database and Tripletex invoice export",
	Long: `shopinvoice keeps a PostgreSQL copy of a Shopify store's customers, products,
orders, transactions and refunds, and turns the stored orders into an invoice
import file for Tripletex.

Every generated invoice file is validated before it is written. Problems are
logged as warnings and listed in a review report next to the export; the file
is written regardless so it can be corrected by hand.

Example Usage:
  shopinvoice sync --from-date 2021-05-01 --to-date 2021-05-31
  shopinvoice generate 2021-05-01 2021-05-31 10001 -g stripe:Stripe -g vipps:Vipps
  shopinvoice verify invoices/lillesky_tripletex_2021-05-01_2021-05-31.csv -g stripe:Stripe`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main(). An interrupt
// cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the main configuration file (default is "+config.DefaultConfigFile+")",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Log progress messages, not only warnings",
	)

	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "Your store's name (the myshopify.com subdomain)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", "", "Your app's API key")
	rootCmd.PersistentFlags().StringVar(&apiPass, "password", "", "Your app's API password")
	rootCmd.PersistentFlags().StringVar(&apiVersion, "api-version", "", "Shopify API version (default 2021-04)")
}

// initConfig loads the configuration, applies flag overrides and creates the
// logger.
func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = storeName
	}
	if flags.Changed("key") {
		cfg.Shopify.Key = apiKey
	}
	if flags.Changed("password") {
		cfg.Shopify.Password = apiPass
	}
	if flags.Changed("api-version") {
		cfg.Shopify.APIVersion = apiVersion
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mainConfig = cfg
	logger = logging.New(os.Stderr, cfg.Store, verbose)
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// parseDate parses a yyyy-mm-dd command-line date. An empty value gives the
// zero time.
func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(types.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must have the format yyyy-mm-dd, got %q", name, value)
	}
	return t, nil
}

// openStore connects to the database and brings the schema up to date. The
// returned function closes the connection.
func openStore(ctx context.Context) (*storage.Store, func(), error) {
	if err := mainConfig.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	db, err := storage.NewPostgresDB(mainConfig.Database, verbose)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := storage.Close(db); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}

	if err := storage.Migrate(ctx, db, logger); err != nil {
		closeDB()
		return nil, nil, err
	}
	return storage.NewStore(db), closeDB, nil
}
