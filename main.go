package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgazza/octopus-insights/internal/api"
	"github.com/mgazza/octopus-insights/internal/config"
	"github.com/mgazza/octopus-insights/internal/logging"
	"github.com/mgazza/octopus-insights/internal/report"
	"github.com/mgazza/octopus-insights/pkg/consumption"
)

var (
	cfgFile string
	verbose bool

	apiKey    string
	accountID string
	cacheDir  string
	outFile   string
	format    string
	style     string
	date      string
	refresh   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "octopus-insights",
	Short: "Price and summarise Octopus Energy electricity consumption",
	Long: `octopus-insights reads half-hourly consumption from the Octopus Energy API,
prices it against the account's tariff and summarises each day, week, month
or year.

Examples:
  octopus-insights report --style week-seven-days --date 2024-03-13
  octopus-insights report --format json --out -
  octopus-insights tariff E-1R-AGILE-FLEX-22-11-25-A
  octopus-insights serve`,
	SilenceUsage: true,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the report for one period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := cfg.RequireAccount(); err != nil {
			return err
		}
		presentation, err := consumption.ParseStyle(cfg.Report.Style)
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		reference, err := parseDate(date, loc)
		if err != nil {
			return err
		}

		app, err := NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Run(cmd.Context(), presentation, reference)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve insights over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := cfg.RequireAccount(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		server := api.New(app,
			api.WithLogger(logger),
			api.WithHost(cfg.Server.Host),
			api.WithPort(cfg.Server.Port),
			api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			api.WithLocation(app.Location),
		)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return <-errCh
	},
}

var tariffCmd = &cobra.Command{
	Use:   "tariff <code>",
	Short: "Describe a tariff and its current unit rate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		app, err := NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if refresh {
			if err := app.PurgeRates(cmd.Context(), args[0]); err != nil {
				return err
			}
		}

		summary, err := app.Tariff(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cfg.Report.Format
		if out == "csv" {
			out = report.FormatJSON
		}
		return report.Write(cmd.OutOrStdout(), out, summary)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "apikey", "", "Octopus API key")
	rootCmd.PersistentFlags().StringVar(&accountID, "accountID", "", "Octopus Account ID")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "Directory for HTTP cache ('disable' to disable, empty for temporary directory)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "Output format: csv, json or yaml")

	reportCmd.Flags().StringVar(&outFile, "out", "", "Output file ('-' for stdout)")
	reportCmd.Flags().StringVar(&style, "style", "", "Presentation style, e.g. day-half-hourly or month-weeks")
	reportCmd.Flags().StringVar(&date, "date", "", "Date inside the period (YYYY-MM-DD, default: latest reading)")

	tariffCmd.Flags().BoolVar(&refresh, "refresh", false, "drop stored rates for the tariff before fetching")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tariffCmd)
}

// setup loads and validates the configuration with flag overrides applied,
// and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("apikey") {
		cfg.Octopus.APIKey = apiKey
	}
	if flags.Changed("accountID") {
		cfg.Octopus.AccountID = accountID
	}
	if flags.Changed("cache") {
		cfg.Cache.Dir = cacheDir
	}
	if flags.Changed("format") {
		cfg.Report.Format = format
	}
	if flags.Changed("out") {
		cfg.Report.Output = outFile
	}
	if flags.Changed("style") {
		cfg.Report.Style = style
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// parseDate reads a YYYY-MM-DD date in loc. An empty value is the zero time.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
