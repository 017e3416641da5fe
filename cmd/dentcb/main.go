// Package main provides the dentcb CLI and API server entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Pablo751/dentcb/internal/config"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/storage"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile    string
	envFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "dentcb",
	Short: "Answer dental questions from the Dentaly page catalog",
	Long: `dentcb answers questions about dental care using the per-country catalog
of Dentaly pages. It picks the most relevant page for a question and writes an
answer from that page, citing its URL.

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine.
		_ = godotenv.Load(envFile)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := cfg.Observability.LogFormat
		if outputJSON {
			logFormat = "json"
		}
		logLevel := cfg.Observability.LogLevel
		if verbose {
			logLevel = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: cfg.Observability.ServiceName,
		})
		ui = NewUI(outputJSON, noColor)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the query audit table",
		Long: `Create the query_log table in the configured database (sqlite or postgres).
Running it again is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			db, err := storage.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			logger.Info().Str("driver", cfg.Database.Driver).Msg("Running migrations")

			repo := storage.NewQueryLogRepository(db, cfg.Database.Driver)
			if err := repo.Migrate(ctx); err != nil {
				return err
			}

			ui.Success("Migrations applied on %s", cfg.Database.Driver)
			return nil
		},
	}
}

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent audited questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			db, err := storage.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			recs, err := storage.NewQueryLogRepository(db, cfg.Database.Driver).Recent(ctx, limit)
			if err != nil {
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(recs)
			}

			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				rows = append(rows, []string{
					rec.CreatedAt.Local().Format("2006-01-02 15:04"),
					string(rec.Country),
					truncate(rec.Question, 40),
					string(rec.Outcome),
					truncate(rec.ChosenURL, 50),
					FormatDuration(rec.Latency),
				})
			}
			ui.Table([]string{"When", "Country", "Question", "Outcome", "Chosen URL", "Latency"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.Encode(map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
				return
			}
			fmt.Printf("dentcb v%s\n", version)
		},
	}
}

// parseCountryFlag converts an optional --country value.
func parseCountryFlag(value string) (domain.Country, error) {
	if value == "" {
		return "", nil
	}
	c, ok := locale.ParseCountry(value)
	if !ok {
		return "", domain.ValidationError(fmt.Sprintf("unknown country %q", value), nil)
	}
	return c, nil
}

// splitKeywords parses a comma separated keyword flag.
func splitKeywords(value string) []string {
	var out []string
	for _, kw := range strings.Split(value, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
