// Package commands defines the scraper CLI: a `run` command that drives the
// scrape pipelines on a schedule and a `serve` command that exposes the
// read-only dashboard over the same store. Shared bootstrap (dotenv, config,
// logging) happens once in the root command's PersistentPreRunE.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/sysutil"
)

// version is stamped into traces; override via -ldflags "-X ...commands.version=".
var version = "dev"

// cfg is the loaded configuration, shared by all subcommands.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "scraper",
	Short:         "scraper collects travel-activity data from Tiga and Gaia and serves a read-only dashboard over it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is a dev convenience; absence is not an error.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		sysutil.SetLogLevel(cfg.LogLevel)
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		if cfg.LogPretty {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		return nil
	},
}

// ExecuteContext runs the CLI and exits non-zero on any error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
