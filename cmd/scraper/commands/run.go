package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/domain"
	"github.com/tbourn/go-activity-scraper/internal/observability"
	"github.com/tbourn/go-activity-scraper/internal/platform"
	"github.com/tbourn/go-activity-scraper/internal/repo"
	"github.com/tbourn/go-activity-scraper/internal/scheduler"
	"github.com/tbourn/go-activity-scraper/internal/services"
	"github.com/tbourn/go-activity-scraper/internal/sysutil"
	"github.com/tbourn/go-activity-scraper/internal/transport"
)

var (
	runOnce            bool
	runPlatform        string
	runIntervalMinutes int
	runMaxPages        int
	runTigaDomesticID  string
	runTigaOverseasID  string
	runGaiaCatalogs    string
)

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single scrape pass and exit")
	runCmd.Flags().StringVar(&runPlatform, "platform", "all", "platform to scrape: tiga, gaia, or all")
	runCmd.Flags().IntVar(&runIntervalMinutes, "interval-minutes", 0, "minutes between scrape passes (overrides SCHEDULE_INTERVAL_MINUTES)")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", -1, "cap on listing pages per category, 0 = unlimited (overrides MAX_PAGES)")
	runCmd.Flags().StringVar(&runTigaDomesticID, "tiga-domestic-id", "", "Tiga domestic category id (overrides TIGA_DOMESTIC_CATEGORY_ID)")
	runCmd.Flags().StringVar(&runTigaOverseasID, "tiga-overseas-id", "", "Tiga overseas category id (overrides TIGA_OVERSEAS_CATEGORY_ID)")
	runCmd.Flags().StringVar(&runGaiaCatalogs, "gaia-catalogs", "", "comma-separated Gaia catalog codes (overrides GAIA_CATALOGS)")
	rootCmd.AddCommand(runCmd)
}

// detailStore adapts the repository free functions to the narrow store
// interface the pipeline writes through.
type detailStore struct {
	db *gorm.DB
}

func (s detailStore) Upsert(ctx context.Context, rec domain.ActivityDetail) error {
	return repo.UpsertActivityDetail(ctx, s.db, rec)
}

var runCmd = &cobra.Command{
	Use:   "run [--once] [--platform tiga|gaia|all]",
	Short: "Runs the scrape pipelines, immediately and then on the configured interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyRunOverrides(cmd)

		shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}

		jobs, err := buildJobs(db)
		if err != nil {
			return err
		}

		sched := scheduler.New(cfg.Scrape.Interval, jobs...)
		if runOnce {
			sched.RunOnce(ctx)
			return nil
		}
		sched.Start(ctx)
		return nil
	},
}

// applyRunOverrides folds the run flags into the loaded config. Flags win
// over environment values; unset flags leave the config untouched.
func applyRunOverrides(cmd *cobra.Command) {
	if runIntervalMinutes > 0 {
		cfg.Scrape.Interval = time.Duration(runIntervalMinutes) * time.Minute
	}
	if cmd.Flags().Changed("max-pages") && runMaxPages >= 0 {
		cfg.Scrape.MaxPages = runMaxPages
	}
	cfg.Tiga.DomesticCategoryID = sysutil.FirstNonEmpty(runTigaDomesticID, cfg.Tiga.DomesticCategoryID)
	cfg.Tiga.OverseasCategoryID = sysutil.FirstNonEmpty(runTigaOverseasID, cfg.Tiga.OverseasCategoryID)
	if runGaiaCatalogs != "" {
		catalogs := make([]string, 0)
		for _, c := range strings.Split(runGaiaCatalogs, ",") {
			if c = strings.TrimSpace(c); c != "" {
				catalogs = append(catalogs, c)
			}
		}
		cfg.Gaia.Catalogs = catalogs
	}
}

// buildJobs assembles one scheduler job per selected, fully configured
// platform. A platform named explicitly via --platform must be configured;
// under "all", unconfigured platforms are skipped with a warning as long as
// at least one remains.
func buildJobs(db *gorm.DB) ([]scheduler.Job, error) {
	want := strings.ToLower(strings.TrimSpace(runPlatform))
	switch want {
	case "tiga", "gaia", "all":
	default:
		return nil, fmt.Errorf("unknown platform %q (want tiga, gaia, or all)", runPlatform)
	}

	store := detailStore{db: db}
	var jobs []scheduler.Job

	if want == "tiga" || want == "all" {
		if err := validateTiga(cfg.Tiga); err != nil {
			if want == "tiga" {
				return nil, err
			}
			log.Warn().Err(err).Msg("skipping tiga")
		} else {
			adapter := platform.NewTiga(cfg.Tiga, transport.New(clientOptions(
				cfg.Tiga.BaseURL, cfg.Tiga.UserAgent, cfg.Tiga.AcceptLanguage, platform.TigaHeaders)))
			svc := services.NewScrapeService(adapter, store, cfg.Scrape.MaxPages)
			jobs = append(jobs, scheduler.Job{Name: adapter.Name(), Run: svc.Run})
		}
	}

	if want == "gaia" || want == "all" {
		if err := validateGaia(cfg.Gaia); err != nil {
			if want == "gaia" {
				return nil, err
			}
			log.Warn().Err(err).Msg("skipping gaia")
		} else {
			adapter := platform.NewGaia(cfg.Gaia, transport.New(clientOptions(
				cfg.Gaia.BaseURL, cfg.Gaia.UserAgent, cfg.Gaia.AcceptLanguage, platform.GaiaHeaders)))
			svc := services.NewScrapeService(adapter, store, cfg.Scrape.MaxPages)
			jobs = append(jobs, scheduler.Job{Name: adapter.Name(), Run: svc.Run})
		}
	}

	if len(jobs) == 0 {
		return nil, errors.New("no platform is configured; set the TIGA_*/GAIA_* environment or pass the category flags")
	}
	return jobs, nil
}

func clientOptions(baseURL, userAgent, acceptLanguage string, headers map[string]string) transport.Options {
	return transport.Options{
		BaseURL:        baseURL,
		UserAgent:      userAgent,
		AcceptLanguage: acceptLanguage,
		Headers:        headers,
		Timeout:        cfg.Scrape.Timeout,
		RetryTotal:     cfg.Scrape.RetryTotal,
		RetryBackoff:   cfg.Scrape.RetryBackoff,
		DelayMin:       cfg.Scrape.DelayMin,
		DelayMax:       cfg.Scrape.DelayMax,
	}
}

func validateTiga(c config.TigaConfig) error {
	if c.BaseURL == "" {
		return errors.New("TIGA_BASE_URL is not set")
	}
	if c.DomesticCategoryID == "" && c.OverseasCategoryID == "" {
		return errors.New("no Tiga category id configured")
	}
	return nil
}

func validateGaia(c config.GaiaConfig) error {
	if c.BaseURL == "" {
		return errors.New("GAIA_BASE_URL is not set")
	}
	if len(c.Catalogs) == 0 {
		return errors.New("no Gaia catalog configured")
	}
	return nil
}
