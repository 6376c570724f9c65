// Package services – ScrapeService
//
// This file implements the core scraping pipeline: for every configured
// category of one platform, walk the paginated listing to exhaustion, derive
// a stable identifier per item, fetch its detail payload, and upsert one
// record per (activity, day, platform).
//
// Failure containment is deliberate and asymmetric: a failed detail fetch
// skips that item only; a failed listing page aborts that category only
// (listing is sequential and unrecoverable mid-category); sibling categories
// always still run. Only context cancellation propagates out of a run.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/tbourn/go-activity-scraper/internal/domain"
	"github.com/tbourn/go-activity-scraper/internal/platform"
)

// DetailStore is the narrow persistence contract the pipeline writes
// through. Each Upsert is its own atomic unit; there is no transactional
// grouping across items.
type DetailStore interface {
	Upsert(ctx context.Context, rec domain.ActivityDetail) error
}

// ScrapeService runs the pipeline for one platform adapter. It is stateless
// across runs except for what the store persists, so re-running for the same
// day is safe and expected (cron-style operation): upserts replace payloads
// in place.
type ScrapeService struct {
	// Adapter is the platform being scraped.
	Adapter platform.Adapter
	// Store receives one record per successfully fetched detail.
	Store DetailStore

	// MaxPages caps the listing pages fetched per category (0 = unlimited).
	// It is an operator safety valve, never an error when hit.
	MaxPages int

	// Now stamps the date_key bucket; overridable in tests. Defaults to
	// time.Now.
	Now func() time.Time
}

// NewScrapeService constructs a ScrapeService for one adapter.
func NewScrapeService(adapter platform.Adapter, store DetailStore, maxPages int) *ScrapeService {
	return &ScrapeService{Adapter: adapter, Store: store, MaxPages: maxPages}
}

// Run walks every category sequentially, one outstanding request at a time.
// Per-item and per-page failures are logged and contained; Run only returns
// an error when no categories are configured or the context is cancelled.
func (s *ScrapeService) Run(ctx context.Context) error {
	cats := s.Adapter.Categories()
	if len(cats) == 0 {
		return ErrNoCategories
	}

	lg := log.With().Str("platform", s.Adapter.Name()).Logger()
	lg.Info().Int("categories", len(cats)).Int("max_pages", s.MaxPages).Msg("scrape run started")

	for _, cat := range cats {
		if err := s.scrapeCategory(ctx, lg, cat); err != nil {
			return err
		}
	}

	scrapeRuns.WithLabelValues(s.Adapter.Name()).Inc()
	scrapeLastRun.WithLabelValues(s.Adapter.Name()).SetToCurrentTime()
	lg.Info().Msg("scrape run finished")
	return nil
}

// scrapeCategory drives one category's listing to exhaustion. Pages advance
// in increasing index order (remote pagination state may depend on it) and
// the loop terminates on the first of: empty page, reported total reached,
// reported total-page count reached, page cap hit, or a failed listing call.
func (s *ScrapeService) scrapeCategory(ctx context.Context, lg zerolog.Logger, cat platform.Category) error {
	clg := lg.With().Str("category", cat.Tag).Logger()

	page := s.Adapter.FirstPage()
	pagesFetched := 0
	seen := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.MaxPages > 0 && pagesFetched >= s.MaxPages {
			clg.Info().Int("pages", pagesFetched).Msg("page cap reached")
			return nil
		}

		res, err := s.Adapter.ListPage(ctx, cat, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			scrapePages.WithLabelValues(s.Adapter.Name(), "error").Inc()
			clg.Error().Int("page", page).Err(err).Msg("list page failed")
			return nil
		}
		if !res.OK {
			scrapePages.WithLabelValues(s.Adapter.Name(), "rejected").Inc()
			clg.Error().Int("page", page).Int("code", res.Code).Msg("list page rejected")
			return nil
		}
		pagesFetched++
		scrapePages.WithLabelValues(s.Adapter.Name(), "ok").Inc()
		clg.Info().Int("page", page).Int("items", len(res.Items)).Msg("list page fetched")

		for _, item := range res.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := item.DetailID()
			if id == "" {
				// unprocessable, not an error
				continue
			}
			s.scrapeDetail(ctx, clg, cat, id)
		}
		seen += len(res.Items)

		switch {
		case len(res.Items) == 0:
			return nil
		case res.TotalPages > 0 && page >= res.TotalPages:
			return nil
		case res.Total > 0 && seen >= res.Total:
			return nil
		}
		page++
	}
}

// scrapeDetail fetches and persists one item. All failures are logged with
// the item id and contained; the caller moves on to the next item.
func (s *ScrapeService) scrapeDetail(ctx context.Context, lg zerolog.Logger, cat platform.Category, id string) {
	det, err := s.Adapter.FetchDetail(ctx, id)
	if err != nil {
		scrapeDetails.WithLabelValues(s.Adapter.Name(), "error").Inc()
		lg.Error().Str("activity_id", id).Err(err).Msg("detail fetch failed")
		return
	}
	if !det.OK {
		scrapeDetails.WithLabelValues(s.Adapter.Name(), "rejected").Inc()
		lg.Error().Str("activity_id", id).Int("code", det.Code).Msg("detail fetch rejected")
		return
	}

	rec := domain.ActivityDetail{
		ActivityID: id,
		DateKey:    s.today(),
		Platform:   s.Adapter.Name(),
		TypeTag:    cat.Tag,
		Payload:    datatypes.JSON(det.Payload),
	}
	if err := s.Store.Upsert(ctx, rec); err != nil {
		scrapeDetails.WithLabelValues(s.Adapter.Name(), "store_error").Inc()
		lg.Error().Str("activity_id", id).Err(err).Msg("detail upsert failed")
		return
	}
	scrapeDetails.WithLabelValues(s.Adapter.Name(), "stored").Inc()
	lg.Debug().Str("activity_id", id).Msg("detail stored")
}

// today returns the wall-clock calendar date bucket; the day boundary is
// fetch time, never an activity-intrinsic timestamp.
func (s *ScrapeService) today() string {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().Format("2006-01-02")
}
