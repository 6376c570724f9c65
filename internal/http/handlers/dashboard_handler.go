// Package handlers provides the HTTP handler implementations for the
// dashboard API.
//
// This file implements the read-only dashboard endpoints: per-platform daily
// boards with projected metrics, single-activity lookups, per-platform
// multi-day trend series, and the cross-platform summary. Handlers never
// write to the store; the scrape pipeline is the only writer.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-activity-scraper/internal/domain"
	"github.com/tbourn/go-activity-scraper/internal/repo"
	"github.com/tbourn/go-activity-scraper/internal/utils"
)

// dateLayout is the calendar-day bucket format used across the store.
const dateLayout = "2006-01-02"

// Handler carries the dashboard's dependencies. All endpoints read directly
// through the repo layer; there is no intermediate service because the
// dashboard adds no business rules beyond input validation.
type Handler struct {
	DB *gorm.DB
}

// New constructs the dashboard Handler.
func New(db *gorm.DB) *Handler {
	return &Handler{DB: db}
}

// Summary handles GET /api/v1/summary. It reports record counts per
// (platform, day) for the most recent days present in the store plus a
// freshness timestamp.
//
// Query parameters:
//   - days: how many recent days to include (default 7)
func (h *Handler) Summary(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), 7)
	if days < 1 || days > 90 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "days must be in [1,90]")
		return
	}

	rows, err := repo.PlatformSummary(c.Request.Context(), h.DB, days)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "summary query failed")
		return
	}
	last, err := repo.MaxUpdatedAt(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "summary query failed")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"generated_at":    time.Now().UTC(),
		"last_updated_at": last,
		"days":            days,
		"rows":            rows,
	})
}

// TigaActivities handles GET /api/v1/tiga/activities: the Tiga daily board
// with engagement metrics projected out of the stored payloads.
//
// Query parameters:
//   - date:  day bucket, YYYY-MM-DD (default today)
//   - q:     case-insensitive title substring filter
//   - type:  domestic | overseas | all (default all)
//   - sort:  whitelisted metric key (default collect_count)
//   - order: asc | desc (default desc)
//   - limit: max rows (server-capped)
func (h *Handler) TigaActivities(c *gin.Context) {
	f, ok2 := h.boardFilters(c, "collect_count")
	if !ok2 {
		return
	}
	rows, err := repo.TigaBoard(c.Request.Context(), h.DB, f)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "board query failed")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"date":  f.DateKey,
		"count": len(rows),
		"rows":  rows,
	})
}

// GaiaActivities handles GET /api/v1/gaia/activities: the Gaia daily board
// with price and capacity metrics projected out of the composite payloads.
// Query parameters mirror TigaActivities, with `type` filtering by catalog
// code and sort defaulting to detail.minPrice.
func (h *Handler) GaiaActivities(c *gin.Context) {
	f, ok2 := h.boardFilters(c, "detail.minPrice")
	if !ok2 {
		return
	}
	rows, err := repo.GaiaBoard(c.Request.Context(), h.DB, f)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "board query failed")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"date":  f.DateKey,
		"count": len(rows),
		"rows":  rows,
	})
}

// activityResponse is the single-record view returned by the per-platform
// lookups: the natural key, bookkeeping timestamps, and the payload verbatim.
type activityResponse struct {
	ActivityID string          `json:"activity_id"`
	DateKey    string          `json:"date_key"`
	Platform   string          `json:"platform"`
	TypeTag    string          `json:"type_tag"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TigaActivity handles GET /api/v1/tiga/activities/:id. It returns one
// stored record, payload included, for the given activity and day.
//
// Query parameters:
//   - date: day bucket, YYYY-MM-DD (default today)
func (h *Handler) TigaActivity(c *gin.Context) {
	h.activityByID(c, domain.PlatformTiga)
}

// GaiaActivity handles GET /api/v1/gaia/activities/:id, the Gaia counterpart
// of TigaActivity.
func (h *Handler) GaiaActivity(c *gin.Context) {
	h.activityByID(c, domain.PlatformGaia)
}

// activityByID looks up one record by (id, date, platform) and renders it.
func (h *Handler) activityByID(c *gin.Context, platform string) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "activity id is required")
		return
	}
	dateKey, err := parseDate(c.Query("date"), today())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := repo.GetActivityDetail(c.Request.Context(), h.DB, id, dateKey, platform)
	if err == repo.ErrNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "activity not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "lookup failed")
		return
	}

	ok(c, http.StatusOK, activityResponse{
		ActivityID: rec.ActivityID,
		DateKey:    rec.DateKey,
		Platform:   rec.Platform,
		TypeTag:    rec.TypeTag,
		Payload:    json.RawMessage(rec.Payload),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	})
}

// tigaTrendSeries is one Tiga activity's day-by-day engagement points within
// the requested window. Days the activity was not captured are simply absent.
type tigaTrendSeries struct {
	ActivityID string         `json:"activity_id"`
	Title      string         `json:"title"`
	Points     []repo.TigaRow `json:"points"`
}

// gaiaTrendSeries is the Gaia counterpart with price/capacity points.
type gaiaTrendSeries struct {
	ActivityID string         `json:"activity_id"`
	Title      string         `json:"title"`
	Points     []repo.GaiaRow `json:"points"`
}

// TigaTrends handles GET /api/v1/tiga/trends: per-activity metric series
// over an inclusive date window, for charting engagement movement.
//
// Query parameters:
//   - start: window start, YYYY-MM-DD (default 6 days before end)
//   - end:   window end, YYYY-MM-DD (default today)
//   - id:    narrow to one activity
func (h *Handler) TigaTrends(c *gin.Context) {
	start, end, ok2 := h.trendWindow(c)
	if !ok2 {
		return
	}

	rows, err := repo.TigaTrends(c.Request.Context(), h.DB, start, end, strings.TrimSpace(c.Query("id")))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "trends query failed")
		return
	}

	// Rows arrive ordered by (activity_id, date_key); fold them into series.
	series := make([]tigaTrendSeries, 0)
	for _, row := range rows {
		if n := len(series); n == 0 || series[n-1].ActivityID != row.ActivityID {
			series = append(series, tigaTrendSeries{ActivityID: row.ActivityID})
		}
		s := &series[len(series)-1]
		s.Points = append(s.Points, row)
		if row.Title != "" {
			// latest non-empty title wins
			s.Title = row.Title
		}
	}

	ok(c, http.StatusOK, gin.H{
		"start":  start,
		"end":    end,
		"count":  len(series),
		"series": series,
	})
}

// GaiaTrends handles GET /api/v1/gaia/trends, the Gaia counterpart of
// TigaTrends.
func (h *Handler) GaiaTrends(c *gin.Context) {
	start, end, ok2 := h.trendWindow(c)
	if !ok2 {
		return
	}

	rows, err := repo.GaiaTrends(c.Request.Context(), h.DB, start, end, strings.TrimSpace(c.Query("id")))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, "trends query failed")
		return
	}

	series := make([]gaiaTrendSeries, 0)
	for _, row := range rows {
		if n := len(series); n == 0 || series[n-1].ActivityID != row.ActivityID {
			series = append(series, gaiaTrendSeries{ActivityID: row.ActivityID})
		}
		s := &series[len(series)-1]
		s.Points = append(s.Points, row)
		if row.Title != "" {
			s.Title = row.Title
		}
	}

	ok(c, http.StatusOK, gin.H{
		"start":  start,
		"end":    end,
		"count":  len(series),
		"series": series,
	})
}

// trendWindow parses the inclusive date window shared by both trend views.
// On invalid input it writes the error response itself and returns false.
func (h *Handler) trendWindow(c *gin.Context) (string, string, bool) {
	end, err := parseDate(c.Query("end"), today())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end must be YYYY-MM-DD")
		return "", "", false
	}
	endT, _ := time.Parse(dateLayout, end)
	start, err := parseDate(c.Query("start"), endT.AddDate(0, 0, -6).Format(dateLayout))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start must be YYYY-MM-DD")
		return "", "", false
	}
	if start > end {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start must not be after end")
		return "", "", false
	}
	return start, end, true
}

// boardFilters parses the query parameters shared by both daily boards. On
// invalid input it writes the error response itself and returns false.
func (h *Handler) boardFilters(c *gin.Context, defaultSort string) (repo.BoardFilters, bool) {
	dateKey, err := parseDate(c.Query("date"), today())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return repo.BoardFilters{}, false
	}

	sort := strings.TrimSpace(c.Query("sort"))
	if sort == "" {
		sort = defaultSort
	}
	order := strings.ToLower(strings.TrimSpace(c.DefaultQuery("order", "desc")))
	if order != "asc" && order != "desc" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order must be asc or desc")
		return repo.BoardFilters{}, false
	}

	return repo.BoardFilters{
		DateKey: dateKey,
		Query:   strings.TrimSpace(c.Query("q")),
		TypeTag: strings.TrimSpace(c.Query("type")),
		Sort:    sort,
		Desc:    order == "desc",
		Limit:   utils.AtoiDefault(c.Query("limit"), 0),
	}, true
}

// parseDate validates a YYYY-MM-DD value, substituting def when empty.
func parseDate(s, def string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", err
	}
	return s, nil
}

// today returns the current calendar day bucket.
func today() string { return time.Now().Format(dateLayout) }
