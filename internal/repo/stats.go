// Package repo implements the data persistence layer for scraped activity
// details, backed by GORM. This file provides the read-only dashboard
// projections: JSON-path extractions over the opaque payload column. Each
// consumer declares the exact paths it expects; the payload schema itself is
// never validated by the scraper.
//
// Sort keys arriving from the HTTP layer are mapped through whitelists here;
// raw user input never reaches a SQL identifier.
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-activity-scraper/internal/domain"
)

// lowerLike lowercases a user query and escapes nothing further; the value is
// always bound as a parameter, never interpolated.
func lowerLike(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

// BoardFilters narrows a per-day dashboard listing.
//
// Query is matched case-insensitively against the platform's title path.
// TypeTag filters by the source category/catalog ("" or "all" disables).
// Sort must be one of the platform's whitelisted keys; unknown values fall
// back to the platform default. Desc orders descending when true.
type BoardFilters struct {
	DateKey string
	Query   string
	TypeTag string
	Sort    string
	Desc    bool
	Limit   int
}

const boardRowCap = 200

// TigaRow is one dashboard row projected from a Tiga payload.
type TigaRow struct {
	ActivityID         string   `json:"activity_id"`
	DateKey            string   `json:"date_key"`
	TypeTag            string   `json:"type_tag"`
	Title              string   `json:"title"`
	CollectCount       int64    `json:"collect_count"`
	TotalCommentCount  int64    `json:"total_comment_count"`
	TotalCommentAvg    *float64 `json:"total_comment_average"`
	OneWeekUV          int64    `json:"one_week_uv"`
	TwoMonthUV         int64    `json:"two_month_uv"`
	HistorySignupCount int64    `json:"history_signup_count"`
}

// tigaSortExprs whitelists the Tiga sort keys and their JSON-path SQL.
var tigaSortExprs = map[string]string{
	"collect_count":                    "COALESCE(CAST(json_extract(payload,'$.collect_count') AS REAL),0)",
	"total_comment.count":              "COALESCE(CAST(json_extract(payload,'$.total_comment.count') AS REAL),0)",
	"total_comment.average":            "CAST(json_extract(payload,'$.total_comment.average') AS REAL)",
	"activityType.one_week_uv":         "COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.one_week_uv') AS REAL),0)",
	"activityType.two_month_uv":        "COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.two_month_uv') AS REAL),0)",
	"activityType.history_signup_count": "COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.history_signup_count') AS REAL),0)",
}

const tigaProjection = `activity_id,
	       date_key,
	       type_tag,
	       COALESCE(json_extract(payload,'$.title'),'')                                   AS title,
	       COALESCE(CAST(json_extract(payload,'$.collect_count') AS INTEGER),0)           AS collect_count,
	       COALESCE(CAST(json_extract(payload,'$.total_comment.count') AS INTEGER),0)     AS total_comment_count,
	       CAST(json_extract(payload,'$.total_comment.average') AS REAL)                  AS total_comment_avg,
	       COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.one_week_uv') AS INTEGER),0)          AS one_week_uv,
	       COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.two_month_uv') AS INTEGER),0)         AS two_month_uv,
	       COALESCE(CAST(json_extract(payload,'$.activity_times.times[0].status.activityType.history_signup_count') AS INTEGER),0) AS history_signup_count`

// TigaBoard lists Tiga records for one day with engagement metrics projected
// out of the payload.
func TigaBoard(ctx context.Context, db *gorm.DB, f BoardFilters) ([]TigaRow, error) {
	sortExpr, ok := tigaSortExprs[f.Sort]
	if !ok {
		sortExpr = tigaSortExprs["collect_count"]
	}
	order := "ASC"
	if f.Desc {
		order = "DESC"
	}
	limit := f.Limit
	if limit <= 0 || limit > boardRowCap {
		limit = boardRowCap
	}

	where := "WHERE date_key = ? AND platform = ?"
	args := []any{f.DateKey, domain.PlatformTiga}
	if f.Query != "" {
		where += " AND LOWER(COALESCE(json_extract(payload,'$.title'),'')) LIKE ?"
		args = append(args, "%"+lowerLike(f.Query)+"%")
	}
	if f.TypeTag != "" && f.TypeTag != "all" {
		where += " AND type_tag = ?"
		args = append(args, f.TypeTag)
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM activity_details
		%s
		ORDER BY %s %s
		LIMIT %d`, tigaProjection, where, sortExpr, order, limit)

	var rows []TigaRow
	err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error
	return rows, err
}

// TigaTrends returns the per-day series for Tiga records between startDate
// and endDate inclusive, ordered by activity then day, optionally narrowed
// to one activity. Callers group the flat rows into series.
func TigaTrends(ctx context.Context, db *gorm.DB, startDate, endDate, activityID string) ([]TigaRow, error) {
	where := "WHERE date_key >= ? AND date_key <= ? AND platform = ?"
	args := []any{startDate, endDate, domain.PlatformTiga}
	if activityID != "" {
		where += " AND activity_id = ?"
		args = append(args, activityID)
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM activity_details
		%s
		ORDER BY activity_id ASC, date_key ASC`, tigaProjection, where)

	var rows []TigaRow
	err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error
	return rows, err
}

// GaiaRow is one dashboard row projected from a Gaia composite payload.
type GaiaRow struct {
	ActivityID  string  `json:"activity_id"`
	DateKey     string  `json:"date_key"`
	Catalog     string  `json:"catalog"`
	Title       string  `json:"title"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	MinSize     int64   `json:"min_size"`
	MaxSize     int64   `json:"max_size"`
	SurplusSize int64   `json:"surplus_size"`
	TimesCount  int64   `json:"times_count"`
}

// gaiaSortExprs whitelists the Gaia sort keys and their JSON-path SQL.
var gaiaSortExprs = map[string]string{
	"detail.minPrice": "COALESCE(CAST(json_extract(payload,'$.detail.minPrice') AS REAL),0)",
	"detail.maxPrice": "COALESCE(CAST(json_extract(payload,'$.detail.maxPrice') AS REAL),0)",
	"detail.minSize":  "COALESCE(CAST(json_extract(payload,'$.detail.minSize') AS REAL),0)",
	"detail.maxSize":  "COALESCE(CAST(json_extract(payload,'$.detail.maxSize') AS REAL),0)",
	"times.count":     "COALESCE(json_array_length(payload,'$.times'),0)",
}

const gaiaProjection = `activity_id,
	       date_key,
	       type_tag                                                                  AS catalog,
	       COALESCE(json_extract(payload,'$.detail.heading'),'')                     AS title,
	       COALESCE(CAST(json_extract(payload,'$.detail.minPrice') AS REAL),0)       AS min_price,
	       COALESCE(CAST(json_extract(payload,'$.detail.maxPrice') AS REAL),0)       AS max_price,
	       COALESCE(CAST(json_extract(payload,'$.detail.minSize') AS INTEGER),0)     AS min_size,
	       COALESCE(CAST(json_extract(payload,'$.detail.maxSize') AS INTEGER),0)     AS max_size,
	       COALESCE(CAST(json_extract(payload,'$.detail.surplusSize') AS INTEGER),0) AS surplus_size,
	       COALESCE(json_array_length(payload,'$.times'),0)                          AS times_count`

// GaiaBoard lists Gaia records for one day with price/capacity metrics
// projected out of the composite payload.
func GaiaBoard(ctx context.Context, db *gorm.DB, f BoardFilters) ([]GaiaRow, error) {
	sortExpr, ok := gaiaSortExprs[f.Sort]
	if !ok {
		sortExpr = gaiaSortExprs["detail.minPrice"]
	}
	order := "ASC"
	if f.Desc {
		order = "DESC"
	}
	limit := f.Limit
	if limit <= 0 || limit > boardRowCap {
		limit = boardRowCap
	}

	where := "WHERE date_key = ? AND platform = ?"
	args := []any{f.DateKey, domain.PlatformGaia}
	if f.Query != "" {
		where += " AND LOWER(COALESCE(json_extract(payload,'$.detail.heading'),'')) LIKE ?"
		args = append(args, "%"+lowerLike(f.Query)+"%")
	}
	if f.TypeTag != "" && f.TypeTag != "all" {
		where += " AND type_tag = ?"
		args = append(args, f.TypeTag)
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM activity_details
		%s
		ORDER BY %s %s
		LIMIT %d`, gaiaProjection, where, sortExpr, order, limit)

	var rows []GaiaRow
	err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error
	return rows, err
}

// GaiaTrends returns the per-day series for Gaia records between StartDate
// and EndDate inclusive, ordered by activity then day, optionally narrowed
// to one activity. Callers group the flat rows into series.
func GaiaTrends(ctx context.Context, db *gorm.DB, startDate, endDate, activityID string) ([]GaiaRow, error) {
	where := "WHERE date_key >= ? AND date_key <= ? AND platform = ?"
	args := []any{startDate, endDate, domain.PlatformGaia}
	if activityID != "" {
		where += " AND activity_id = ?"
		args = append(args, activityID)
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM activity_details
		%s
		ORDER BY activity_id ASC, date_key ASC`, gaiaProjection, where)

	var rows []GaiaRow
	err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error
	return rows, err
}

// SummaryRow aggregates stored records per platform and day.
type SummaryRow struct {
	Platform string `json:"platform"`
	DateKey  string `json:"date_key"`
	Count    int64  `json:"count"`
}

// PlatformSummary returns record counts per (platform, date_key) for the most
// recent `days` calendar days present in the store.
func PlatformSummary(ctx context.Context, db *gorm.DB, days int) ([]SummaryRow, error) {
	if days <= 0 {
		days = 7
	}
	var rows []SummaryRow
	err := db.WithContext(ctx).Raw(`
		SELECT platform, date_key, COUNT(*) AS count
		FROM activity_details
		WHERE date_key IN (
			SELECT DISTINCT date_key FROM activity_details ORDER BY date_key DESC LIMIT ?
		)
		GROUP BY platform, date_key
		ORDER BY date_key DESC, platform ASC`, days).Scan(&rows).Error
	return rows, err
}

// MaxUpdatedAt returns the greatest updated_at across all records, or nil
// when the store is empty. Used for freshness reporting on the summary view.
func MaxUpdatedAt(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.ActivityDetail{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := db.WithContext(ctx).Model(&domain.ActivityDetail{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	return &row.UpdatedAt, nil
}
