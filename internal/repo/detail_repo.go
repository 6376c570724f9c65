// Package repo implements the data persistence layer for scraped activity
// details, backed by GORM. This file provides the upsert and lookup
// operations the pipeline and dashboard are built on.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-activity-scraper/internal/domain"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// UpsertActivityDetail inserts a detail record or, when a row with the same
// (activity_id, date_key, platform) already exists, replaces its payload and
// type tag in place. The call is atomic; no reader observes a half-written
// payload, and re-running a scrape for the same day never duplicates rows.
func UpsertActivityDetail(ctx context.Context, db *gorm.DB, rec domain.ActivityDetail) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "activity_id"},
			{Name: "date_key"},
			{Name: "platform"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"type_tag", "payload", "updated_at"}),
	}).Create(&rec).Error
}

// GetActivityDetail fetches one record by its natural key, or ErrNotFound.
func GetActivityDetail(ctx context.Context, db *gorm.DB, activityID, dateKey, platform string) (*domain.ActivityDetail, error) {
	var rec domain.ActivityDetail
	err := db.WithContext(ctx).
		Where("activity_id = ? AND date_key = ? AND platform = ?", activityID, dateKey, platform).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountActivityDetails uses a raw COUNT so a missing table surfaces as an
// error rather than a silent zero.
func CountActivityDetails(ctx context.Context, db *gorm.DB, dateKey, platform string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM activity_details WHERE date_key = ? AND platform = ?", dateKey, platform).
		Scan(&total).Error
	return total, err
}

// ListActivityDetailsPage returns a page of records for one platform and day,
// ordered deterministically (activity_id ASC).
func ListActivityDetailsPage(ctx context.Context, db *gorm.DB, dateKey, platform string, offset, limit int) ([]domain.ActivityDetail, error) {
	var out []domain.ActivityDetail
	err := db.WithContext(ctx).
		Where("date_key = ? AND platform = ?", dateKey, platform).
		Order("activity_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
