// Package domain defines the persistence model for scraped activity
// details. The single ActivityDetail type is mapped with GORM and forms
// the core data layer of the scraper.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Platform discriminator values stored alongside every record. The same
// table holds rows from both platforms without collision because the
// platform is part of the uniqueness key.
const (
	PlatformTiga = "tiga"
	PlatformGaia = "gaia"
)

// ActivityDetail is the latest detail payload fetched for one activity on
// one calendar day on one platform.
//
// Fields:
//   - ID: surrogate autoincrement primary key.
//   - ActivityID: platform-assigned identifier normalized to string form;
//     a listing item's jump identifier is preferred over its raw id.
//   - DateKey: ISO calendar date (no time) of the fetch; the temporal bucket.
//   - Platform: "tiga" or "gaia".
//   - TypeTag: source category/catalog the activity was discovered under
//     (e.g. "domestic", "overseas", or a catalog code). Informational only.
//   - Payload: the full parsed detail response as an opaque JSON document.
//     The schema is platform-defined and not validated here; dashboard
//     projections read specific JSON paths out of it.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// Exactly one row exists per (activity_id, date_key, platform); re-fetching
// the same activity on the same day replaces the payload in place.
type ActivityDetail struct {
	ID         uint           `json:"-"           gorm:"primaryKey;autoIncrement"`
	ActivityID string         `json:"activity_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_activity_day_platform,priority:1"`
	DateKey    string         `json:"date_key"    gorm:"type:char(10);not null;uniqueIndex:ux_activity_day_platform,priority:2;index:idx_date_platform,priority:1"`
	Platform   string         `json:"platform"    gorm:"type:varchar(16);not null;uniqueIndex:ux_activity_day_platform,priority:3;index:idx_date_platform,priority:2"`
	TypeTag    string         `json:"type_tag"    gorm:"type:varchar(32);not null;index"`
	Payload    datatypes.JSON `json:"payload"     gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName returns the database table name for ActivityDetail.
func (ActivityDetail) TableName() string { return "activity_details" }
