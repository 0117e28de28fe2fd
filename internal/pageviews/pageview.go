// Package pageviews stores one row per rendered route visit.
package pageviews

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Pageview is a single page visit. DurationMS and ScrollMax are filled in when
// the page is left.
type Pageview struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"index:idx_pageviews_session_path_ts,priority:1;size:80;not null" json:"session_id"`
	VisitorID  string    `gorm:"index;size:80;not null" json:"visitor_id"`
	Path       string    `gorm:"index:idx_pageviews_session_path_ts,priority:2;size:300;not null" json:"path"`
	Title      *string   `gorm:"size:200" json:"title"`
	Referrer   *string   `gorm:"size:300" json:"referrer"`
	Timestamp  time.Time `gorm:"column:ts;index;index:idx_pageviews_session_path_ts,priority:3;not null" json:"ts"`
	DurationMS *int      `json:"duration_ms"`
	ScrollMax  *int      `json:"scroll_max"`
}

// Create inserts a new pageview. Pageviews are never merged.
func Create(tx *gorm.DB, pv *Pageview) error {
	if err := tx.Create(pv).Error; err != nil {
		return fmt.Errorf("insert pageview: %w", err)
	}
	return nil
}

// Finish records engagement on the latest pageview for sessionID and path.
// It reports whether a matching row existed; no match is not an error.
func Finish(tx *gorm.DB, sessionID, path string, durationMS, scrollMax *int) (bool, error) {
	var latest Pageview
	err := tx.Select("id").
		Where("session_id = ? AND path = ?", sessionID, path).
		Order("ts DESC, id DESC").
		Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find pageview to finish: %w", err)
	}

	if err := tx.Model(&Pageview{}).
		Where("id = ?", latest.ID).
		Updates(map[string]any{
			"duration_ms": durationMS,
			"scroll_max":  scrollMax,
		}).Error; err != nil {
		return false, fmt.Errorf("update pageview %d: %w", latest.ID, err)
	}
	return true, nil
}

// ListInWindow returns up to limit pageviews with ts in [from, to], newest first.
func ListInWindow(db *gorm.DB, from, to time.Time, limit int) ([]Pageview, error) {
	var rows []Pageview
	err := db.Select("id", "visitor_id", "path", "ts", "duration_ms", "scroll_max").
		Where("ts BETWEEN ? AND ?", from, to).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pageviews: %w", err)
	}
	return rows, nil
}

// DeleteBefore removes up to batch pageviews older than cutoff and returns the number removed.
func DeleteBefore(db *gorm.DB, cutoff time.Time, batch int) (int64, error) {
	ids := db.Model(&Pageview{}).Select("id").Where("ts < ?", cutoff).Limit(batch)
	result := db.Where("id IN (?)", ids).Delete(&Pageview{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old pageviews: %w", result.Error)
	}
	return result.RowsAffected, nil
}
