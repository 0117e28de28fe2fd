// Package sessions stores bounded-activity groupings of pageviews and events.
package sessions

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Session is one visit window of a visitor. Rows are keyed by the client
// generated session id so repeated session_start sends collapse into one row.
type Session struct {
	SessionID   string    `gorm:"primaryKey;size:80" json:"session_id"`
	VisitorID   string    `gorm:"index;size:80;not null" json:"visitor_id"`
	LandingPath *string   `gorm:"size:300" json:"landing_path"`
	Referrer    *string   `gorm:"size:300" json:"referrer"`
	UserAgent   *string   `gorm:"size:300" json:"user_agent"`
	Country     *string   `gorm:"index;size:100" json:"country"`
	City        *string   `gorm:"size:100" json:"city"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// Upsert inserts the session or overwrites its attributes when it already exists.
// created_at keeps the value of the first insert.
func Upsert(tx *gorm.DB, s *Session) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"visitor_id", "landing_path", "referrer", "user_agent", "country", "city",
		}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.SessionID, err)
	}
	return nil
}

// CountryCount is a country code with the number of sessions seen from it.
type CountryCount struct {
	Country string
	Count   int
}

// CountByCountry groups sessions created in [from, to] by country, most frequent first.
func CountByCountry(db *gorm.DB, from, to time.Time, limit int) ([]CountryCount, error) {
	var rows []CountryCount
	err := db.Model(&Session{}).
		Select("country, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ?", from, to).
		Where("country IS NOT NULL AND country <> ''").
		Group("country").
		Order("count DESC, country ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count sessions by country: %w", err)
	}
	return rows, nil
}

// ListReferrers returns the referrer of each session created in [from, to],
// newest first. Sessions without a referrer yield an empty string.
func ListReferrers(db *gorm.DB, from, to time.Time, limit int) ([]string, error) {
	var refs []string
	err := db.Model(&Session{}).
		Where("created_at BETWEEN ? AND ?", from, to).
		Order("created_at DESC").
		Limit(limit).
		Pluck("COALESCE(referrer, '')", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("list session referrers: %w", err)
	}
	return refs, nil
}
