// Package events stores named occurrences such as form submissions.
package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"storekriti/internal/models"
)

// Event names with meaning to the report.
const (
	NameConversion    = "lead_submit_success"
	NameSessionActive = "session_active"
)

// Event is an immutable named occurrence inside a session.
type Event struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string      `gorm:"index;size:80;not null" json:"session_id"`
	VisitorID string      `gorm:"index;size:80;not null" json:"visitor_id"`
	Name      string      `gorm:"index;size:80;not null" json:"name"`
	Path      string      `gorm:"size:300;not null" json:"path"`
	Timestamp time.Time   `gorm:"column:ts;index;not null" json:"ts"`
	Props     models.JSON `gorm:"type:text" json:"props"`
}

// Create inserts a new event.
func Create(tx *gorm.DB, e *Event) error {
	if err := tx.Create(e).Error; err != nil {
		return fmt.Errorf("insert event %s: %w", e.Name, err)
	}
	return nil
}

// ListInWindow returns up to limit events with ts in [from, to], newest first.
func ListInWindow(db *gorm.DB, from, to time.Time, limit int) ([]Event, error) {
	var rows []Event
	err := db.Select("id", "visitor_id", "name", "path", "ts").
		Where("ts BETWEEN ? AND ?", from, to).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return rows, nil
}

// DeleteBefore removes up to batch events older than cutoff and returns the number removed.
func DeleteBefore(db *gorm.DB, cutoff time.Time, batch int) (int64, error) {
	ids := db.Model(&Event{}).Select("id").Where("ts < ?", cutoff).Limit(batch)
	result := db.Where("id IN (?)", ids).Delete(&Event{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
