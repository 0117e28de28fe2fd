// Package visitors stores the long-lived anonymous visitor identities.
package visitors

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturningLookupChunk bounds the number of ids sent in a single IN (...) lookup.
const ReturningLookupChunk = 150

// Visitor is one anonymous client identity.
type Visitor struct {
	VisitorID     string    `gorm:"primaryKey;size:80" json:"visitor_id"`
	LastSeen      time.Time `gorm:"index;not null" json:"last_seen"`
	SessionsCount int       `gorm:"not null;default:0" json:"sessions_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Touch creates the visitor if needed and refreshes last_seen.
func Touch(tx *gorm.DB, visitorID string, now time.Time) error {
	visitor := Visitor{
		VisitorID: visitorID,
		LastSeen:  now,
		CreatedAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(&visitor).Error
	if err != nil {
		return fmt.Errorf("touch visitor %s: %w", visitorID, err)
	}
	return nil
}

// IncrementSessions reads the current session count and writes it back plus one.
// The read and the write are separate statements: two concurrent session starts
// for the same visitor can lose an increment.
func IncrementSessions(tx *gorm.DB, visitorID string) (int, error) {
	var current Visitor
	err := tx.Select("sessions_count").Where("visitor_id = ?", visitorID).Take(&current).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("read session count for %s: %w", visitorID, err)
	}

	next := current.SessionsCount + 1
	if err := tx.Model(&Visitor{}).
		Where("visitor_id = ?", visitorID).
		Update("sessions_count", next).Error; err != nil {
		return 0, fmt.Errorf("update session count for %s: %w", visitorID, err)
	}
	return next, nil
}

// Find returns the visitor with the given id.
func Find(db *gorm.DB, visitorID string) (*Visitor, error) {
	var v Visitor
	if err := db.Where("visitor_id = ?", visitorID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// CountReturning counts how many of ids have more than one recorded session.
// Lookups are issued in chunks of ReturningLookupChunk ids.
func CountReturning(db *gorm.DB, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += ReturningLookupChunk {
		end := min(start+ReturningLookupChunk, len(ids))

		var n int64
		if err := db.Model(&Visitor{}).
			Where("visitor_id IN ? AND sessions_count > 1", ids[start:end]).
			Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count returning visitors: %w", err)
		}
		total += int(n)
	}
	return total, nil
}
