// Package ingest validates tracking payloads and routes them to storage.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"storekriti/internal/events"
	"storekriti/internal/models"
	"storekriti/internal/pageviews"
	"storekriti/internal/pkg/geoip"
	"storekriti/internal/pkg/sanitize"
	"storekriti/internal/sessions"
	"storekriti/internal/visitors"
)

// Type discriminates tracking payloads.
type Type string

const (
	TypeSessionStart Type = "session_start"
	TypePageview     Type = "pageview"
	TypePageviewEnd  Type = "pageview_end"
	TypeEvent        Type = "event"
)

// Field length caps applied before storage.
const (
	maxType      = 50
	maxID        = 80
	maxPath      = 300
	maxTitle     = 200
	maxReferrer  = 300
	maxUserAgent = 300
	maxGeo       = 100
	maxEventName = 80

	maxDurationMS = 24 * 60 * 60 * 1000
	maxScroll     = 100
)

const (
	msgMissingIDs       = "missing visitor_id/session_id"
	msgInvalidType      = "invalid type"
	msgMissingEventName = "missing event name"
)

// Payload is the body accepted by the collection endpoint.
type Payload struct {
	Type        string          `json:"type"`
	VisitorID   string          `json:"visitor_id"`
	SessionID   string          `json:"session_id"`
	Path        string          `json:"path"`
	Title       string          `json:"title,omitempty"`
	Referrer    string          `json:"referrer,omitempty"`
	LandingPath string          `json:"landing_path,omitempty"`
	Country     string          `json:"country,omitempty"`
	City        string          `json:"city,omitempty"`
	DurationMS  *float64        `json:"duration_ms,omitempty"`
	ScrollMax   *float64        `json:"scroll_max,omitempty"`
	Name        string          `json:"name,omitempty"`
	Props       json.RawMessage `json:"props,omitempty"`
}

// Request is a payload plus what the server knows about the sender.
type Request struct {
	Payload
	UserAgent string
	IP        string
	Received  time.Time
}

// ValidationError is a rejected payload. Its message is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Result reports what a successful collection did.
type Result struct {
	Type Type
	// Matched is false for a pageview_end that found no pageview to update.
	Matched bool
}

// Collector writes tracking payloads. Each write is its own short transaction.
type Collector struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	geo       *geoip.Resolver
}

// NewCollector returns a Collector. geo may be nil.
func NewCollector(dbManager cartridge.DBManager, logger *slog.Logger, geo *geoip.Resolver) *Collector {
	return &Collector{dbManager: dbManager, logger: logger, geo: geo}
}

// Collect validates req and stores it. Validation failures are returned as
// *ValidationError before anything is written.
func (c *Collector) Collect(req Request) (Result, error) {
	kind := Type(sanitize.String(req.Type, maxType))
	visitorID := sanitize.String(req.VisitorID, maxID)
	sessionID := sanitize.String(req.SessionID, maxID)

	if visitorID == "" || sessionID == "" {
		return Result{}, &ValidationError{Message: msgMissingIDs}
	}

	switch kind {
	case TypeSessionStart, TypePageview, TypePageviewEnd:
	case TypeEvent:
		if sanitize.String(req.Name, maxEventName) == "" {
			return Result{}, &ValidationError{Message: msgMissingEventName}
		}
	default:
		return Result{}, &ValidationError{Message: msgInvalidType}
	}

	now := req.Received
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	path := sanitize.Default(req.Path, maxPath, "/")
	db := c.dbManager.GetConnection()

	if err := c.write(db, func(tx *gorm.DB) error {
		return visitors.Touch(tx, visitorID, now)
	}); err != nil {
		return Result{}, err
	}

	result := Result{Type: kind, Matched: true}

	switch kind {
	case TypeSessionStart:
		if err := c.write(db, func(tx *gorm.DB) error {
			_, err := visitors.IncrementSessions(tx, visitorID)
			return err
		}); err != nil {
			return Result{}, err
		}

		landing := sanitize.Default(req.LandingPath, maxPath, path)
		session := &sessions.Session{
			SessionID:   sessionID,
			VisitorID:   visitorID,
			LandingPath: &landing,
			Referrer:    sanitize.Optional(req.Referrer, maxReferrer),
			UserAgent:   sanitize.Optional(req.UserAgent, maxUserAgent),
			Country:     sanitize.Optional(req.Country, maxGeo),
			City:        sanitize.Optional(req.City, maxGeo),
			CreatedAt:   now,
		}
		c.enrichLocation(session, req.IP)

		if err := c.write(db, func(tx *gorm.DB) error {
			return sessions.Upsert(tx, session)
		}); err != nil {
			return Result{}, err
		}

	case TypePageview:
		pv := &pageviews.Pageview{
			SessionID: sessionID,
			VisitorID: visitorID,
			Path:      path,
			Title:     sanitize.Optional(req.Title, maxTitle),
			Referrer:  sanitize.Optional(req.Referrer, maxReferrer),
			Timestamp: now,
		}
		if err := c.write(db, func(tx *gorm.DB) error {
			return pageviews.Create(tx, pv)
		}); err != nil {
			return Result{}, err
		}

	case TypePageviewEnd:
		duration := positiveInt(req.DurationMS, maxDurationMS)
		scroll := positiveInt(req.ScrollMax, maxScroll)
		if err := c.write(db, func(tx *gorm.DB) error {
			matched, err := pageviews.Finish(tx, sessionID, path, duration, scroll)
			result.Matched = matched
			return err
		}); err != nil {
			return Result{}, err
		}
		if !result.Matched {
			c.logger.Debug("pageview_end without matching pageview",
				slog.String("session_id", sessionID),
				slog.String("path", path))
		}

	case TypeEvent:
		event := &events.Event{
			SessionID: sessionID,
			VisitorID: visitorID,
			Name:      sanitize.String(req.Name, maxEventName),
			Path:      path,
			Timestamp: now,
			Props:     models.ObjectOrNil(req.Props),
		}
		if err := c.write(db, func(tx *gorm.DB) error {
			return events.Create(tx, event)
		}); err != nil {
			return Result{}, err
		}
	}

	return result, nil
}

func (c *Collector) write(db *gorm.DB, f func(tx *gorm.DB) error) error {
	if err := models.PerformWrite(c.logger, db, f); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	return nil
}

// enrichLocation fills country and city from the client IP when the payload carried none.
func (c *Collector) enrichLocation(s *sessions.Session, ip string) {
	if s.Country != nil || !c.geo.Enabled() {
		return
	}
	loc := c.geo.Lookup(ip)
	s.Country = sanitize.Optional(loc.Country, maxGeo)
	if s.City == nil {
		s.City = sanitize.Optional(loc.City, maxGeo)
	}
}

// positiveInt rounds v, caps it at ceiling and maps zero, negative and missing values to nil.
func positiveInt(v *float64, ceiling int) *int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	rounded := math.Round(*v)
	if rounded <= 0 {
		return nil
	}
	n := ceiling
	if rounded < float64(ceiling) {
		n = int(rounded)
	}
	return &n
}
