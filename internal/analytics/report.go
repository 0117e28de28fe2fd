// Package analytics computes the admin traffic report from raw tracking rows.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"storekriti/internal/events"
	"storekriti/internal/pageviews"
	"storekriti/internal/pkg/async"
	"storekriti/internal/sessions"
	"storekriti/internal/visitors"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// WindowInfo is the serialized form of a Window.
type WindowInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

// Report is the full admin analytics payload.
type Report struct {
	Window       WindowInfo `json:"window"`
	Summary      Summary    `json:"summary"`
	TopPages     []KeyCount `json:"top_pages"`
	TopEvents    []KeyCount `json:"top_events"`
	TopCountries []KeyCount `json:"top_countries"`
	TopReferrers []KeyCount `json:"top_referrers"`
}

// Builder reads raw rows and assembles reports.
type Builder struct {
	db     *gorm.DB
	logger *slog.Logger
	pool   *async.Pool
}

// NewBuilder returns a Builder reading from db.
func NewBuilder(db *gorm.DB, logger *slog.Logger) *Builder {
	return &Builder{db: db, logger: logger, pool: async.NewPool(4)}
}

// Build computes the report for window. Any read failure aborts the whole
// report; partial results are never returned.
func (b *Builder) Build(ctx context.Context, window Window) (*Report, error) {
	started := time.Now()
	db := b.db.WithContext(ctx)

	results := b.pool.Execute(ctx, []async.Task{
		{
			Name: "pageviews",
			Execute: func(ctx context.Context) (any, error) {
				return pageviews.ListInWindow(db, window.From, window.To, RowCap)
			},
		},
		{
			Name: "events",
			Execute: func(ctx context.Context) (any, error) {
				return events.ListInWindow(db, window.From, window.To, RowCap)
			},
		},
		{
			Name: "countries",
			Execute: func(ctx context.Context) (any, error) {
				return sessions.CountByCountry(db, window.From, window.To, TopN)
			},
		},
		{
			Name: "referrers",
			Execute: func(ctx context.Context) (any, error) {
				return sessions.ListReferrers(db, window.From, window.To, RowCap)
			},
		},
	})
	if err := results.Err("pageviews", "events", "countries", "referrers"); err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	pvs := results["pageviews"].Data.([]pageviews.Pageview)
	evs := results["events"].Data.([]events.Event)
	countries := results["countries"].Data.([]sessions.CountryCount)
	refs := results["referrers"].Data.([]string)

	rollup := Summarize(pvs, evs)

	returning, err := visitors.CountReturning(db, rollup.VisitorIDs)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	rollup.Summary.ReturningVisitors = returning

	b.logger.Debug("Analytics report built",
		slog.Int("days", window.Days),
		slog.Int("pageviews", len(pvs)),
		slog.Int("events", len(evs)),
		slog.Duration("elapsed", time.Since(started)))

	return &Report{
		Window: WindowInfo{
			From: window.From.UTC().Format(isoMillis),
			To:   window.To.UTC().Format(isoMillis),
			Days: window.Days,
		},
		Summary:      rollup.Summary,
		TopPages:     rollup.TopPages,
		TopEvents:    rollup.TopEvents,
		TopCountries: CountryNames(countries),
		TopReferrers: TopReferrers(refs),
	}, nil
}
