// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TrackedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storekriti_tracked_events_total",
		Help: "Tracking payloads accepted by the collection endpoint, by type",
	}, []string{"type"})

	TrackRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storekriti_track_rejected_total",
		Help: "Tracking payloads rejected, by reason",
	}, []string{"reason"})

	LeadsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storekriti_leads_created_total",
		Help: "Leads stored, by source",
	}, []string{"source"})

	AdminLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storekriti_admin_logins_total",
		Help: "Admin login attempts, by outcome",
	}, []string{"outcome"})

	ReportsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storekriti_analytics_reports_total",
		Help: "Analytics reports computed",
	})

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storekriti_analytics_report_seconds",
		Help:    "Time spent computing an analytics report",
		Buckets: prometheus.DefBuckets,
	})

	RetentionDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storekriti_retention_deleted_rows_total",
		Help: "Rows removed by the retention job, by table",
	}, []string{"table"})
)

// leadSources are the form placements reported as their own series.
var leadSources = map[string]bool{"landing": true, "page": true, "popup": true}

// LeadSourceLabel maps a client supplied lead source onto a bounded label set.
// Anything unrecognised is counted as "other".
func LeadSourceLabel(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if leadSources[source] {
		return source
	}
	return "other"
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
