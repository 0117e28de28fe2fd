package ingest_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekriti/internal/events"
	"storekriti/internal/ingest"
	"storekriti/internal/pageviews"
	"storekriti/internal/sessions"
	"storekriti/internal/testsupport"
	"storekriti/internal/visitors"
)

func ptr(v float64) *float64 { return &v }

func newCollector(t *testing.T) (*ingest.Collector, *testsupport.TestDBManager) {
	t.Helper()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	testsupport.CleanAllTables(dbManager.GetConnection())
	return ingest.NewCollector(dbManager, logger, nil), dbManager
}

func request(kind ingest.Type, visitorID, sessionID, path string) ingest.Request {
	return ingest.Request{
		Payload: ingest.Payload{
			Type:      string(kind),
			VisitorID: visitorID,
			SessionID: sessionID,
			Path:      path,
		},
		UserAgent: "Mozilla/5.0 Test Browser",
	}
}

func TestCollectValidation(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	tests := []struct {
		name    string
		req     ingest.Request
		message string
	}{
		{"missing visitor", request(ingest.TypePageview, "", "s1", "/"), "missing visitor_id/session_id"},
		{"missing session", request(ingest.TypePageview, "v1", "  ", "/"), "missing visitor_id/session_id"},
		{"unknown type", request("click", "v1", "s1", "/"), "invalid type"},
		{"empty type", request("", "v1", "s1", "/"), "invalid type"},
		{"event without name", request(ingest.TypeEvent, "v1", "s1", "/"), "missing event name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collector.Collect(tt.req)
			require.Error(t, err)

			var verr *ingest.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message)
		})
	}

	var count int64
	require.NoError(t, db.Model(&visitors.Visitor{}).Count(&count).Error)
	assert.Zero(t, count, "rejected payloads must not touch storage")
}

func TestCollectSessionStartIsIdempotentPerSession(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	req := request(ingest.TypeSessionStart, "v1", "s1", "/pricing")
	req.Referrer = "https://google.com"
	req.Country = "IN"
	req.City = "Pune"

	_, err := collector.Collect(req)
	require.NoError(t, err)
	_, err = collector.Collect(req)
	require.NoError(t, err)

	var rows []sessions.Session
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "v1", rows[0].VisitorID)
	require.NotNil(t, rows[0].LandingPath)
	assert.Equal(t, "/pricing", *rows[0].LandingPath)
	require.NotNil(t, rows[0].Country)
	assert.Equal(t, "IN", *rows[0].Country)
	require.NotNil(t, rows[0].UserAgent)
	assert.Equal(t, "Mozilla/5.0 Test Browser", *rows[0].UserAgent)

	visitor, err := visitors.Find(db, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, visitor.SessionsCount)
}

func TestCollectSessionStartLandingPathDefaultsToPath(t *testing.T) {
	collector, dbManager := newCollector(t)

	_, err := collector.Collect(request(ingest.TypeSessionStart, "v1", "s1", "/about"))
	require.NoError(t, err)

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().First(&session, "session_id = ?", "s1").Error)
	require.NotNil(t, session.LandingPath)
	assert.Equal(t, "/about", *session.LandingPath)
	assert.Nil(t, session.Country)
}

func TestCollectPageviewThenEnd(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	_, err := collector.Collect(request(ingest.TypePageview, "v1", "s1", "/x"))
	require.NoError(t, err)

	end := request(ingest.TypePageviewEnd, "v1", "s1", "/x")
	end.DurationMS = ptr(5000)
	end.ScrollMax = ptr(80)
	result, err := collector.Collect(end)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	var rows []pageviews.Pageview
	require.NoError(t, db.Where("session_id = ? AND path = ?", "s1", "/x").Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].DurationMS)
	require.NotNil(t, rows[0].ScrollMax)
	assert.Equal(t, 5000, *rows[0].DurationMS)
	assert.Equal(t, 80, *rows[0].ScrollMax)
}

func TestCollectPageviewEndUpdatesLatestOnly(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	first := request(ingest.TypePageview, "v1", "s1", "/x")
	first.Received = time.Now().Add(-time.Minute)
	_, err := collector.Collect(first)
	require.NoError(t, err)

	_, err = collector.Collect(request(ingest.TypePageview, "v1", "s1", "/x"))
	require.NoError(t, err)

	end := request(ingest.TypePageviewEnd, "v1", "s1", "/x")
	end.DurationMS = ptr(1200)
	_, err = collector.Collect(end)
	require.NoError(t, err)

	var rows []pageviews.Pageview
	require.NoError(t, db.Order("ts ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].DurationMS)
	require.NotNil(t, rows[1].DurationMS)
	assert.Equal(t, 1200, *rows[1].DurationMS)
	assert.Nil(t, rows[1].ScrollMax, "missing scroll is stored as null")
}

func TestCollectPageviewEndWithoutMatch(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	end := request(ingest.TypePageviewEnd, "v1", "s1", "/never-viewed")
	end.DurationMS = ptr(3000)
	result, err := collector.Collect(end)
	require.NoError(t, err)
	assert.False(t, result.Matched)

	var count int64
	require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCollectPageviewEndClampsValues(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	_, err := collector.Collect(request(ingest.TypePageview, "v1", "s1", "/x"))
	require.NoError(t, err)

	end := request(ingest.TypePageviewEnd, "v1", "s1", "/x")
	end.DurationMS = ptr(0)
	end.ScrollMax = ptr(250)
	_, err = collector.Collect(end)
	require.NoError(t, err)

	var pv pageviews.Pageview
	require.NoError(t, db.First(&pv).Error)
	assert.Nil(t, pv.DurationMS)
	require.NotNil(t, pv.ScrollMax)
	assert.Equal(t, 100, *pv.ScrollMax)
}

func TestCollectEventProps(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	withObject := request(ingest.TypeEvent, "v1", "s1", "/")
	withObject.Name = events.NameConversion
	withObject.Props = json.RawMessage(`{"source":"popup"}`)
	_, err := collector.Collect(withObject)
	require.NoError(t, err)

	withArray := request(ingest.TypeEvent, "v1", "s1", "/")
	withArray.Name = "cta_click"
	withArray.Props = json.RawMessage(`["a","b"]`)
	_, err = collector.Collect(withArray)
	require.NoError(t, err)

	var rows []events.Event
	require.NoError(t, db.Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)

	props, err := rows[0].Props.Map()
	require.NoError(t, err)
	assert.Equal(t, "popup", props["source"])
	assert.Nil(t, rows[1].Props)
}

func TestCollectTruncatesFreeText(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	req := request(ingest.TypePageview, "  v1  ", "s1", "/"+strings.Repeat("a", 400))
	req.Title = strings.Repeat("t", 250)
	_, err := collector.Collect(req)
	require.NoError(t, err)

	var pv pageviews.Pageview
	require.NoError(t, db.First(&pv).Error)
	assert.Equal(t, "v1", pv.VisitorID)
	assert.Len(t, pv.Path, 300)
	require.NotNil(t, pv.Title)
	assert.Len(t, *pv.Title, 200)
}

func TestCollectTouchesVisitor(t *testing.T) {
	collector, dbManager := newCollector(t)
	db := dbManager.GetConnection()

	earlier := request(ingest.TypePageview, "v1", "s1", "/")
	earlier.Received = time.Now().Add(-time.Hour)
	_, err := collector.Collect(earlier)
	require.NoError(t, err)

	_, err = collector.Collect(request(ingest.TypePageview, "v1", "s1", "/next"))
	require.NoError(t, err)

	visitor, err := visitors.Find(db, "v1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), visitor.LastSeen, 5*time.Second)
	assert.Zero(t, visitor.SessionsCount)
}
