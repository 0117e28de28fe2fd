package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storekriti/internal/events"
	"storekriti/internal/pageviews"
	"storekriti/internal/sessions"
)

func intPtr(v int) *int { return &v }

func TestSummarizeEmpty(t *testing.T) {
	rollup := Summarize(nil, nil)

	assert.Equal(t, Summary{}, rollup.Summary)
	assert.NotNil(t, rollup.TopPages)
	assert.NotNil(t, rollup.TopEvents)
	assert.Empty(t, rollup.TopPages)
	assert.Empty(t, rollup.TopEvents)
}

func TestSummarizeAverages(t *testing.T) {
	pvs := []pageviews.Pageview{
		{VisitorID: "a", Path: "/", DurationMS: intPtr(4000), ScrollMax: intPtr(50)},
		{VisitorID: "a", Path: "/pricing", DurationMS: intPtr(7000), ScrollMax: intPtr(100)},
		{VisitorID: "b", Path: "/", DurationMS: intPtr(0), ScrollMax: nil},
		{VisitorID: "c", Path: "/"},
	}

	rollup := Summarize(pvs, nil)

	assert.Equal(t, 4, rollup.Summary.Pageviews)
	assert.Equal(t, 3, rollup.Summary.UniqueVisitors)
	assert.Equal(t, []string{"a", "b", "c"}, rollup.VisitorIDs)
	// (4000 + 7000) / 2 = 5500ms, rounded to 6s
	assert.Equal(t, 6, rollup.Summary.AvgTimeSeconds)
	// (50 + 100) / 2 = 75
	assert.Equal(t, 75, rollup.Summary.AvgScrollPercent)
}

func TestSummarizeConversionRate(t *testing.T) {
	pvs := []pageviews.Pageview{
		{VisitorID: "v1", Path: "/"},
		{VisitorID: "v2", Path: "/"},
		{VisitorID: "v3", Path: "/"},
		{VisitorID: "v4", Path: "/"},
	}
	evs := []events.Event{
		{Name: events.NameConversion},
		{Name: events.NameConversion},
		{Name: events.NameSessionActive},
	}

	rollup := Summarize(pvs, evs)
	assert.Equal(t, 2, rollup.Summary.Conversions)
	assert.Equal(t, 3, rollup.Summary.Events)
	assert.InDelta(t, 0.5, rollup.Summary.ConversionRate, 1e-9)
}

func TestConversionRateBounds(t *testing.T) {
	assert.Zero(t, ConversionRate(5, 0), "no visitors means no rate")
	assert.Zero(t, ConversionRate(0, 10))
	assert.Equal(t, 1.0, ConversionRate(12, 3), "rate never exceeds 1")
	assert.InDelta(t, 0.25, ConversionRate(1, 4), 1e-9)

	for conversions := 0; conversions < 20; conversions++ {
		for visitors := 0; visitors < 20; visitors++ {
			rate := ConversionRate(conversions, visitors)
			assert.GreaterOrEqual(t, rate, 0.0)
			assert.LessOrEqual(t, rate, 1.0)
		}
	}
}

func TestCountBy(t *testing.T) {
	paths := []string{"/b", "/a", "/b", "", "/c", "/a", "/b", "/d"}
	got := CountBy(paths, func(s string) string { return s }, 10)

	assert.Equal(t, []KeyCount{
		{Key: "/b", Count: 3},
		{Key: "/a", Count: 2},
		{Key: "/c", Count: 1},
		{Key: "/d", Count: 1},
	}, got)
}

func TestCountByLimitAndOrdering(t *testing.T) {
	var items []string
	for i := 0; i < 30; i++ {
		for j := 0; j <= i%7; j++ {
			items = append(items, fmt.Sprintf("/page-%d", i))
		}
	}

	got := CountBy(items, func(s string) string { return s }, TopN)
	require.Len(t, got, TopN)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Count, got[i].Count)
	}
	// ties keep first-encountered order
	assert.Equal(t, "/page-6", got[0].Key)
	assert.Equal(t, "/page-13", got[1].Key)
}

func TestParseDays(t *testing.T) {
	tests := map[string]int{
		"":      DefaultDays,
		"abc":   DefaultDays,
		"7":     7,
		"30":    30,
		"999":   90,
		"90":    90,
		"0":     1,
		"-5":    1,
		"14d":   14,
		"7.9":   7,
		" 3 ":   3,
		"+2":    2,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseDays(raw), "ParseDays(%q)", raw)
	}
	assert.Equal(t, MaxDays, ParseDays("99999999999999999999999"))
	assert.Equal(t, MinDays, ParseDays("-99999999999999999999999"))
}

func TestNewWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	w := NewWindow(999, now)
	assert.Equal(t, 90, w.Days)
	assert.Equal(t, now, w.To)
	assert.Equal(t, now.Add(-90*24*time.Hour), w.From)

	assert.Equal(t, NewWindow(90, now), NewWindow(999, now))
	assert.Equal(t, NewWindow(1, now), NewWindow(0, now))
	assert.Equal(t, NewWindow(1, now), NewWindow(-3, now))
}

func TestCountryNames(t *testing.T) {
	got := CountryNames([]sessions.CountryCount{
		{Country: "IN", Count: 5},
		{Country: "US", Count: 2},
		{Country: "zz", Count: 1},
		{Country: "", Count: 9},
	})

	require.Len(t, got, 3)
	assert.Equal(t, KeyCount{Key: "India", Count: 5}, got[0])
	assert.Equal(t, "United States", got[1].Key)
	assert.Equal(t, KeyCount{Key: "ZZ", Count: 1}, got[2])

	assert.Empty(t, CountryNames(nil))
}
