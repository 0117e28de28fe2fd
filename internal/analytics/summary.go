package analytics

import (
	"math"
	"slices"

	"storekriti/internal/events"
	"storekriti/internal/pageviews"
)

const (
	// RowCap bounds how many pageviews and events a report reads. Busier
	// windows are undercounted.
	RowCap = 15000
	// TopN bounds every ranked list in a report.
	TopN = 20
)

// KeyCount is one entry of a ranked list.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary holds the headline numbers of a report.
type Summary struct {
	Pageviews         int     `json:"pageviews"`
	UniqueVisitors    int     `json:"unique_visitors"`
	ReturningVisitors int     `json:"returning_visitors"`
	AvgTimeSeconds    int     `json:"avg_time_seconds"`
	AvgScrollPercent  int     `json:"avg_scroll_percent"`
	Events            int     `json:"events"`
	Conversions       int     `json:"conversions"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// Rollup is everything a report derives from raw rows alone.
type Rollup struct {
	Summary   Summary
	TopPages  []KeyCount
	TopEvents []KeyCount
	// VisitorIDs are the distinct pageview visitors in first-seen order.
	VisitorIDs []string
}

// Summarize computes the rollup for rows already fetched newest first.
// ReturningVisitors is left at zero; it needs a storage lookup.
func Summarize(pvs []pageviews.Pageview, evs []events.Event) Rollup {
	seen := make(map[string]struct{}, len(pvs))
	visitorIDs := make([]string, 0)
	var durationSum, durationN, scrollSum, scrollN int

	for _, pv := range pvs {
		if pv.VisitorID != "" {
			if _, ok := seen[pv.VisitorID]; !ok {
				seen[pv.VisitorID] = struct{}{}
				visitorIDs = append(visitorIDs, pv.VisitorID)
			}
		}
		if pv.DurationMS != nil && *pv.DurationMS > 0 {
			durationSum += *pv.DurationMS
			durationN++
		}
		if pv.ScrollMax != nil && *pv.ScrollMax > 0 {
			scrollSum += *pv.ScrollMax
			scrollN++
		}
	}

	conversions := 0
	for _, e := range evs {
		if e.Name == events.NameConversion {
			conversions++
		}
	}

	summary := Summary{
		Pageviews:      len(pvs),
		UniqueVisitors: len(visitorIDs),
		Events:         len(evs),
		Conversions:    conversions,
		ConversionRate: ConversionRate(conversions, len(visitorIDs)),
	}
	if durationN > 0 {
		summary.AvgTimeSeconds = int(math.Round(float64(durationSum) / float64(durationN) / 1000))
	}
	if scrollN > 0 {
		summary.AvgScrollPercent = int(math.Round(float64(scrollSum) / float64(scrollN)))
	}

	return Rollup{
		Summary:    summary,
		TopPages:   CountBy(pvs, func(pv pageviews.Pageview) string { return pv.Path }, TopN),
		TopEvents:  CountBy(evs, func(e events.Event) string { return e.Name }, TopN),
		VisitorIDs: visitorIDs,
	}
}

// ConversionRate is conversions per unique visitor, bounded to [0, 1].
// It is 0 when there are no visitors.
func ConversionRate(conversions, uniqueVisitors int) float64 {
	if uniqueVisitors <= 0 || conversions <= 0 {
		return 0
	}
	return math.Min(1, float64(conversions)/float64(uniqueVisitors))
}

// CountBy counts items by key, skipping empty keys, and returns at most limit
// entries sorted by descending count. Equal counts keep first-encountered order.
func CountBy[T any](items []T, key func(T) string, limit int) []KeyCount {
	index := make(map[string]int)
	counts := make([]KeyCount, 0)
	for _, item := range items {
		k := key(item)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			counts[i].Count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, KeyCount{Key: k, Count: 1})
	}

	slices.SortStableFunc(counts, func(a, b KeyCount) int {
		return b.Count - a.Count
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
