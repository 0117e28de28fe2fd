package analytics

import "storekriti/internal/pkg/referrers"

// TopReferrers ranks session referrers by traffic source.
func TopReferrers(refs []string) []KeyCount {
	return CountBy(refs, referrers.Source, TopN)
}
