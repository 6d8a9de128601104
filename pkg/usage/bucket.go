package usage

import (
	"slices"
)

// DefaultBucketSize is one hour in milliseconds.
const DefaultBucketSize int64 = 60 * 60 * 1000

// Buckets partitions w into contiguous slices of size ms. The last bucket is
// truncated at w.End. An empty or invalid window yields no buckets.
func Buckets(w Window, size int64) []Window {
	if size <= 0 || !w.Valid() || w.Duration() == 0 {
		return nil
	}

	buckets := make([]Window, 0, (w.Duration()+size-1)/size)
	for start := w.Start; start < w.End; start += size {
		end := min(start+size, w.End)
		buckets = append(buckets, Window{Start: start, End: end})
	}
	return buckets
}

// sumBuckets adds per-application totals across bucket aggregates.
//
// This is a coarse approximation: if the source attributes a session that
// crosses a bucket boundary to both buckets, it is counted twice. The source
// semantics decide; nothing here tries to correct for it.
func sumBuckets(buckets []map[string]int64) *totals {
	t := newTotals()
	for _, bucket := range buckets {
		// Map order is random; sort ids so first appearance is deterministic.
		ids := make([]string, 0, len(bucket))
		for appID := range bucket {
			ids = append(ids, appID)
		}
		slices.Sort(ids)

		for _, appID := range ids {
			t.add(appID, bucket[appID])
		}
	}
	return t
}

// AggregateBuckets ranks the summed bucket aggregates the same way Aggregate
// ranks reconstructed sessions.
func AggregateBuckets(buckets []map[string]int64, labels LabelResolver) []Row {
	return rank(sumBuckets(buckets), labels)
}
