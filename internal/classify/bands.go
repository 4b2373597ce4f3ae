// Package classify holds the pure, stateless classification functions
// from spec §4.1: size band, heat band, file type, owner, and mount
// lookup. None of it touches the document model or the pipeline.
package classify

import (
	"sort"
	"time"
)

// sizeBand is one half-open interval in the fixed 14-bucket size
// partition from spec §3. Bounds are the literal values carried over
// from original_source/gws_volume_scanner/constants.py's SIZE_BUCKETS.
type sizeBand struct {
	key  string
	from int64
}

var sizeBands = []sizeBand{
	{"*-10B", -1},
	{"10B-100B", 10},
	{"100B-1kB", 100},
	{"1kB-10kB", 1000},
	{"10kB-100kB", 10_000},
	{"100kb-1MB", 100_000},
	{"1MB-10MB", 1_000_000},
	{"10MB-100MB", 10_000_000},
	{"100MB-1GB", 100_000_000},
	{"1GB-10GB", 1_000_000_000},
	{"10GB-100GB", 10_000_000_000},
	{"100GB-1TB", 100_000_000_000},
	{"1TB-10TB", 1_000_000_000_000},
	{"10TB-*", 10_000_000_000_000},
}

// SizeBandKeys returns every size-band bucket key in partition order.
// The aggregator does not use it: heat_bins takes its fixed keys from
// HeatBandKeys, and filetypes and users are discovered dynamically
// (spec §9).
func SizeBandKeys() []string {
	keys := make([]string, len(sizeBands))
	for i, b := range sizeBands {
		keys[i] = b.key
	}
	return keys
}

// SizeBand returns the bucket key covering size, using binary search
// over the partition's lower bounds: the highest bound with
// lower <= size wins (spec §4.1).
func SizeBand(size int64) string {
	idx := sort.Search(len(sizeBands), func(i int) bool {
		return sizeBands[i].from > size
	})
	if idx == 0 {
		idx = 1
	}
	return sizeBands[idx-1].key
}

// heatBand is one half-open interval of "now - atime" age, in seconds.
// Bounds mirror constants.py's TIME_BUCKETS (durations there are
// dt.timedelta; here they're pre-converted to seconds).
type heatBand struct {
	key      string
	fromSecs float64
}

const (
	hour  = 3600.0
	day   = 24 * hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

var heatBands = []heatBand{
	{"*-1h", -day},
	{"1h-1d", hour},
	{"1d-1w", day},
	{"1w-1m", week},
	{"1m-3m", month},
	{"3m-6m", 3 * month},
	{"6m-1y", 6 * month},
	{"1y-2y", year},
	{"2y-5y", 2 * year},
	{"5y-*", 5 * year},
}

// HeatBandKeys returns every heat-band bucket key in partition order;
// this is the fixed bucket set the Aggregator uses for heat_bins
// (spec §4.8 — unlike filetypes/users, not discovered dynamically).
func HeatBandKeys() []string {
	keys := make([]string, len(heatBands))
	for i, b := range heatBands {
		keys[i] = b.key
	}
	return keys
}

// HeatBand returns the bucket key for age = now - atime. A negative
// age (atime in the future) falls into the youngest bucket and is the
// caller's responsibility to log as a warning (spec §4.1, §3).
func HeatBand(now, atime time.Time) (key string, negativeAge bool) {
	age := now.Sub(atime).Seconds()
	idx := sort.Search(len(heatBands), func(i int) bool {
		return heatBands[i].fromSecs > age
	})
	if idx == 0 {
		idx = 1
	}
	return heatBands[idx-1].key, age < 0
}
