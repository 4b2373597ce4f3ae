// Package esindex is the index backend abstraction (spec §6): three
// logical indices (data_index, volume_index, aggregate_index), each
// behind a stable alias backed by a `{alias}-YYYYMMDDHHMMSSffffff`
// index created from a `{alias}-*` template. Backend is implemented both
// by Client, a thin wrapper over github.com/elastic/go-elasticsearch/v8,
// and by esindex/memindex's in-memory fake used in tests — mirroring the
// teacher's split between internal/db's real sqlite.DB and an in-memory
// ":memory:" DSN for internal/db/writer_test.go.
package esindex

import (
	"context"
	"fmt"
	"time"
)

// Bucket mirrors docmodel.Bucket in the backend's wire shape, kept
// independent of docmodel to avoid an import cycle (sink and aggregate
// both depend on docmodel; esindex must not).
type Bucket struct {
	Count int64 `json:"count"`
	Size  int64 `json:"size"`
}

// Filter scopes a roll-up or delete-by-query operation to one path
// subtree and (optionally) one scan_id (spec §4.7 step 7, §4.8).
type Filter struct {
	PathPrefix string
	ScanID     string
}

// ScanRef is one row of a "prior scan_ids for this path" lookup (spec
// §4.7 step 7).
type ScanRef struct {
	ScanID string
	Status string
}

// LastScan summarizes the most recent volume lifecycle document for a
// path, independent of docmodel.Volume to avoid an import cycle (spec
// §9's Open Question: the daemon loop's interval gating reads this from
// the index rather than a local cache, so a restart never re-scans
// early just because its cache was empty).
type LastScan struct {
	ScanID         string
	Status         string
	StartTimestamp time.Time
	EndTimestamp   time.Time
	LengthSeconds  float64
}

// Backend is the contract the Coordinator, Sink, and Aggregator depend
// on (spec §6, §4.6, §4.7, §4.8). Every method accepts a context so
// callers can bound backend round-trips the way the rest of the
// pipeline bounds queue waits (spec §5 "all blocking waits ... use
// bounded timeouts").
type Backend interface {
	// EnsureAlias creates alias's backing-index template and, if alias
	// does not already resolve to a backing index, creates one and
	// swaps alias onto it atomically (spec §6).
	EnsureAlias(ctx context.Context, alias string) error

	// IndexDocument writes one document to alias and returns the
	// backend-assigned _id (spec §6 "document _id is backend-assigned").
	IndexDocument(ctx context.Context, alias string, doc any) (id string, err error)

	// UpdateDocument applies a partial update to the document with the
	// given id in alias.
	UpdateDocument(ctx context.Context, alias, id string, partial any) error

	// BulkIndex performs one bulk write of docs to alias (spec §4.6).
	BulkIndex(ctx context.Context, alias string, docs []any) error

	// DeleteByQuery deletes every document in alias matching filter,
	// tolerating concurrent-modification conflicts (spec §4.7 step 7
	// "conflicts=proceed").
	DeleteByQuery(ctx context.Context, alias string, filter Filter) error

	// SumByBucket issues the "filter by (path subtree, scan_id) -> sum
	// per bucket" roll-up query against bucketField's dynamic object
	// map (spec §4.8).
	SumByBucket(ctx context.Context, alias string, filter Filter, bucketField string) (map[string]Bucket, error)

	// FieldNames discovers the live set of dynamic bucket keys under
	// bucketField from alias's current mapping (spec §4.8, §9 "dynamic
	// bucket discovery").
	FieldNames(ctx context.Context, alias, bucketField string) ([]string, error)

	// PriorScanIDs returns every scan_id previously recorded for path in
	// the volume index, excluding excludeScanID (spec §4.7 step 7).
	PriorScanIDs(ctx context.Context, alias, path, excludeScanID string) ([]ScanRef, error)

	// LastScan returns the most recently started volume document for
	// path, or ok=false if none exists (spec §9, daemon interval
	// gating).
	LastScan(ctx context.Context, alias, path string) (result LastScan, ok bool, err error)

	// Totals sums the top-level size/count fields over every document
	// matching filter, with no bucket grouping (spec §4.7 step 8
	// "size/count roll-up on the current scan").
	Totals(ctx context.Context, alias string, filter Filter) (size, count int64, err error)
}

// BackingIndexName formats the `{alias}-YYYYMMDDHHMMSSffffff` name spec
// §6 mandates for a template's concrete backing index.
func BackingIndexName(alias string, t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s-%s%06d", alias, u.Format("20060102150405"), u.Nanosecond()/1000)
}
