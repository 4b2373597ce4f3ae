// Package aggregate implements the Aggregator (spec §4.8): three
// "filter by (path subtree, scan_id) -> sum per bucket" roll-up queries,
// one per category, each materializing a docmodel.Granular row per
// non-zero bucket. It is grounded on
// original_source/gws_volume_scanner/scanner/aggregate.py's
// aggregate_filetypes/aggregate_users/aggregate_heat, reimplemented
// against esindex.Backend instead of Python's queries module.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/esindex"
)

// Aggregator issues the post-scan roll-up queries and writes the
// resulting granular records to the aggregate index (spec §4.7 step 5).
type Aggregator struct {
	backend        esindex.Backend
	dataAlias      string
	aggregateAlias string
	log            zerolog.Logger
}

// New builds an Aggregator reading from dataAlias and writing to
// aggregateAlias.
func New(backend esindex.Backend, dataAlias, aggregateAlias string, log zerolog.Logger) *Aggregator {
	return &Aggregator{backend: backend, dataAlias: dataAlias, aggregateAlias: aggregateAlias, log: log.With().Str("component", "aggregate").Logger()}
}

// categories is the fixed set spec §4.7 step 5 iterates: {filetypes,
// users, heat_bins}.
var categories = []struct {
	bucketField string
	category    docmodel.GranularCategory
	fixedKeys   []string // non-empty only for heat_bins (spec §4.8, §9)
}{
	{bucketField: "filetypes", category: docmodel.CategoryFiletypes},
	{bucketField: "users", category: docmodel.CategoryUsers},
	{bucketField: "heat_bins", category: docmodel.CategoryHeatBins, fixedKeys: classify.HeatBandKeys()},
}

// Run executes all three roll-up queries against path/scanID and returns
// the non-zero granular rows. A connection/timeout error on one category
// is logged and that category is skipped, not fatal (spec §7 "transient
// backend").
func (a *Aggregator) Run(ctx context.Context, path, scanID string, start, end time.Time) []docmodel.Granular {
	var records []docmodel.Granular
	for _, c := range categories {
		rows, err := a.rollup(ctx, path, scanID, start, end, c.bucketField, c.category, c.fixedKeys)
		if err != nil {
			a.log.Warn().Err(err).Str("category", string(c.category)).Msg("skipping aggregate category")
			continue
		}
		records = append(records, rows...)
	}
	return records
}

func (a *Aggregator) rollup(ctx context.Context, path, scanID string, start, end time.Time, bucketField string, category docmodel.GranularCategory, fixedKeys []string) ([]docmodel.Granular, error) {
	sums, err := a.backend.SumByBucket(ctx, a.dataAlias, esindex.Filter{PathPrefix: path, ScanID: scanID}, bucketField)
	if err != nil {
		return nil, fmt.Errorf("roll-up %s: %w", bucketField, err)
	}

	keys := fixedKeys
	if keys == nil {
		// filetypes/users: discover dynamically from the live mapping
		// (spec §4.8, §9 "dynamic bucket discovery" — never pre-declare).
		discovered, err := a.backend.FieldNames(ctx, a.dataAlias, bucketField)
		if err != nil {
			return nil, fmt.Errorf("discover %s buckets: %w", bucketField, err)
		}
		keys = discovered
	}

	var records []docmodel.Granular
	for _, key := range keys {
		b, ok := sums[key]
		if !ok || (b.Count == 0 && b.Size == 0) {
			continue
		}
		records = append(records, docmodel.Granular{
			Path:           path,
			ScanID:         scanID,
			Category:       category,
			Identifier:     key,
			Size:           b.Size,
			Count:          b.Count,
			StartTimestamp: start,
			EndTimestamp:   end,
		})
	}
	return records, nil
}

// Write persists records to the aggregate index via a bulk write (spec
// §4.7 step 5 "emit granular records to the aggregate index").
func (a *Aggregator) Write(ctx context.Context, records []docmodel.Granular) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}
	return a.backend.BulkIndex(ctx, a.aggregateAlias, docs)
}
