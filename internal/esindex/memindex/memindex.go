// Package memindex is an in-memory fake of esindex.Backend, used by
// package tests the way the teacher's internal/db/writer_test.go opens a
// sqlite ":memory:" DB instead of a real file — here standing in for a
// live Elasticsearch cluster.
package memindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cedadev/gws-scanner/internal/esindex"
)

type storedDoc struct {
	id   string
	body map[string]any
}

// Backend is a single process's worth of indices, all held in memory.
type Backend struct {
	mu      sync.Mutex
	docs    map[string][]*storedDoc // alias -> documents
	aliases map[string]bool
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{
		docs:    make(map[string][]*storedDoc),
		aliases: make(map[string]bool),
	}
}

var _ esindex.Backend = (*Backend)(nil)

func (b *Backend) EnsureAlias(ctx context.Context, alias string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aliases[alias] = true
	if _, ok := b.docs[alias]; !ok {
		b.docs[alias] = nil
	}
	return nil
}

func (b *Backend) IndexDocument(ctx context.Context, alias string, doc any) (string, error) {
	m, err := toMap(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.docs[alias] = append(b.docs[alias], &storedDoc{id: id, body: m})
	b.mu.Unlock()
	return id, nil
}

func (b *Backend) UpdateDocument(ctx context.Context, alias, id string, partial any) error {
	m, err := toMap(partial)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.docs[alias] {
		if d.id == id {
			for k, v := range m {
				d.body[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("memindex: no document %s/%s", alias, id)
}

func (b *Backend) BulkIndex(ctx context.Context, alias string, docs []any) error {
	for _, doc := range docs {
		if _, err := b.IndexDocument(ctx, alias, doc); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) DeleteByQuery(ctx context.Context, alias string, filter esindex.Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.docs[alias][:0]
	for _, d := range b.docs[alias] {
		if matches(d.body, filter) {
			continue
		}
		kept = append(kept, d)
	}
	b.docs[alias] = kept
	return nil
}

func (b *Backend) SumByBucket(ctx context.Context, alias string, filter esindex.Filter, bucketField string) (map[string]esindex.Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]esindex.Bucket)
	for _, d := range b.docs[alias] {
		if !matches(d.body, filter) {
			continue
		}
		raw, ok := d.body[bucketField]
		if !ok {
			continue
		}
		buckets, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for key, v := range buckets {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			cur := out[key]
			cur.Count += toInt64(entry["count"])
			cur.Size += toInt64(entry["size"])
			out[key] = cur
		}
	}
	for k, v := range out {
		if v.Count == 0 && v.Size == 0 {
			delete(out, k)
		}
	}
	return out, nil
}

func (b *Backend) FieldNames(ctx context.Context, alias, bucketField string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]struct{}{}
	for _, d := range b.docs[alias] {
		raw, ok := d.body[bucketField]
		if !ok {
			continue
		}
		buckets, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for key := range buckets {
			seen[key] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	return names, nil
}

func (b *Backend) PriorScanIDs(ctx context.Context, alias, path, excludeScanID string) ([]esindex.ScanRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var refs []esindex.ScanRef
	for _, d := range b.docs[alias] {
		if d.id == excludeScanID {
			continue
		}
		p, _ := d.body["path"].(string)
		if p != path {
			continue
		}
		status, _ := d.body["status"].(string)
		refs = append(refs, esindex.ScanRef{ScanID: d.id, Status: status})
	}
	return refs, nil
}

func (b *Backend) Totals(ctx context.Context, alias string, filter esindex.Filter) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var size, count int64
	for _, d := range b.docs[alias] {
		if !matches(d.body, filter) {
			continue
		}
		size += toInt64(d.body["size"])
		count += toInt64(d.body["count"])
	}
	return size, count, nil
}

func (b *Backend) LastScan(ctx context.Context, alias, path string) (esindex.LastScan, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var best *storedDoc
	var bestStart time.Time
	for _, d := range b.docs[alias] {
		p, _ := d.body["path"].(string)
		if p != path {
			continue
		}
		start := parseTime(d.body["start_timestamp"])
		if best == nil || start.After(bestStart) {
			best = d
			bestStart = start
		}
	}
	if best == nil {
		return esindex.LastScan{}, false, nil
	}
	status, _ := best.body["status"].(string)
	return esindex.LastScan{
		ScanID:         best.id,
		Status:         status,
		StartTimestamp: bestStart,
		EndTimestamp:   parseTime(best.body["end_timestamp"]),
		LengthSeconds:  toFloat64(best.body["length"]),
	}, true, nil
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Get returns one document's body, for test assertions.
func (b *Backend) Get(alias, id string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.docs[alias] {
		if d.id == id {
			return d.body, true
		}
	}
	return nil, false
}

// Count returns the number of documents currently held in alias.
func (b *Backend) Count(alias string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs[alias])
}

func matches(body map[string]any, filter esindex.Filter) bool {
	if filter.PathPrefix != "" {
		p, _ := body["path"].(string)
		prefix := strings.TrimSuffix(filter.PathPrefix, "/")
		if p != prefix && !strings.HasPrefix(p, prefix+"/") {
			return false
		}
	}
	if filter.ScanID != "" {
		s, _ := body["scan_id"].(string)
		if s != filter.ScanID {
			return false
		}
	}
	return true
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
