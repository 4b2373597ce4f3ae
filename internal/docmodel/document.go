// Package docmodel implements the directory document (spec §3, §4.2):
// the in-memory record that absorbs child inodes and renders to the
// sink's wire shape. It is grounded on the teacher's rollup model
// (internal/rollup's incremental mean-heat folding) and on
// original_source/gws_volume_scanner/scanner/models.py's File class,
// which this package's Construct/IncorporateChild pair reimplements.
package docmodel

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/entry"
	"github.com/cedadev/gws-scanner/internal/pathutil"
)

// Bucket is the {count, size} pair stored per bucket key in each of
// the four dynamic maps (spec §3).
type Bucket struct {
	Count int64 `json:"count"`
	Size  int64 `json:"size"`
}

// Document is one directory document (spec §3). It is created by a
// single Stage-A worker, mutated by that worker and its absorb
// workers (spec §4.2, §9), frozen at drain, and then handed by value
// to Stage C.
//
// The mutex is not re-entrant: IncorporateChild never calls itself or
// Construct while holding it (spec §11.2 — Go has no stock re-entrant
// mutex, so the invariant is enforced by call structure instead of a
// hand-rolled recursive lock).
type Document struct {
	mu sync.Mutex

	Path             string    `json:"path"`
	ScanID           string    `json:"scan_id"`
	StartTimestamp   time.Time `json:"start_timestamp"`
	Size             int64     `json:"size"`
	Count            int64     `json:"count"`
	Owner            string    `json:"owner"`
	Atime            time.Time `json:"atime"`
	FileType         string    `json:"filetype"`
	IncludesChildren bool      `json:"includes_children"`
	MeanHeat         float64   `json:"mean_heat"`

	FileTypes map[string]*Bucket `json:"filetypes"`
	SizeBins  map[string]*Bucket `json:"size_bins"`
	HeatBins  map[string]*Bucket `json:"heat_bins"`
	Users     map[string]*Bucket `json:"users"`
}

// Freeze returns a value copy of d's fields with no mutex, safe to hand
// to Stage C by value once the absorb queue has drained (spec §3
// "frozen at drain, and then handed by value to Stage C").
func (d *Document) Freeze() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Path:             d.Path,
		ScanID:           d.ScanID,
		StartTimestamp:   d.StartTimestamp,
		Size:             d.Size,
		Count:            d.Count,
		Owner:            d.Owner,
		Atime:            d.Atime,
		FileType:         d.FileType,
		IncludesChildren: d.IncludesChildren,
		MeanHeat:         d.MeanHeat,
		FileTypes:        cloneBuckets(d.FileTypes),
		SizeBins:         cloneBuckets(d.SizeBins),
		HeatBins:         cloneBuckets(d.HeatBins),
		Users:            cloneBuckets(d.Users),
	}
}

// Snapshot is the immutable, by-value rendering of a Document (spec §3
// "ownership & lifecycle"): what Stage A hands to Stage C once the
// document's absorb queue has drained.
type Snapshot struct {
	Path             string    `json:"path"`
	ScanID           string    `json:"scan_id"`
	StartTimestamp   time.Time `json:"start_timestamp"`
	Size             int64     `json:"size"`
	Count            int64     `json:"count"`
	Owner            string    `json:"owner"`
	Atime            time.Time `json:"atime"`
	FileType         string    `json:"filetype"`
	IncludesChildren bool      `json:"includes_children"`
	MeanHeat         float64   `json:"mean_heat"`

	FileTypes map[string]*Bucket `json:"filetypes"`
	SizeBins  map[string]*Bucket `json:"size_bins"`
	HeatBins  map[string]*Bucket `json:"heat_bins"`
	Users     map[string]*Bucket `json:"users"`
}

func cloneBuckets(src map[string]*Bucket) map[string]*Bucket {
	dst := make(map[string]*Bucket, len(src))
	for k, v := range src {
		b := *v
		dst[k] = &b
	}
	return dst
}

// Owners abstracts uid -> username resolution so Construct and
// IncorporateChild don't each need an *classify.OwnerResolver plumbed
// through every call site; it is satisfied by *classify.OwnerResolver.
type Owners interface {
	Username(uid uint32) string
}

// Construct initializes a directory document from one inode's
// contribution (spec §4.2). If stat is nil, it is obtained via
// lstat(path); a NotFound/PermissionDenied on that lstat is converted
// to a warning and (nil, err) is returned with err wrapping
// entry.ScanError so the caller can silently drop the task (spec
// §4.2, §7).
func Construct(path, scanID string, start time.Time, stat *entry.Stat, owners Owners) (*Document, error) {
	if stat == nil {
		st, err := lstat(path)
		if err != nil {
			return nil, err
		}
		stat = &st
	}

	d := &Document{
		Path:           pathutil.Latin1Safe(pathutil.StripTrailingSlash(path)),
		ScanID:         scanID,
		StartTimestamp: start,
		Size:           stat.Size,
		Count:          1,
		Atime:          stat.Atime,
		FileType:       classify.FileType(path, stat.Mode),
		Owner:          owners.Username(stat.Uid),
		FileTypes:      make(map[string]*Bucket),
		SizeBins:       make(map[string]*Bucket),
		HeatBins:       make(map[string]*Bucket),
		Users:          make(map[string]*Bucket),
	}

	sizeKey := classify.SizeBand(stat.Size)
	heatKey, _ := classify.HeatBand(start, stat.Atime)

	addBucket(d.FileTypes, d.FileType, stat.Size)
	addBucket(d.SizeBins, sizeKey, stat.Size)
	addBucket(d.HeatBins, heatKey, stat.Size)
	addBucket(d.Users, d.Owner, stat.Size)

	d.MeanHeat = start.Sub(stat.Atime).Seconds()

	return d, nil
}

// IncorporateChild folds one child inode's stats into d (spec §4.2).
// Concurrent callers from multiple absorb workers are serialized by
// d's own mutex (spec §5's "per-document mutual-exclusion lock").
func (d *Document) IncorporateChild(path string, stat *entry.Stat, owners Owners) (negativeAge bool, err error) {
	if stat == nil {
		st, lerr := lstat(path)
		if lerr != nil {
			return false, lerr
		}
		stat = &st
	}

	ftype := classify.FileType(path, stat.Mode)
	sizeKey := classify.SizeBand(stat.Size)
	heatKey, neg := classify.HeatBand(d.StartTimestamp, stat.Atime)
	username := owners.Username(stat.Uid)
	age := d.StartTimestamp.Sub(stat.Atime).Seconds()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.Size += stat.Size
	d.Count++

	addBucket(d.FileTypes, ftype, stat.Size)
	addBucket(d.SizeBins, sizeKey, stat.Size)
	addBucket(d.HeatBins, heatKey, stat.Size)
	addBucket(d.Users, username, stat.Size)

	// Incremental mean update (spec §4.2): mean' = (mean*(count-1) + age) / count.
	d.MeanHeat = (d.MeanHeat*float64(d.Count-1) + age) / float64(d.Count)

	d.IncludesChildren = true

	return neg, nil
}

func addBucket(m map[string]*Bucket, key string, size int64) {
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	b.Count++
	b.Size += size
}

func lstat(path string) (entry.Stat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return entry.Stat{}, fmt.Errorf("%w", entry.ScanError{Path: path, Message: err.Error()})
		}
		return entry.Stat{}, err
	}
	return statFromFileInfo(info), nil
}
