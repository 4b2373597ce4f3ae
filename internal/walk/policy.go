// Package walk implements the Walker (spec §4.3): a policy-driven,
// top-down directory enumeration that emits scan tasks for Stage A and
// prunes the traversal at aggregation roots. It is grounded on the
// teacher's directory-enumeration loop in internal/scan/worker.go
// (os.ReadDir + per-child os.Lstat dispatch), adapted from a single flat
// worker pool into a policy-evaluating producer that feeds a pipeline.Queue
// of tasks rather than walking the whole tree itself.
package walk

import "path/filepath"

// Policy is the per-volume scan policy (spec §4.3, §6):
// full_item_walk_dirs, aggregate_subdir_paths, aggregate_subdir_names,
// scan_depth.
type Policy struct {
	FullItemWalkDirs     map[string]struct{}
	AggregateSubdirPaths map[string]struct{}
	AggregateSubdirNames map[string]struct{}
	ScanDepth            int
}

// NewPolicy builds a Policy from slice inputs, the shape config.Config
// naturally carries after a three-way merge (spec §6).
func NewPolicy(fullItemWalkDirs, aggregateSubdirPaths, aggregateSubdirNames []string, scanDepth int) Policy {
	p := Policy{
		FullItemWalkDirs:     toSet(fullItemWalkDirs),
		AggregateSubdirPaths: toSet(aggregateSubdirPaths),
		AggregateSubdirNames: toSet(aggregateSubdirNames),
		ScanDepth:            scanDepth,
	}
	return p
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// walkItems implements spec §4.3's walk_items predicate: D ∈
// full_item_walk_dirs.
func (p Policy) walkItems(dir string) bool {
	_, ok := p.FullItemWalkDirs[dir]
	return ok
}

// aggregateSubdirs implements spec §4.3's aggregate_subdirs predicate:
// depth(D) >= scan_depth OR D ∈ aggregate_subdir_paths OR basename(D) ∈
// aggregate_subdir_names.
func (p Policy) aggregateSubdirs(dir string, depth int) bool {
	if p.ScanDepth > 0 && depth >= p.ScanDepth {
		return true
	}
	if _, ok := p.AggregateSubdirPaths[dir]; ok {
		return true
	}
	if _, ok := p.AggregateSubdirNames[filepath.Base(dir)]; ok {
		return true
	}
	return false
}
