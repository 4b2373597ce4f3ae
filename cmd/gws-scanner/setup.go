package main

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/config"
	"github.com/cedadev/gws-scanner/internal/coordinator"
	"github.com/cedadev/gws-scanner/internal/esindex"
	gwslog "github.com/cedadev/gws-scanner/internal/log"
	"github.com/cedadev/gws-scanner/internal/scan"
	"github.com/cedadev/gws-scanner/internal/walk"
)

// buildCoordinator wires a Coordinator from cfg the way the teacher's
// cmd/dug/scan.go wires a snapshot.Manager from its own flag set:
// logging first, then the backend client, then the shared
// classification tables every scan of this process reuses (spec §9
// "the backend connection is established per-process").
func buildCoordinator(cfg config.Config) (*coordinator.Coordinator, error) {
	gwslog.Init(gwslog.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.ElasticsearchURL}})
	if err != nil {
		return nil, fmt.Errorf("build elasticsearch client: %w", err)
	}
	backend := esindex.NewClient(es, gwslog.WithComponent("esindex"))

	opts := scan.Options{
		Workers:                cfg.ScanWorkers,
		AbsorbWorkersPerWorker: cfg.AbsorbWorkersPerScanWorker,
		QueueLengthScaleFactor: cfg.QueueLengthScaleFactor,
		TaskWaitTimeout:        scan.DefaultOptions().TaskWaitTimeout,
	}

	mounts := classify.NewMountTable()
	owners := classify.NewOwnerResolver()

	return coordinator.New(backend, mounts, owners, opts, gwslog.WithComponent("coordinator")), nil
}

// policyFor resolves a volume's effective walk.Policy from cfg's
// per-volume admin override through spec §6's three-way merge. Both the
// defaults and the user tiers are passed as empty VolumePolicy values,
// so the result is the admin override alone (lists de-duplicated, a
// non-positive scan_depth meaning no limit).
func policyFor(cfg config.Config, root string) walk.Policy {
	admin := cfg.Volumes[root]
	merged := config.MergePolicy(config.VolumePolicy{}, config.VolumePolicy{}, admin)
	return walk.NewPolicy(merged.FullItemWalkDirs, merged.AggregateSubdirPaths, merged.AggregateSubdirNames, merged.ScanDepth)
}
