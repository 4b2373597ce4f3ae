// Package coordinator implements the Scan Coordinator (spec §4.7): the
// component that owns one volume scan's lifecycle end to end. It is
// grounded on the teacher's internal/snapshot.Manager.RunScan, which
// acquires a lock, runs the scanner, builds indexes, atomically
// publishes the result, and prunes superseded snapshots — generalized
// here from filesystem snapshot files to Elasticsearch documents:
// create the volume lifecycle document, start Stage C/A/the Walker in
// order, join them down in reverse, aggregate, and supersede prior
// scans of the same path.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cedadev/gws-scanner/internal/aggregate"
	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/esindex"
	"github.com/cedadev/gws-scanner/internal/pipeline"
	"github.com/cedadev/gws-scanner/internal/scan"
	"github.com/cedadev/gws-scanner/internal/sink"
	"github.com/cedadev/gws-scanner/internal/walk"
)

// Index alias names (spec §6).
const (
	DataAlias      = "data_index"
	VolumeAlias    = "volume_index"
	AggregateAlias = "aggregate_index"
)

// Coordinator runs volume scans against one index backend (spec §4.7).
// One Coordinator can run many scans sequentially or concurrently; it
// holds no per-scan state between calls to Scan.
type Coordinator struct {
	backend esindex.Backend
	mounts  *classify.MountTable
	owners  *classify.OwnerResolver
	opts    scan.Options
	log     zerolog.Logger
}

// New builds a Coordinator. opts configures the Stage-A/B pool every
// scan launches (spec §5).
func New(backend esindex.Backend, mounts *classify.MountTable, owners *classify.OwnerResolver, opts scan.Options, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		backend: backend,
		mounts:  mounts,
		owners:  owners,
		opts:    opts,
		log:     log.With().Str("component", "coordinator").Logger(),
	}
}

// EnsureIndices creates the three index aliases and their backing-index
// templates if absent (spec §6). Call once at startup, before any Scan.
func (c *Coordinator) EnsureIndices(ctx context.Context) error {
	for _, alias := range []string{DataAlias, VolumeAlias, AggregateAlias} {
		if err := c.backend.EnsureAlias(ctx, alias); err != nil {
			return fmt.Errorf("ensure alias %s: %w", alias, err)
		}
	}
	return nil
}

// LastScan reports the most recently started scan of root, if any
// (spec §9, daemon interval gating: the caller reads this rather than
// keeping its own cache of "when did I last scan this path").
func (c *Coordinator) LastScan(ctx context.Context, root string) (esindex.LastScan, bool, error) {
	return c.backend.LastScan(ctx, VolumeAlias, root)
}

// Scan runs one full volume scan of root under policy and reports the
// final volume lifecycle document (spec §4.7, steps 1-8).
func (c *Coordinator) Scan(ctx context.Context, root string, policy walk.Policy) (*docmodel.Volume, error) {
	log := c.log.With().Str("path", root).Logger()

	// Step 1: create the volume lifecycle document in state in_progress.
	start := time.Now()
	cap, err := classify.Statfs(root)
	if err != nil {
		return nil, fmt.Errorf("statfs %s: %w", root, err)
	}
	fsType, fsSpec := classify.UnknownFSType, classify.UnknownFSSpec
	if mi, ok := c.mounts.Lookup(root); ok {
		fsType, fsSpec = mi.VFSType, mi.Spec
	}

	vol := docmodel.NewVolume(root, start, docmodel.Capacity{
		VolSize:       cap.Size,
		VolSizeAvail:  cap.SizeAvail,
		VolSizeUsed:   cap.SizeUsed,
		VolCount:      cap.Count,
		VolCountAvail: cap.CountAvail,
		VolCountUsed:  cap.CountUsed,
	}, fsType, fsSpec)

	scanID, err := c.backend.IndexDocument(ctx, VolumeAlias, vol)
	if err != nil {
		return nil, fmt.Errorf("create volume document: %w", err)
	}
	vol.ScanID = scanID
	log = log.With().Str("scan_id", scanID).Logger()
	log.Info().Msg("scan started")

	scansInFlight.Inc()
	defer scansInFlight.Dec()

	// Step 2: start Stage C, Stage A, and the Walker, in that order, so
	// nothing Stage A produces is ever dropped for lack of a consumer.
	// All three run under one errgroup.Group; the group's first error
	// sets the shared abort signal (spec §11.3).
	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[walk.Task](c.opts.TaskQueueCapacity(), abort)
	docs := pipeline.NewQueue[docmodel.Snapshot](c.opts.DocQueueCapacity(), abort)

	depthDone := make(chan struct{})
	go c.reportQueueDepth(tasks, docs, depthDone)
	defer close(depthDone)

	threshold := c.opts.QueueLengthScaleFactor
	if threshold < sink.MinBatchThreshold {
		threshold = sink.MinBatchThreshold
	}
	sinkWorker := sink.New(c.backend, DataAlias, docs, abort, threshold, sink.DefaultIdleTimeout, log)
	pool := scan.NewPool(c.opts, c.owners, tasks, docs, abort, log)
	walker := walk.New(root, policy, tasks, abort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sinkWorker.Run(gctx); err != nil {
			abort.Set(err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		pool.Start(gctx)
		pool.Join()
		docs.Close()
		return nil
	})
	g.Go(func() error {
		err := walker.Run(gctx, scanID, start)
		if err != nil {
			abort.Set(err)
		}
		tasks.Close()
		return err
	})

	// Step 3: g.Wait blocks until the Walker has finished (closing
	// tasks), Stage A has drained and joined (closing docs), and Stage C
	// has drained and returned (spec §4.7 step 3).
	runErr := g.Wait()

	// Step 4: abort check. A failure anywhere downgrades the volume
	// document to failed and stops here, before aggregation or
	// supersession touch anything (spec §4.7 step 4, §7).
	if runErr != nil || abort.Fired() {
		end := time.Now()
		vol.Fail(end)
		if uerr := c.backend.UpdateDocument(ctx, VolumeAlias, scanID, vol); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to persist failed status")
		}
		cause := abort.Err()
		if cause == nil {
			cause = runErr
		}
		log.Error().Err(cause).Msg("scan failed")
		return vol, fmt.Errorf("scan %s failed: %w", root, cause)
	}

	// Step 5: roll up filetypes/users/heat_bins into the aggregate
	// index. A failure here is logged and does not fail the scan: the
	// per-directory data the sink already made durable stands on its
	// own (spec §4.7 step 5, §7 "transient backend").
	end := time.Now()
	agg := aggregate.New(c.backend, DataAlias, AggregateAlias, log)
	records := agg.Run(ctx, root, scanID, start, end)
	if err := agg.Write(ctx, records); err != nil {
		log.Warn().Err(err).Msg("failed to write aggregate records")
	}

	// Step 6: by this point docs.Close() plus g.Wait() above have already
	// drained and flushed every directory document this scan produced,
	// establishing the happens-before supersession (step 7) depends on:
	// no prior scan's data is deleted until this scan's data is durable.

	// Step 7: supersede prior scans of the same path.
	c.supersede(ctx, root, scanID, log)

	// Step 8: size/count roll-up and final status.
	size, count, err := c.backend.Totals(ctx, DataAlias, esindex.Filter{PathPrefix: root, ScanID: scanID})
	if err != nil {
		log.Warn().Err(err).Msg("failed to compute size/count totals")
	}
	vol.Finalize(end, size, count)
	if err := c.backend.UpdateDocument(ctx, VolumeAlias, scanID, vol); err != nil {
		return vol, fmt.Errorf("persist final volume document: %w", err)
	}

	log.Info().Int64("size", size).Int64("count", count).Msg("scan complete")
	return vol, nil
}

// supersede deletes every data_index document belonging to a prior scan
// of root and transitions that scan's lifecycle status: complete
// becomes removed, anything still in_progress becomes failed (spec §4.7
// step 7). Grounded on original_source/gws_volume_scanner/client/queries.py's
// old_scan_ids plus the teacher's Manager.pruneOldSnapshots retention
// sweep, retargeted from filesystem unlink to DeleteByQuery.
func (c *Coordinator) supersede(ctx context.Context, root, currentScanID string, log zerolog.Logger) {
	priors, err := c.backend.PriorScanIDs(ctx, VolumeAlias, root, currentScanID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list prior scans")
		return
	}
	for _, prior := range priors {
		if err := c.backend.DeleteByQuery(ctx, DataAlias, esindex.Filter{PathPrefix: root, ScanID: prior.ScanID}); err != nil {
			log.Warn().Err(err).Str("prior_scan_id", prior.ScanID).Msg("failed to delete superseded scan data")
			continue
		}
		newStatus := docmodel.StatusRemoved
		if docmodel.VolumeStatus(prior.Status) == docmodel.StatusInProgress {
			newStatus = docmodel.StatusFailed
		}
		if err := c.backend.UpdateDocument(ctx, VolumeAlias, prior.ScanID, map[string]any{"status": newStatus}); err != nil {
			log.Warn().Err(err).Str("prior_scan_id", prior.ScanID).Msg("failed to update superseded scan status")
		}
	}
}

// reportQueueDepth samples the walker->Stage-A and Stage-A->Stage-C
// queue lengths into the pipeline.QueueDepth gauge until done is
// closed (spec §11.3).
func (c *Coordinator) reportQueueDepth(tasks *pipeline.Queue[walk.Task], docs *pipeline.Queue[docmodel.Snapshot], done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			pipeline.Report("walker_tasks", tasks)
			pipeline.Report("stageA_docs", docs)
		}
	}
}
