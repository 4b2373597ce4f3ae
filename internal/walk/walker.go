package walk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cedadev/gws-scanner/internal/entry"
	"github.com/cedadev/gws-scanner/internal/pipeline"
)

// Task is the tuple the Walker emits for Stage A (spec §4.3): (dirpath,
// subdir_names, file_names, walk_items, aggregate_subdirs,
// start_timestamp, scan_id). SubdirNames is only populated (and
// meaningful) when AggregateSubdirs is true; it is always a fresh
// snapshot, never a slice aliasing Walker-internal state (spec §4.3 "the
// subdir list must be snapshotted").
type Task struct {
	DirPath          string
	SubdirNames      []string
	FileNames        []string
	WalkItems        bool
	AggregateSubdirs bool
	StartTimestamp   time.Time
	ScanID           string
}

// Walker performs the top-down traversal described by spec §4.3. The
// Coordinator runs it in its own goroutine, alongside the Stage A pool
// and the sink, and it feeds tasks into a bounded pipeline.Queue shared
// with the Stage A pool.
type Walker struct {
	root   string
	policy Policy
	tasks  *pipeline.Queue[Task]
	abort  *pipeline.Abort
}

// New returns a Walker that emits onto tasks and observes abort.
func New(root string, policy Policy, tasks *pipeline.Queue[Task], abort *pipeline.Abort) *Walker {
	return &Walker{root: root, policy: policy, tasks: tasks, abort: abort}
}

// Run walks root top-down, emitting one Task per visited directory, and
// returns once the whole tree (modulo pruning) has been enumerated or the
// context/abort signal fires. It never descends past a directory for
// which aggregate_subdirs is true (spec §4.3: "prunes the traversal at
// D... descendants will be enumerated inside Stage A").
func (w *Walker) Run(ctx context.Context, scanID string, start time.Time) error {
	return w.walkDir(ctx, w.root, 0, scanID, start)
}

func (w *Walker) walkDir(ctx context.Context, dir string, depth int, scanID string, start time.Time) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if w.abort.Fired() {
		return fmt.Errorf("walk aborted at %s: %w", dir, w.abort.Err())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			// Transient per-inode error (spec §7): drop this directory's
			// task rather than aborting the whole scan. The Walker has no
			// logger, so no warning is emitted for it.
			return nil
		}
		w.abort.Set(err)
		return err
	}

	var subdirNames, fileNames []string
	for _, de := range entries {
		if de.IsDir() {
			subdirNames = append(subdirNames, de.Name())
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if entry.KindFromMode(info.Mode()) != entry.KindDir {
			fileNames = append(fileNames, de.Name())
		}
	}

	aggregate := w.policy.aggregateSubdirs(dir, depth)
	task := Task{
		DirPath:          dir,
		FileNames:        fileNames,
		WalkItems:        w.policy.walkItems(dir),
		AggregateSubdirs: aggregate,
		StartTimestamp:   start,
		ScanID:           scanID,
	}
	if aggregate {
		// Snapshot: this slice is never mutated again, and the Walker
		// itself uses it only to decide not to descend (spec §4.3).
		task.SubdirNames = append([]string(nil), subdirNames...)
	}

	if !w.tasks.Put(task) {
		return fmt.Errorf("walk aborted queueing %s: %w", dir, w.abort.Err())
	}

	if aggregate {
		return nil
	}

	for _, name := range subdirNames {
		if err := w.walkDir(ctx, filepath.Join(dir, name), depth+1, scanID, start); err != nil {
			return err
		}
	}
	return nil
}
