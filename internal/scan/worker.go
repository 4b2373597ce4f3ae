// Package scan implements Stage A (scan workers) and Stage B (absorb
// workers), spec §4.4/§4.5. It is grounded on the teacher's
// internal/scan/worker.go: the queue-pull-and-process loop, the
// stack-based enqueue-or-process fallback, and the per-child
// os.Lstat/kind dispatch are kept, retargeted from SQLite entry rows
// onto docmodel.Document absorption.
//
// Redesign (spec §5, §9): the original's OS-process-per-worker model
// (Python multiprocessing) becomes a goroutine pool — Go has no GIL to
// bypass, so parallel goroutines already get the concurrency the
// original used processes for. Likewise Stage B's OS-thread pool
// becomes a bounded goroutine pool local to each Stage-A worker.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/entry"
	"github.com/cedadev/gws-scanner/internal/pipeline"
	"github.com/cedadev/gws-scanner/internal/walk"
)

// ErrAbort is the sentinel a stage wraps when it sets the shared abort
// signal, so callers can errors.Is a scan failure without string-
// matching the underlying cause (spec §7). It is a new sentinel with no
// counterpart in original_source/gws_volume_scanner/scanner/errors.py.
var ErrAbort = errors.New("stage aborted")

// absorbTask is the (document, path) pair Stage A hands to Stage B (spec
// §4.4 steps 4-5, §4.5).
type absorbTask struct {
	doc  *docmodel.Document
	path string
}

// Worker is one Stage-A worker: it owns a private Stage-B pool over one
// absorb queue, reused across every directory task it picks up (spec
// §4.4, §4.5, §9 "localizes the deep walk inside one worker's joinable
// absorb queue").
type Worker struct {
	id     int
	opts   Options
	owners *classify.OwnerResolver
	tasks  *pipeline.Queue[walk.Task]
	docs   *pipeline.Queue[docmodel.Snapshot]
	abort  *pipeline.Abort
	absorb *pipeline.Queue[absorbTask]
	log    zerolog.Logger
}

// NewWorker builds one Stage-A worker.
func NewWorker(id int, opts Options, owners *classify.OwnerResolver, tasks *pipeline.Queue[walk.Task], docs *pipeline.Queue[docmodel.Snapshot], abort *pipeline.Abort, log zerolog.Logger) *Worker {
	return &Worker{
		id:     id,
		opts:   opts,
		owners: owners,
		tasks:  tasks,
		docs:   docs,
		abort:  abort,
		absorb: pipeline.NewQueue[absorbTask](opts.AbsorbQueueCapacity(), abort),
		log:    log.With().Int("worker", id).Logger(),
	}
}

// Run starts this worker's Stage-B pool and then pulls tasks until the
// task queue is closed or abort fires (spec §4.4 step 1).
func (w *Worker) Run(ctx context.Context) {
	for i := 0; i < w.opts.AbsorbWorkersPerWorker; i++ {
		go w.absorbLoop(ctx)
	}
	defer w.absorb.Close()

	for {
		task, ok, timedOut := w.tasks.GetTimeout(w.opts.TaskWaitTimeout)
		if timedOut {
			if ctx.Err() != nil || w.abort.Fired() {
				return
			}
			continue
		}
		if !ok {
			return
		}
		w.processTask(ctx, task)
		w.tasks.TaskDone()
		if w.abort.Fired() {
			return
		}
	}
}

func (w *Worker) processTask(ctx context.Context, task walk.Task) {
	doc, err := docmodel.Construct(task.DirPath, task.ScanID, task.StartTimestamp, nil, w.owners)
	if err != nil {
		if entry.IsTransient(err) {
			w.log.Warn().Err(err).Str("path", task.DirPath).Msg("dropping task: lstat failed")
			return
		}
		w.abort.Set(fmt.Errorf("%w: %s: %v", ErrAbort, task.DirPath, err))
		return
	}

	if task.WalkItems {
		// Per-file granularity: each file gets its own directory-sized
		// document, not folded into doc (spec §4.4 step 3).
		for _, name := range task.FileNames {
			filePath := filepath.Join(task.DirPath, name)
			fileDoc, err := docmodel.Construct(filePath, task.ScanID, task.StartTimestamp, nil, w.owners)
			if err != nil {
				if entry.IsTransient(err) {
					w.log.Warn().Err(err).Str("path", filePath).Msg("skipping file: lstat failed")
					continue
				}
				w.abort.Set(fmt.Errorf("%w: %s: %v", ErrAbort, filePath, err))
				return
			}
			if !w.docs.Put(fileDoc.Freeze()) {
				return
			}
		}
	} else {
		for _, name := range task.FileNames {
			if !w.absorb.Put(absorbTask{doc: doc, path: filepath.Join(task.DirPath, name)}) {
				return
			}
		}
	}

	if task.AggregateSubdirs {
		for _, name := range task.SubdirNames {
			if w.abort.Fired() {
				return
			}
			w.walkSubtree(doc, filepath.Join(task.DirPath, name))
		}
	}

	if aborted := w.absorb.Join(); aborted {
		return
	}

	w.docs.Put(doc.Freeze())
}

// walkSubtree recursively enumerates every descendant of dir, enqueueing
// each encountered file and directory on the absorb queue (spec §4.4
// step 5: "Stage A re-walks the pruned subtree"). This is the re-walk
// the Walker deliberately skipped (spec §9).
func (w *Worker) walkSubtree(doc *docmodel.Document, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			w.log.Warn().Err(err).Str("path", dir).Msg("readdir failed during aggregation")
			return
		}
		w.abort.Set(fmt.Errorf("%w: %s: %v", ErrAbort, dir, err))
		return
	}

	for _, de := range entries {
		childPath := filepath.Join(dir, de.Name())
		if !w.absorb.Put(absorbTask{doc: doc, path: childPath}) {
			return
		}
		if de.IsDir() {
			w.walkSubtree(doc, childPath)
		}
		if w.abort.Fired() {
			return
		}
	}
}

// absorbLoop is one Stage-B goroutine: it pulls (document, path) pairs
// from the shared absorb queue and folds each into its document (spec
// §4.5).
func (w *Worker) absorbLoop(ctx context.Context) {
	for {
		task, ok := w.absorb.Get()
		if !ok {
			return
		}
		negativeAge, err := task.doc.IncorporateChild(task.path, nil, w.owners)
		if err != nil {
			if entry.IsTransient(err) {
				w.log.Warn().Err(err).Str("path", task.path).Msg("skipping inode: lstat failed")
			} else {
				w.abort.Set(fmt.Errorf("%w: %s: %v", ErrAbort, task.path, err))
			}
		} else if negativeAge {
			w.log.Warn().Str("path", task.path).Msg("atime in the future")
		}
		w.absorb.TaskDone()
	}
}
