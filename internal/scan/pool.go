package scan

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/pipeline"
	"github.com/cedadev/gws-scanner/internal/walk"
)

// Pool is the Stage-A worker pool (spec §4.4 "a pool of worker processes,
// sized by configuration"), generalized from the teacher's
// internal/scan.Scanner's worker-launch loop into a standalone,
// database-agnostic component the Coordinator starts and joins.
type Pool struct {
	opts    Options
	owners  *classify.OwnerResolver
	tasks   *pipeline.Queue[walk.Task]
	docs    *pipeline.Queue[docmodel.Snapshot]
	abort   *pipeline.Abort
	log     zerolog.Logger
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool builds a Stage-A pool of opts.Workers workers sharing tasks,
// docs, and abort.
func NewPool(opts Options, owners *classify.OwnerResolver, tasks *pipeline.Queue[walk.Task], docs *pipeline.Queue[docmodel.Snapshot], abort *pipeline.Abort, log zerolog.Logger) *Pool {
	p := &Pool{opts: opts, owners: owners, tasks: tasks, docs: docs, abort: abort, log: log}
	for i := 0; i < opts.Workers; i++ {
		p.workers = append(p.workers, NewWorker(i, opts, owners, tasks, docs, abort, log))
	}
	return p
}

// Start launches every worker in its own goroutine. It does not block.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Join blocks until every worker has returned (spec §4.7 step 3: "signal
// Stage A shutdown and join").
func (p *Pool) Join() {
	p.wg.Wait()
}
