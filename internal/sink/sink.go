// Package sink implements Stage C (spec §4.6): the single sink worker
// that batches completed directory documents and bulk-writes them to the
// index backend. It is grounded on the teacher's internal/db.Ingester
// (internal/db/writer.go): the same select-loop-plus-ticker batching
// shape, generalized from four SQLite-bound channels to one
// pipeline.Queue of docmodel.Snapshot flushed through esindex.Backend.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/esindex"
	"github.com/cedadev/gws-scanner/internal/pipeline"
)

// DefaultIdleTimeout is the default flush-on-idle window (spec §4.6:
// "the input queue is empty for a timeout (default 10 s)").
const DefaultIdleTimeout = 10 * time.Second

// MinBatchThreshold is the floor on the staging-list flush threshold
// (spec §4.6: "max(1000, queue_length_scale_factor)").
const MinBatchThreshold = 1000

// Sink is Stage C (spec §4.6, §5 "a single process").
type Sink struct {
	backend     esindex.Backend
	alias       string
	docs        *pipeline.Queue[docmodel.Snapshot]
	abort       *pipeline.Abort
	threshold   int
	idleTimeout time.Duration
	log         zerolog.Logger

	flushed int64
}

// New builds a Sink. The flush threshold used is
// max(MinBatchThreshold, threshold): a threshold below MinBatchThreshold
// is raised to it (spec §4.6).
func New(backend esindex.Backend, alias string, docs *pipeline.Queue[docmodel.Snapshot], abort *pipeline.Abort, threshold int, idleTimeout time.Duration, log zerolog.Logger) *Sink {
	if threshold < MinBatchThreshold {
		threshold = MinBatchThreshold
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Sink{
		backend:     backend,
		alias:       alias,
		docs:        docs,
		abort:       abort,
		threshold:   threshold,
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "sink").Logger(),
	}
}

// Run drains docs until it is closed (normal shutdown, spec §4.7 step 3)
// or abort fires, flushing whenever staging reaches threshold, the queue
// goes idle for idleTimeout, or (on normal shutdown) staging is
// non-empty at exit (spec §4.6).
func (s *Sink) Run(ctx context.Context) error {
	staging := make([]docmodel.Snapshot, 0, s.threshold)

	for {
		doc, ok, timedOut := s.docs.GetTimeout(s.idleTimeout)
		switch {
		case ok:
			staging = append(staging, doc)
			s.docs.TaskDone()
			if len(staging) >= s.threshold {
				if err := s.flush(ctx, &staging); err != nil {
					s.abort.Set(err)
					return err
				}
			}
		case timedOut:
			if len(staging) > 0 {
				if err := s.flush(ctx, &staging); err != nil {
					s.abort.Set(err)
					return err
				}
			}
		default:
			if s.abort.Fired() {
				return fmt.Errorf("sink aborted: %w", s.abort.Err())
			}
			// Queue closed normally: drain whatever remains and exit
			// (spec §4.6 "shutdown has been signalled and staging is
			// non-empty").
			if len(staging) > 0 {
				if err := s.flush(ctx, &staging); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

func (s *Sink) flush(ctx context.Context, staging *[]docmodel.Snapshot) error {
	docs := make([]any, len(*staging))
	for i, d := range *staging {
		docs[i] = d
	}
	if err := s.backend.BulkIndex(ctx, s.alias, docs); err != nil {
		return fmt.Errorf("bulk write %d documents: %w", len(docs), err)
	}
	s.flushed += int64(len(docs))
	s.log.Debug().Int("count", len(docs)).Int64("total", s.flushed).Msg("flushed documents")
	*staging = (*staging)[:0]
	return nil
}

// Flushed returns the total number of documents written so far.
func (s *Sink) Flushed() int64 {
	return s.flushed
}
