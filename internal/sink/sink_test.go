package sink

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/esindex/memindex"
	"github.com/cedadev/gws-scanner/internal/pipeline"
)

func TestSinkFlushesOnIdleTimeout(t *testing.T) {
	abort := pipeline.NewAbort()
	docs := pipeline.NewQueue[docmodel.Snapshot](16, abort)
	backend := memindex.New()
	require.NoError(t, backend.EnsureAlias(context.Background(), "data_index"))

	s := New(backend, "data_index", docs, abort, 1000, 20*time.Millisecond, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.True(t, docs.Put(docmodel.Snapshot{Path: "/t", ScanID: "scan-1"}))

	require.Eventually(t, func() bool {
		return backend.Count("data_index") == 1
	}, time.Second, 5*time.Millisecond)

	docs.Close()
	require.NoError(t, <-done)
}

func TestSinkFlushesOnThreshold(t *testing.T) {
	abort := pipeline.NewAbort()
	docs := pipeline.NewQueue[docmodel.Snapshot](16, abort)
	backend := memindex.New()
	require.NoError(t, backend.EnsureAlias(context.Background(), "data_index"))

	// The idle timeout is an hour, so only reaching the threshold can
	// flush within the test's wait.
	s := New(backend, "data_index", docs, abort, MinBatchThreshold, time.Hour, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.True(t, docs.Put(docmodel.Snapshot{Path: "/a"}))
	require.True(t, docs.Put(docmodel.Snapshot{Path: "/b"}))
	for i := 2; i < MinBatchThreshold; i++ {
		require.True(t, docs.Put(docmodel.Snapshot{Path: "/c"}))
	}

	require.Eventually(t, func() bool {
		return backend.Count("data_index") == MinBatchThreshold
	}, time.Second, 5*time.Millisecond)

	docs.Close()
	require.NoError(t, <-done)
}

func TestSinkReturnsAbortError(t *testing.T) {
	abort := pipeline.NewAbort()
	docs := pipeline.NewQueue[docmodel.Snapshot](16, abort)
	backend := memindex.New()

	s := New(backend, "data_index", docs, abort, 1000, 20*time.Millisecond, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	abort.Set(assert.AnError)
	err := <-done
	require.Error(t, err)
}
