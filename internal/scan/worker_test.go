package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/pipeline"
	"github.com/cedadev/gws-scanner/internal/walk"
)

// S1: a tree /t/a.txt of 5 bytes scanned with default policy yields one
// document for /t with a.txt absorbed into it, count 2 (spec §8 S1).
func TestStageAAbsorbsFileIntoDirectoryDocument(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), make([]byte, 5), 0o644))

	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[walk.Task](4, abort)
	docs := pipeline.NewQueue[docmodel.Snapshot](4, abort)
	owners := classify.NewOwnerResolver()

	opts := DefaultOptions()
	opts.Workers = 1
	w := NewWorker(0, opts, owners, tasks, docs, abort, zerolog.Nop())

	go w.Run(context.Background())

	require.True(t, tasks.Put(walk.Task{
		DirPath:        root,
		FileNames:      []string{"a.txt"},
		StartTimestamp: time.Now(),
		ScanID:         "scan-1",
	}))
	tasks.Close()

	snap, ok, timedOut := docs.GetTimeout(time.Second)
	require.True(t, ok)
	require.False(t, timedOut)
	docs.TaskDone()

	// The directory's own lstat size varies by filesystem, so size is
	// only asserted to cover the absorbed file's 5 bytes.
	assert.Equal(t, root, snap.Path)
	assert.GreaterOrEqual(t, snap.Size, int64(5))
	assert.Equal(t, int64(2), snap.Count)
	assert.True(t, snap.IncludesChildren)

	var sumSize, sumCount int64
	for _, b := range snap.FileTypes {
		sumSize += b.Size
		sumCount += b.Count
	}
	assert.Equal(t, snap.Size, sumSize)
	assert.Equal(t, snap.Count, sumCount)
}

// S2: aggregate_subdirs carries a subdir list and produces a single
// aggregated document covering the whole subtree (spec §8 S2).
func TestStageAAggregatesWholeSubtree(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "x"), make([]byte, 3), 0o644))

	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[walk.Task](4, abort)
	docs := pipeline.NewQueue[docmodel.Snapshot](4, abort)
	owners := classify.NewOwnerResolver()

	opts := DefaultOptions()
	w := NewWorker(0, opts, owners, tasks, docs, abort, zerolog.Nop())
	go w.Run(context.Background())

	require.True(t, tasks.Put(walk.Task{
		DirPath:          sub,
		FileNames:        []string{"x"},
		StartTimestamp:   time.Now(),
		ScanID:           "scan-1",
		AggregateSubdirs: true,
	}))
	tasks.Close()

	snap, ok, timedOut := docs.GetTimeout(time.Second)
	require.True(t, ok)
	require.False(t, timedOut)
	docs.TaskDone()

	assert.Equal(t, sub, snap.Path)
	assert.GreaterOrEqual(t, snap.Size, int64(3))
	assert.Equal(t, int64(2), snap.Count)
}
