package walk

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/pipeline"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "x"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "y"), []byte("y"), 0o644))
}

func drain(q *pipeline.Queue[Task]) []Task {
	var out []Task
	for {
		task, ok, timedOut := q.GetTimeout(50 * time.Millisecond)
		if timedOut || !ok {
			return out
		}
		out = append(out, task)
		q.TaskDone()
	}
}

func TestWalkerDefaultPolicyVisitsEveryDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[Task](16, abort)
	w := New(root, NewPolicy(nil, nil, nil, 0), tasks, abort)

	go func() {
		err := w.Run(context.Background(), "scan-1", time.Now())
		require.NoError(t, err)
		tasks.Close()
	}()

	got := drain(tasks)
	var paths []string
	for _, tk := range got {
		paths = append(paths, tk.DirPath)
		assert.False(t, tk.AggregateSubdirs)
		assert.Nil(t, tk.SubdirNames)
	}
	assert.ElementsMatch(t, []string{root, filepath.Join(root, "sub"), filepath.Join(root, "sub", "deep")}, paths)
}

// S2: aggregate_subdir_names=['sub'] prunes at /t/sub, which then carries
// the subtree (spec §8 S2).
func TestWalkerAggregateSubdirNamesPrunes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[Task](16, abort)
	policy := NewPolicy(nil, nil, []string{"sub"}, 0)
	w := New(root, policy, tasks, abort)

	go func() {
		err := w.Run(context.Background(), "scan-1", time.Now())
		require.NoError(t, err)
		tasks.Close()
	}()

	got := drain(tasks)
	require.Len(t, got, 2)

	byPath := map[string]Task{}
	for _, tk := range got {
		byPath[tk.DirPath] = tk
	}

	rootTask, ok := byPath[root]
	require.True(t, ok)
	assert.False(t, rootTask.AggregateSubdirs)

	subTask, ok := byPath[filepath.Join(root, "sub")]
	require.True(t, ok)
	assert.True(t, subTask.AggregateSubdirs)
	assert.Equal(t, []string{"deep"}, subTask.SubdirNames)
}

func TestWalkerScanDepthAggregatesAtCutoff(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	abort := pipeline.NewAbort()
	tasks := pipeline.NewQueue[Task](16, abort)
	policy := NewPolicy(nil, nil, nil, 1)
	w := New(root, policy, tasks, abort)

	go func() {
		err := w.Run(context.Background(), "scan-1", time.Now())
		require.NoError(t, err)
		tasks.Close()
	}()

	got := drain(tasks)
	require.Len(t, got, 2)
	for _, tk := range got {
		if tk.DirPath == root {
			assert.False(t, tk.AggregateSubdirs)
		} else {
			assert.True(t, tk.AggregateSubdirs)
		}
	}
}
