package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/classify"
	"github.com/cedadev/gws-scanner/internal/docmodel"
	"github.com/cedadev/gws-scanner/internal/esindex"
	"github.com/cedadev/gws-scanner/internal/esindex/memindex"
	"github.com/cedadev/gws-scanner/internal/scan"
	"github.com/cedadev/gws-scanner/internal/walk"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), make([]byte, 5), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), make([]byte, 7), 0o644))
}

func TestScanProducesCompleteVolumeDocument(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	backend := memindex.New()
	ctx := context.Background()
	opts := scan.DefaultOptions()
	opts.Workers = 2
	opts.AbsorbWorkersPerWorker = 2

	c := New(backend, classify.NewMountTable(), classify.NewOwnerResolver(), opts, zerolog.Nop())
	require.NoError(t, c.EnsureIndices(ctx))

	vol, err := c.Scan(ctx, root, walk.Policy{})
	require.NoError(t, err)

	assert.Equal(t, docmodel.StatusComplete, vol.Status)
	require.NotNil(t, vol.Size)
	require.NotNil(t, vol.Count)
	assert.GreaterOrEqual(t, *vol.Size, int64(12))
	assert.GreaterOrEqual(t, *vol.Count, int64(4)) // root, a.txt, sub, b.txt
	assert.NotEmpty(t, vol.ScanID)

	assert.Greater(t, backend.Count(DataAlias), 0)
}

func TestScanSupersedesPriorScanOfSamePath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	backend := memindex.New()
	ctx := context.Background()
	opts := scan.DefaultOptions()

	c := New(backend, classify.NewMountTable(), classify.NewOwnerResolver(), opts, zerolog.Nop())
	require.NoError(t, c.EnsureIndices(ctx))

	first, err := c.Scan(ctx, root, walk.Policy{})
	require.NoError(t, err)

	second, err := c.Scan(ctx, root, walk.Policy{})
	require.NoError(t, err)

	refs, err := backend.PriorScanIDs(ctx, VolumeAlias, root, second.ScanID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, first.ScanID, refs[0].ScanID)
	assert.Equal(t, string(docmodel.StatusRemoved), refs[0].Status)

	remaining, err := backend.SumByBucket(ctx, DataAlias, esindex.Filter{PathPrefix: root, ScanID: first.ScanID}, "filetypes")
	require.NoError(t, err)
	assert.Empty(t, remaining, "superseded scan's data_index documents should be deleted")
}

func TestScanFailsOnMissingRoot(t *testing.T) {
	backend := memindex.New()
	ctx := context.Background()
	opts := scan.DefaultOptions()

	c := New(backend, classify.NewMountTable(), classify.NewOwnerResolver(), opts, zerolog.Nop())
	require.NoError(t, c.EnsureIndices(ctx))

	_, err := c.Scan(ctx, filepath.Join(t.TempDir(), "does-not-exist"), walk.Policy{})
	assert.Error(t, err)
}
