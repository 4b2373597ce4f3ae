package memindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/esindex"
)

func TestIndexAndSumByBucket(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.EnsureAlias(ctx, "data_index"))

	_, err := b.IndexDocument(ctx, "data_index", map[string]any{
		"path":    "/t",
		"scan_id": "scan-1",
		"filetypes": map[string]any{
			"text__plain": map[string]any{"count": 2, "size": 10},
		},
	})
	require.NoError(t, err)

	sums, err := b.SumByBucket(ctx, "data_index", esindex.Filter{PathPrefix: "/t", ScanID: "scan-1"}, "filetypes")
	require.NoError(t, err)
	assert.Equal(t, esindex.Bucket{Count: 2, Size: 10}, sums["text__plain"])
}

func TestDeleteByQueryRemovesSupersededScan(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.EnsureAlias(ctx, "data_index"))

	_, err := b.IndexDocument(ctx, "data_index", map[string]any{"path": "/t", "scan_id": "old"})
	require.NoError(t, err)
	_, err = b.IndexDocument(ctx, "data_index", map[string]any{"path": "/t", "scan_id": "new"})
	require.NoError(t, err)

	require.NoError(t, b.DeleteByQuery(ctx, "data_index", esindex.Filter{PathPrefix: "/t", ScanID: "old"}))
	assert.Equal(t, 1, b.Count("data_index"))
}

func TestPriorScanIDsExcludesCurrent(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.EnsureAlias(ctx, "volume_index"))

	oldID, err := b.IndexDocument(ctx, "volume_index", map[string]any{"path": "/t", "status": "complete"})
	require.NoError(t, err)
	newID, err := b.IndexDocument(ctx, "volume_index", map[string]any{"path": "/t", "status": "in_progress"})
	require.NoError(t, err)

	refs, err := b.PriorScanIDs(ctx, "volume_index", "/t", newID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, oldID, refs[0].ScanID)
}
