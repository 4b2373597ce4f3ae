package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedadev/gws-scanner/internal/esindex/memindex"
)

func TestRunProducesNonZeroBucketsOnly(t *testing.T) {
	ctx := context.Background()
	backend := memindex.New()
	require.NoError(t, backend.EnsureAlias(ctx, "data_index"))
	require.NoError(t, backend.EnsureAlias(ctx, "aggregate_index"))

	_, err := backend.IndexDocument(ctx, "data_index", map[string]any{
		"path":    "/t",
		"scan_id": "scan-1",
		"filetypes": map[string]any{
			"text__plain":      map[string]any{"count": 1, "size": 5},
			"__directory__": map[string]any{"count": 0, "size": 0},
		},
		"users": map[string]any{
			"alice": map[string]any{"count": 2, "size": 9},
		},
		"heat_bins": map[string]any{
			"1h-1d": map[string]any{"count": 1, "size": 5},
		},
	})
	require.NoError(t, err)

	a := New(backend, "data_index", "aggregate_index", zerolog.Nop())
	start := time.Now().Add(-time.Hour)
	end := time.Now()
	records := a.Run(ctx, "/t", "scan-1", start, end)

	var sawFiletype, sawDirectory, sawUser, sawHeat bool
	for _, r := range records {
		switch r.Identifier {
		case "text__plain":
			sawFiletype = true
		case "__directory__":
			sawDirectory = true
		case "alice":
			sawUser = true
		case "1h-1d":
			sawHeat = true
		}
	}
	assert.True(t, sawFiletype)
	assert.False(t, sawDirectory, "zero-count bucket must not produce a record")
	assert.True(t, sawUser)
	assert.True(t, sawHeat)

	require.NoError(t, a.Write(ctx, records))
	assert.Equal(t, len(records), backend.Count("aggregate_index"))
}

func TestHeatBinsUsesFixedKeySet(t *testing.T) {
	ctx := context.Background()
	backend := memindex.New()
	require.NoError(t, backend.EnsureAlias(ctx, "data_index"))
	require.NoError(t, backend.EnsureAlias(ctx, "aggregate_index"))

	_, err := backend.IndexDocument(ctx, "data_index", map[string]any{
		"path":    "/t",
		"scan_id": "scan-1",
		// heat_bins holds only a key outside the fixed partition: keys
		// discovered from the data would yield a record for it, the
		// fixed key set yields none.
		"heat_bins": map[string]any{
			"not-a-heat-band": map[string]any{"count": 1, "size": 5},
		},
	})
	require.NoError(t, err)

	a := New(backend, "data_index", "aggregate_index", zerolog.Nop())
	records := a.Run(ctx, "/t", "scan-1", time.Now(), time.Now())
	assert.Empty(t, records)
}
