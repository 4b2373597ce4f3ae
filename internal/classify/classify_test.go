package classify

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeBandMonotone(t *testing.T) {
	sizes := []int64{0, 9, 10, 99, 1000, 999_999, 10_000_000_000_000, 1 << 50}
	prevIdx := -1
	for _, s := range sizes {
		key := SizeBand(s)
		idx := indexOf(SizeBandKeys(), key)
		require.GreaterOrEqual(t, idx, prevIdx)
		prevIdx = idx
	}
}

func TestSizeBandBoundaries(t *testing.T) {
	assert.Equal(t, "*-10B", SizeBand(0))
	assert.Equal(t, "*-10B", SizeBand(9))
	assert.Equal(t, "10B-100B", SizeBand(10))
	assert.Equal(t, "10TB-*", SizeBand(10_000_000_000_000))
	assert.Equal(t, "10TB-*", SizeBand(1<<50))
}

func TestHeatBandScenarios(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key, neg := HeatBand(now, now.Add(-2*time.Hour))
	assert.Equal(t, "1h-1d", key)
	assert.False(t, neg)

	key, neg = HeatBand(now, now.Add(-400*24*time.Hour))
	assert.Equal(t, "1y-2y", key)
	assert.False(t, neg)
}

func TestHeatBandFutureAtimeWarns(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, neg := HeatBand(now, now.Add(time.Hour))
	assert.Equal(t, "*-1h", key)
	assert.True(t, neg)
}

func TestFileTypeDirectory(t *testing.T) {
	assert.Equal(t, FileTypeDirectory, FileType("/some/dir", os.ModeDir))
}

func TestFileTypeRegularKnownExtension(t *testing.T) {
	assert.Equal(t, "text__plain", FileType("/some/a.txt", 0))
}

func TestFileTypeRegularUnknownExtension(t *testing.T) {
	assert.Equal(t, FileTypeUnknownFile, FileType("/some/a.zzzzzznotreal", 0))
}

func TestUsernameUnknownUID(t *testing.T) {
	r := NewOwnerResolver()
	name := r.Username(999999)
	assert.Equal(t, "__unknown_uid_999999__", name)
	// Cached on the second call.
	assert.Equal(t, name, r.Username(999999))
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
