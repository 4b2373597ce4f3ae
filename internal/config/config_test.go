package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, Defaults().ScanWorkers, cfg.ScanWorkers)
	assert.Equal(t, Defaults().QueueLengthScaleFactor, cfg.QueueLengthScaleFactor)
}

func TestLoadReadsYAMLConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gws-scanner.yaml")
	yaml := "scan_workers: 16\nlog_level: debug\nelasticsearch_url: http://es.internal:9200\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	v := viper.New()
	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.ScanWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://es.internal:9200", cfg.ElasticsearchURL)
	// Fields absent from the file keep their default.
	assert.Equal(t, Defaults().AbsorbWorkersPerScanWorker, cfg.AbsorbWorkersPerScanWorker)
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	v := viper.New()
	_, err := Load(v, "/no/such/file.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRejectsNonPositiveScanWorkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gws-scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_workers: 0\n"), 0o644))

	v := viper.New()
	_, err := Load(v, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMergePolicyUnionsListsAndTakesMinDepth(t *testing.T) {
	defaults := VolumePolicy{
		FullItemWalkDirs: []string{"/gws/vol1"},
		ScanDepth:        10,
	}
	user := VolumePolicy{
		FullItemWalkDirs:     []string{"/gws/vol1/important"},
		AggregateSubdirNames: []string{"tmp"},
		ScanDepth:            6,
	}
	admin := VolumePolicy{
		AggregateSubdirPaths: []string{"/gws/vol1/scratch"},
		ScanDepth:            8,
	}

	merged := MergePolicy(defaults, user, admin)

	assert.ElementsMatch(t, []string{"/gws/vol1", "/gws/vol1/important"}, merged.FullItemWalkDirs)
	assert.ElementsMatch(t, []string{"tmp"}, merged.AggregateSubdirNames)
	assert.ElementsMatch(t, []string{"/gws/vol1/scratch"}, merged.AggregateSubdirPaths)
	// admin's min-wins rule: the smallest positive scan_depth wins, not
	// the last writer.
	assert.Equal(t, 6, merged.ScanDepth)
}

func TestMergePolicyZeroDepthMeansUnlimitedAndNeverWinsMin(t *testing.T) {
	defaults := VolumePolicy{ScanDepth: 0}
	user := VolumePolicy{ScanDepth: 0}
	admin := VolumePolicy{ScanDepth: 5}

	merged := MergePolicy(defaults, user, admin)
	assert.Equal(t, 5, merged.ScanDepth)

	merged = MergePolicy(VolumePolicy{}, VolumePolicy{}, VolumePolicy{})
	assert.Equal(t, 0, merged.ScanDepth)
}

func TestBindFlagsOverrideViaCommandLine(t *testing.T) {
	v := viper.New()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flagSet))
	require.NoError(t, flagSet.Parse([]string{"--scan-workers=32"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.ScanWorkers)
}

func TestBindFlagsFallBackToDefaultsWhenUnset(t *testing.T) {
	v := viper.New()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flagSet))
	require.NoError(t, flagSet.Parse(nil))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, Defaults().ScanWorkers, cfg.ScanWorkers)
	assert.Equal(t, Defaults().ElasticsearchURL, cfg.ElasticsearchURL)
}
