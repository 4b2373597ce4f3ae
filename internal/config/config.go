// Package config loads and merges gws-scanner's runtime configuration
// (spec §6, §10.2). Flags and the config file are bound through
// github.com/spf13/viper the way GoogleCloudPlatform/gcsfuse's cfg
// package binds github.com/spf13/pflag flags over a viper instance;
// the three-way merge of per-volume policy overrides is kept as a pure
// function, independent of viper, so it can be tested without flags or
// a config file at all.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid is the sentinel wrapped by every configuration validation
// failure (spec §11.4, mirroring original_source's
// ScannerConfigError/ScannerMainConfigError/ScannerGWSConfigError
// hierarchy as one Go sentinel carrying the offending key in its
// wrapped detail rather than as a parallel type hierarchy).
var ErrInvalid = fmt.Errorf("invalid configuration")

// Config is the top-level configuration unmarshalled from the config
// file plus bound flags (spec §6, §10.2).
type Config struct {
	// ScanWorkers is scan_processes in the original config (spec §5,
	// §11.2): the number of Stage-A goroutines, renamed from "processes"
	// since this redesign runs Stage A as a goroutine pool rather than a
	// process pool.
	ScanWorkers int `mapstructure:"scan_workers"`

	// AbsorbWorkersPerScanWorker is scan_max_threads_per_process: the
	// size of each Stage-A worker's private Stage-B goroutine pool.
	AbsorbWorkersPerScanWorker int `mapstructure:"scan_max_threads_per_process"`

	// QueueLengthScaleFactor sizes every bounded queue in the pipeline
	// (spec §5's three queue-capacity formulas).
	QueueLengthScaleFactor int `mapstructure:"queue_length_scale_factor"`

	// ElasticsearchURL is the index backend's endpoint (spec §6).
	ElasticsearchURL string `mapstructure:"elasticsearch_url"`

	// LogLevel and LogJSON configure internal/log (spec §10.1).
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Volumes maps a volume's root path to its policy overrides (spec
	// §6's per-volume admin config).
	Volumes map[string]VolumePolicy `mapstructure:"volumes"`
}

// VolumePolicy is one volume's policy overrides (spec §4.3, §6):
// full_item_walk_dirs, aggregate_subdir_paths, aggregate_subdir_names,
// scan_depth.
type VolumePolicy struct {
	FullItemWalkDirs     []string `mapstructure:"full_item_walk_dirs"`
	AggregateSubdirPaths []string `mapstructure:"aggregate_subdir_paths"`
	AggregateSubdirNames []string `mapstructure:"aggregate_subdir_names"`
	ScanDepth            int      `mapstructure:"scan_depth"`
}

// Defaults returns the baseline Config before any file or admin
// override is merged in (spec §6's stated defaults).
func Defaults() Config {
	return Config{
		ScanWorkers:                8,
		AbsorbWorkersPerScanWorker: 4,
		QueueLengthScaleFactor:     1000,
		ElasticsearchURL:           "http://localhost:9200",
		LogLevel:                   "info",
		LogJSON:                    false,
		Volumes:                    map[string]VolumePolicy{},
	}
}

// BindFlags registers the top-level flags on flagSet and binds each to
// its key on v, mirroring gcsfuse's cfg.BindFlags (spec §10.2). Taking
// v explicitly, rather than binding against viper's package-level
// singleton the way gcsfuse does, keeps Load's three-way precedence
// (flag > file > default) independently testable with a fresh
// *viper.Viper per test.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	d := Defaults()

	flagSet.Int("scan-workers", d.ScanWorkers, "number of Stage-A goroutines")
	if err := v.BindPFlag("scan_workers", flagSet.Lookup("scan-workers")); err != nil {
		return err
	}

	flagSet.Int("absorb-workers", d.AbsorbWorkersPerScanWorker, "Stage-B goroutines per Stage-A worker")
	if err := v.BindPFlag("scan_max_threads_per_process", flagSet.Lookup("absorb-workers")); err != nil {
		return err
	}

	flagSet.String("elasticsearch-url", d.ElasticsearchURL, "index backend endpoint")
	if err := v.BindPFlag("elasticsearch_url", flagSet.Lookup("elasticsearch-url")); err != nil {
		return err
	}

	flagSet.String("log-level", d.LogLevel, "debug, info, warn, or error")
	if err := v.BindPFlag("log_level", flagSet.Lookup("log-level")); err != nil {
		return err
	}

	flagSet.Bool("log-json", d.LogJSON, "emit JSON log lines instead of console output")
	if err := v.BindPFlag("log_json", flagSet.Lookup("log-json")); err != nil {
		return err
	}

	return nil
}

// Load reads configFile (if non-empty) into v, binds flags over it, and
// unmarshals the result on top of Defaults() (spec §10.2). An empty
// configFile runs on bound flags and defaults alone.
func Load(v *viper.Viper, configFile string) (Config, error) {
	cfg := Defaults()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: reading config file %s: %v", ErrInvalid, configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal: %v", ErrInvalid, err)
	}

	if cfg.ScanWorkers <= 0 {
		return Config{}, fmt.Errorf("%w: scan_workers must be positive, got %d", ErrInvalid, cfg.ScanWorkers)
	}
	if cfg.AbsorbWorkersPerScanWorker <= 0 {
		return Config{}, fmt.Errorf("%w: scan_max_threads_per_process must be positive, got %d", ErrInvalid, cfg.AbsorbWorkersPerScanWorker)
	}
	if cfg.QueueLengthScaleFactor <= 0 {
		return Config{}, fmt.Errorf("%w: queue_length_scale_factor must be positive, got %d", ErrInvalid, cfg.QueueLengthScaleFactor)
	}

	return cfg, nil
}

// MergePolicy combines a volume's defaults, its user-supplied overrides,
// and an admin override into one effective VolumePolicy (spec §6's
// three-way merge: "defaults ⊕ user ⊕ admin overrides, list fields as
// set-union, scan_depth as min"). Kept independent of viper so it is
// testable as plain data transformation.
func MergePolicy(defaults, user, admin VolumePolicy) VolumePolicy {
	merged := VolumePolicy{
		FullItemWalkDirs:     unionAll(defaults.FullItemWalkDirs, user.FullItemWalkDirs, admin.FullItemWalkDirs),
		AggregateSubdirPaths: unionAll(defaults.AggregateSubdirPaths, user.AggregateSubdirPaths, admin.AggregateSubdirPaths),
		AggregateSubdirNames: unionAll(defaults.AggregateSubdirNames, user.AggregateSubdirNames, admin.AggregateSubdirNames),
		ScanDepth:            minPositive(defaults.ScanDepth, user.ScanDepth, admin.ScanDepth),
	}
	return merged
}

// unionAll returns the set-union of every non-empty input list, in
// first-seen order (spec §6: "list fields as set-union").
func unionAll(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// minPositive returns the smallest of the given values that is > 0, or
// 0 if none are positive (spec §6: "scan_depth as min" — a depth of 0
// means "no limit", so it never wins a min against a real limit).
func minPositive(values ...int) int {
	min := 0
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if min == 0 || v < min {
			min = v
		}
	}
	return min
}
