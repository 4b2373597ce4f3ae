package docmodel

import "time"

// VolumeStatus is the volume lifecycle document's status field (spec §3).
type VolumeStatus string

const (
	StatusInProgress VolumeStatus = "in_progress"
	StatusComplete   VolumeStatus = "complete"
	StatusFailed     VolumeStatus = "failed"
	StatusRemoved    VolumeStatus = "removed"
)

// Capacity is the volume capacity snapshot (spec §3), sourced from
// classify.Statfs plus classify.MountTable.Lookup.
type Capacity struct {
	VolSize       int64 `json:"vol_size"`
	VolSizeAvail  int64 `json:"vol_size_avail"`
	VolSizeUsed   int64 `json:"vol_size_used"`
	VolCount      int64 `json:"vol_count"`
	VolCountAvail int64 `json:"vol_count_avail"`
	VolCountUsed  int64 `json:"vol_count_used"`
}

// Volume is the volume lifecycle document (spec §3): one per scan. ScanID
// is assigned by the backend on first index and is empty until then.
type Volume struct {
	ScanID         string       `json:"-"`
	Path           string       `json:"path"`
	StartTimestamp time.Time    `json:"start_timestamp"`
	EndTimestamp   *time.Time   `json:"end_timestamp,omitempty"`
	LengthSeconds  *float64     `json:"length,omitempty"`
	Status         VolumeStatus `json:"status"`

	Capacity

	FSType string `json:"fs_type"`
	FSSpec string `json:"fs_spec"`

	Size     *int64   `json:"size,omitempty"`
	Count    *int64   `json:"count,omitempty"`
	MeanHeat *float64 `json:"mean_heat,omitempty"`
}

// NewVolume starts a volume lifecycle document in state in_progress (spec
// §4.7 step 1).
func NewVolume(path string, start time.Time, cap Capacity, fsType, fsSpec string) *Volume {
	return &Volume{
		Path:           path,
		StartTimestamp: start,
		Status:         StatusInProgress,
		Capacity:       cap,
		FSType:         fsType,
		FSSpec:         fsSpec,
	}
}

// Finalize transitions the document to complete and stamps its post-scan
// size/count roll-up (spec §4.7 step 8). mean_heat is left unset, matching
// the roll-up query the step is grounded on, which only sums size/count
// over the scan's documents.
func (v *Volume) Finalize(end time.Time, size, count int64) {
	v.EndTimestamp = &end
	length := end.Sub(v.StartTimestamp).Seconds()
	v.LengthSeconds = &length
	v.Status = StatusComplete
	v.Size = &size
	v.Count = &count
}

// Fail transitions the document to failed (spec §4.7 step 4, §7 abort).
func (v *Volume) Fail(end time.Time) {
	v.EndTimestamp = &end
	length := end.Sub(v.StartTimestamp).Seconds()
	v.LengthSeconds = &length
	v.Status = StatusFailed
}

// GranularCategory is the category field of a Granular record (spec §3).
type GranularCategory string

const (
	CategoryFiletypes GranularCategory = "filetypes"
	CategoryUsers     GranularCategory = "users"
	CategoryHeatBins  GranularCategory = "heat_bins"
)

// Granular is one post-scan roll-up row (spec §3, §4.8).
type Granular struct {
	Path           string           `json:"path"`
	ScanID         string           `json:"scan_id"`
	Category       GranularCategory `json:"category"`
	Identifier     string           `json:"identifier"`
	Size           int64            `json:"size"`
	Count          int64            `json:"count"`
	StartTimestamp time.Time        `json:"start_timestamp"`
	EndTimestamp   time.Time        `json:"end_timestamp"`
}
