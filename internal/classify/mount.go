package classify

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	UnknownFSType = "__unknown_fs_type__"
	UnknownFSSpec = "__unknown_fs_spec__"
)

// MountInfo is one fstab-format row of the mount table (spec §6): the
// standard 6-column form {spec, file, vfstype, mntops, freq, passno}.
type MountInfo struct {
	Spec    string
	File    string
	VFSType string
	MntOpts string
}

// MountTable reads the OS mount table. It holds only the pseudo-file's
// path: every Lookup opens and reads the table afresh, and nothing is
// cached between calls.
type MountTable struct {
	path string
}

// NewMountTable returns a table reading from the OS's mount-table
// pseudo-file (spec §6). On hosts without one (anything but Linux),
// Lookup returns ok=false and the caller substitutes the
// Unknown{FSType,FSSpec} fallback tokens (spec §4.1).
func NewMountTable() *MountTable {
	return &MountTable{path: "/proc/mounts"}
}

// Lookup selects the mount point with the longest prefix match on
// path (spec §4.1) and returns its info. ok is false if the mount
// table pseudo-file isn't present on this host.
func (t *MountTable) Lookup(path string) (MountInfo, bool) {
	f, err := os.Open(t.path)
	if err != nil {
		return MountInfo{}, false
	}
	defer f.Close()

	var best MountInfo
	bestLen := -1

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		mountPoint := fields[1]
		if !strings.HasPrefix(path, mountPoint) {
			continue
		}
		if len(mountPoint) <= bestLen {
			continue
		}
		bestLen = len(mountPoint)
		best = MountInfo{
			Spec:    fields[0],
			File:    mountPoint,
			VFSType: fields[2],
			MntOpts: fields[3],
		}
	}
	if bestLen < 0 {
		return MountInfo{}, false
	}
	return best, true
}

// VolumeCapacity is the df-equivalent snapshot in spec §4.7/§3:
// vol_size, vol_size_avail, vol_size_used, vol_count, vol_count_avail,
// vol_count_used.
type VolumeCapacity struct {
	Size       int64
	SizeAvail  int64
	SizeUsed   int64
	Count      int64
	CountAvail int64
	CountUsed  int64
}

// Statfs reads a volume's capacity snapshot via statfs(2), mirroring
// original_source's os.statvfs usage in models.Volume.add_volume_information.
func Statfs(path string) (VolumeCapacity, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return VolumeCapacity{}, err
	}
	blockSize := int64(st.Bsize)
	return VolumeCapacity{
		Size:       int64(st.Blocks) * blockSize,
		SizeAvail:  int64(st.Bavail) * blockSize,
		SizeUsed:   (int64(st.Blocks) - int64(st.Bfree)) * blockSize,
		Count:      int64(st.Files),
		CountAvail: int64(st.Ffree),
		CountUsed:  int64(st.Files) - int64(st.Ffree),
	}, nil
}
