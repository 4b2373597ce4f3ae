// Package entry defines the inode stat tuple that flows from the walker
// and workers into the classifier and document model.
package entry

import (
	"errors"
	"os"
	"time"
)

// Kind is the coarse inode type derived from an os.FileMode, before the
// classifier resolves it to a canonical file-type token.
type Kind uint8

const (
	KindRegular Kind = iota
	KindDir
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode derives the Kind from an os.FileMode, mirroring the
// mode-first dispatch in classify.FileType.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

// Stat is the inode stat tuple from spec §3: the minimal information the
// classifier and document model need about one filesystem entry. It is
// deliberately OS-agnostic at the type level even though its only
// producer (internal/docmodel's lstat helper) populates it from
// syscall.Stat_t.
type Stat struct {
	Size  int64
	Atime time.Time
	Mode  os.FileMode
	Uid   uint32
}

// Kind reports the coarse kind of this stat result.
func (s Stat) Kind() Kind {
	return KindFromMode(s.Mode)
}

// ScanError is a transient, non-aborting per-inode failure (lstat
// NotFound/PermissionDenied) demoted to a warning per spec §7.
type ScanError struct {
	Path    string
	Message string
}

func (e ScanError) Error() string {
	return e.Path + ": " + e.Message
}

// IsTransient reports whether err is a per-inode ScanError (spec §7
// "transient per-inode"), which warrants a warning and a skip rather than
// aborting the scan.
func IsTransient(err error) bool {
	var se ScanError
	return errors.As(err, &se)
}
