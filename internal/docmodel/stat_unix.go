package docmodel

import (
	"os"
	"syscall"
	"time"

	"github.com/cedadev/gws-scanner/internal/entry"
)

// statFromFileInfo extracts the inode stat tuple (spec §3) from an
// os.FileInfo obtained via Lstat, following the teacher's direct use
// of syscall.Stat_t in internal/scan/worker.go.
func statFromFileInfo(info os.FileInfo) entry.Stat {
	s := entry.Stat{
		Size:  info.Size(),
		Mode:  info.Mode(),
		Atime: info.ModTime(),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		s.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		s.Uid = st.Uid
	}
	return s
}
