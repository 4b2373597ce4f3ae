package classify

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Reserved file-type tokens for non-regular inodes, mirroring
// original_source/gws_volume_scanner/scanner/categorize.py's
// detect_filetype mode dispatch. Go's os.FileMode doesn't distinguish
// door/port/whiteout, so there is no token for those three: on every
// platform they fold into __unknown__.
const (
	FileTypeDirectory   = "__directory__"
	FileTypeCharDevice  = "__character_device__"
	FileTypeBlockDevice = "__block_device__"
	FileTypeNamedPipe   = "__named_pipe__"
	FileTypeSymlink     = "__symlink__"
	FileTypeSocket      = "__socket__"
	FileTypeUnknownFile = "__unknown_file__"
	FileTypeUnknown     = "__unknown__"
)

// FileType resolves the canonical file-type token for one inode, per
// spec §3/§4.1: mode is consulted first for directories and every
// non-regular kind; only a regular file falls through to
// extension-based MIME guessing. Dots in the result are replaced with
// "__" so the token is safe as a dynamic field name in the index
// backend.
func FileType(path string, mode os.FileMode) string {
	var token string
	switch {
	case mode.IsDir():
		token = FileTypeDirectory
	case mode&os.ModeCharDevice != 0:
		token = FileTypeCharDevice
	case mode&os.ModeDevice != 0:
		token = FileTypeBlockDevice
	case mode&os.ModeNamedPipe != 0:
		token = FileTypeNamedPipe
	case mode&os.ModeSymlink != 0:
		token = FileTypeSymlink
	case mode&os.ModeSocket != 0:
		token = FileTypeSocket
	case mode.IsRegular():
		token = guessMIME(path)
	default:
		token = FileTypeUnknown
	}
	return sanitizeToken(token)
}

func guessMIME(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return FileTypeUnknownFile
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return FileTypeUnknownFile
	}
	// Strip parameters ("; charset=...") the way mimetypes.guess_type's
	// first tuple element never carries them.
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func sanitizeToken(token string) string {
	// MIME types carry a "/" ("text/plain") and occasionally a "."
	// ("application/vnd.ms-excel"); both are replaced so the token is
	// safe as a single flat field name in the index backend (e.g.
	// "text/plain" -> "text__plain", per spec §3/§8 scenario S1).
	token = strings.ReplaceAll(token, "/", "__")
	token = strings.ReplaceAll(token, ".", "__")
	return token
}
