//go:build unix

package history

import (
	"os"
	"syscall"
)

// fileID returns the file's inode number, the stable identity token used to
// detect that the log file was replaced.
func fileID(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Ino, true
}
