//go:build unix

package staging

import (
	"os"
	"syscall"
)

func fileGroup(info os.FileInfo) (int, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return int(st.Gid), true
}
