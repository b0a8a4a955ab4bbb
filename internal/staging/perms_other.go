//go:build !unix

package staging

import "os"

func fileGroup(info os.FileInfo) (int, bool) {
	return 0, false
}
