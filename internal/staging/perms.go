package staging

import (
	"log/slog"
	"os"
)

// FixPerms applies umask-friendly permissions, and optionally group
// ownership, to path. Pass a negative gid to leave the group alone.
//
// Every failure here is logged and swallowed: ownership and mode cosmetics
// are not part of the sandbox boundary and must never fail a job.
func FixPerms(path string, umask, unmasked os.FileMode, gid int, logger *slog.Logger) {
	want := unmasked &^ umask

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("unable to inspect path for permission fixup", "path", path, "error", err)
		return
	}

	if info.Mode().Perm() != want {
		if err := os.Chmod(path, want); err != nil {
			logger.Warn("unable to honor umask",
				"path", path, "umask", umask, "wanted", want, "mode", info.Mode().Perm(), "error", err)
		}
	}

	if gid < 0 {
		return
	}
	current, ok := fileGroup(info)
	if !ok {
		logger.Warn("group fixup unsupported on this platform", "path", path)
		return
	}
	if current == gid {
		return
	}
	if err := os.Chown(path, -1, gid); err != nil {
		logger.Warn("unable to honor primary group",
			"path", path, "wanted_gid", gid, "gid", current, "error", err)
	}
}
