package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const publishTempSuffix = "_TMP"

// Publish moves source to destination so that destination is only ever
// observed fully absent or fully present, never part-written.
//
// The move happens in two phases: source is first moved (possibly across
// filesystems) to a temporary name in destination's directory, then renamed
// to its final name. The final rename is same-directory and therefore atomic.
// A failure in the first phase leaves destination untouched; a failure in the
// final rename leaves the temporary file behind for diagnosis.
func Publish(source, destination string) error {
	temp := filepath.Join(filepath.Dir(destination), filepath.Base(destination)+publishTempSuffix)
	if err := moveFile(source, temp); err != nil {
		return fmt.Errorf("stage %q for publish: %w", source, err)
	}
	if err := os.Rename(temp, destination); err != nil {
		return fmt.Errorf("publish %q: %w", destination, err)
	}
	return nil
}

// moveFile renames source to destination, falling back to copy-and-remove
// when the two live on different filesystems.
func moveFile(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(destination)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destination)
		return err
	}
	return os.Remove(source)
}
