package staging

import (
	"fmt"
	"io"
	"os"
)

const copyBufferSize = 4096

// CopyToPath streams r into a new file at path, overwriting any existing
// file.
func CopyToPath(r io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := copyAndClose(r, out); err != nil {
		return fmt.Errorf("copy to %q: %w", path, err)
	}
	return nil
}

// CopyToTemp streams r into a fresh temporary file and returns its path.
// The caller owns the file and is responsible for removing it.
func CopyToTemp(r io.Reader) (string, error) {
	out, err := os.CreateTemp("", "runstage-stage-")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if err := copyAndClose(r, out); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("copy to temp file: %w", err)
	}
	return out.Name(), nil
}

func copyAndClose(r io.Reader, out *os.File) error {
	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(out, r, buf)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
