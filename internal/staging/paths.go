package staging

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideSandbox reports a client-supplied path that resolves outside the
// sandbox root it was mapped against.
var ErrOutsideSandbox = errors.New("path escapes sandbox")

// MapPath translates a client-supplied relative path into a path inside
// sandboxRoot.
//
// When allowNested is false only the final component of clientPath is used,
// so no directory structure named by the client survives translation. When
// allowNested is true, clientPath is treated as a forward-slash relative path
// and converted to host conventions component by component, without
// normalization, so that containment is judged on what the client actually
// asked for.
//
// Containment is verified on every call, immediately before any directory
// creation. Callers must not cache the result of an earlier check across
// filesystem mutations.
func MapPath(sandboxRoot, clientPath string, allowNested, createParents bool) (string, error) {
	var candidate string
	if !allowNested {
		candidate = filepath.Join(sandboxRoot, path.Base(clientPath))
	} else {
		// Plain string concatenation: filepath.Join would collapse ".."
		// components before the containment check sees them.
		candidate = sandboxRoot + string(filepath.Separator) + posixToLocal(clientPath)
	}

	if err := VerifyContained(candidate, sandboxRoot); err != nil {
		return "", err
	}

	if createParents {
		if err := os.MkdirAll(filepath.Dir(candidate), 0o755); err != nil {
			return "", fmt.Errorf("create parent directories for %q: %w", clientPath, err)
		}
	}
	return candidate, nil
}

// VerifyContained resolves candidate and root to absolute form and reports
// ErrOutsideSandbox unless candidate equals root or sits strictly below it.
//
// The comparison is segment-aware: "/a/bEvil" is not contained in "/a/b".
func VerifyContained(candidate, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve sandbox root %q: %w", root, err)
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return fmt.Errorf("resolve candidate path %q: %w", candidate, err)
	}

	if absCandidate != absRoot && !strings.HasPrefix(absCandidate, absRoot+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q is not under %q", ErrOutsideSandbox, candidate, root)
	}
	return nil
}

// posixToLocal converts a forward-slash path to host separators, preserving
// every component verbatim, including any that look like "..".
func posixToLocal(p string) string {
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, string(filepath.Separator))
}
