package builtin

import (
	"fmt"
	"path/filepath"
	"strings"

	"context"
	"os"
)

// resolveLocalPath resolves relPath against ctx's working directory and
// rejects any result that escapes it, whether via ".." segments, an
// absolute path outside the base, or a symlink that resolves outside
// once walked.
func resolveLocalPath(ctx context.Context, relPath string) (string, error) {
	r := GetPathResolverFromContext(ctx)
	resolved := r.Resolve(relPath)

	if !pathWithinBase(r.workingDir, resolved) {
		return "", fmt.Errorf("builtin: path %q escapes working directory", relPath)
	}

	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		if !pathWithinBase(r.workingDir, real) {
			return "", fmt.Errorf("builtin: path %q escapes working directory via symlink", relPath)
		}
	} else if parent, perr := filepath.EvalSymlinks(filepath.Dir(resolved)); perr == nil {
		// The leaf itself may not exist yet (e.g. a file about to be
		// created); walk its nearest existing ancestor instead.
		if !pathWithinBase(r.workingDir, parent) {
			return "", fmt.Errorf("builtin: path %q escapes working directory via symlink", relPath)
		}
	}

	return resolved, nil
}

// pathWithinBase reports whether resolved is base itself or a
// descendant of it.
func pathWithinBase(base, resolved string) bool {
	base = filepath.Clean(base)
	resolved = filepath.Clean(resolved)
	if base == resolved {
		return true
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}
