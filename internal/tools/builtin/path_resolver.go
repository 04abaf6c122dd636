package builtin

import (
	"context"
	"os"
	"path/filepath"
)

// resolver normalizes relative tool arguments against a fixed working
// directory. It never changes after construction.
type resolver struct {
	workingDir string
}

// NewPathResolver builds a resolver rooted at workingDir, cleaning and
// absolutizing it so every later join is against a canonical base.
func NewPathResolver(workingDir string) *resolver {
	return &resolver{workingDir: normalizeWorkingDir(workingDir)}
}

func normalizeWorkingDir(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return filepath.Clean(dir)
	}
	return abs
}

// Resolve joins rel against the resolver's working directory, cleaning
// the result. It does not check for traversal escapes; callers that
// need sandbox enforcement use resolveLocalPath instead.
func (r *resolver) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(r.workingDir, rel))
}

type workingDirKey struct{}

// WithWorkingDir attaches dir as the tool call's working directory.
func WithWorkingDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workingDirKey{}, dir)
}

// GetPathResolverFromContext builds a resolver for ctx's working
// directory, falling back to the process's current directory when none
// was attached.
func GetPathResolverFromContext(ctx context.Context) *resolver {
	dir, _ := ctx.Value(workingDirKey{}).(string)
	return NewPathResolver(dir)
}
