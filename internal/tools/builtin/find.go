package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// findTool implements the glob/search_files surface of the filesystem
// tool family: recursive, case-insensitive substring search over file
// names, or a glob pattern match, rooted at the working directory.
type findTool struct{}

// CreateFindTool builds the find builtin tool.
func CreateFindTool() *findTool { return &findTool{} }

func (t *findTool) Name() string { return "find" }

func (t *findTool) Description() string {
	return "Recursively searches for files by glob pattern or case-insensitive " +
		"substring, rooted at the working directory or an optional path. " +
		"Directories are listed before files, both sorted case-insensitively."
}

func (t *findTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string", "description": "Root to search under, defaults to the working directory"},
			"pattern": map[string]interface{}{"type": "string", "description": "Glob pattern, e.g. *.go"},
			"query":   map[string]interface{}{"type": "string", "description": "Case-insensitive substring to match against file names"},
		},
	}
}

func (t *findTool) Validate(args map[string]interface{}) error {
	if args["pattern"] == nil && args["query"] == nil {
		return fmt.Errorf("one of pattern or query is required")
	}
	return nil
}

func (t *findTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}

	root := "."
	if p, ok := args["path"].(string); ok && p != "" {
		root = p
	}
	resolvedRoot, err := resolveLocalPath(ctx, root)
	if err != nil {
		return nil, err
	}

	pattern, _ := args["pattern"].(string)
	query := strings.ToLower(fmt.Sprint(args["query"]))
	if args["query"] == nil {
		query = ""
	}

	var dirs, files []string
	err = filepath.WalkDir(resolvedRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // best-effort walk, skip unreadable entries
		}
		if path == resolvedRoot {
			return nil
		}
		name := d.Name()
		matched := false
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, name); ok {
				matched = true
			}
		}
		if query != "" && strings.Contains(strings.ToLower(name), query) {
			matched = true
		}
		if !matched {
			return nil
		}
		rel, relErr := filepath.Rel(resolvedRoot, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			dirs = append(dirs, rel)
		} else {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find: walk %s: %w", root, err)
	}

	sort.Slice(dirs, func(i, j int) bool { return strings.ToLower(dirs[i]) < strings.ToLower(dirs[j]) })
	sort.Slice(files, func(i, j int) bool { return strings.ToLower(files[i]) < strings.ToLower(files[j]) })

	var b strings.Builder
	for _, d := range dirs {
		fmt.Fprintf(&b, "%s/\n", d)
	}
	for _, f := range files {
		fmt.Fprintf(&b, "%s\n", f)
	}

	return &Result{
		Content: capMessage(b.String(), 500),
		Data: map[string]interface{}{
			"directories": dirs,
			"files":       files,
			"total":       len(dirs) + len(files),
		},
	}, nil
}
