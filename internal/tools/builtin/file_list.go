package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileListTool implements the filesystem tool family's single-directory
// "list" operation (§4.7): unlike find's recursive search, this lists
// exactly one directory's immediate entries, directories first then
// files, both sorted case-insensitively.
type fileListTool struct{}

// CreateFileListTool builds the list builtin tool.
func CreateFileListTool() *fileListTool { return &fileListTool{} }

func (t *fileListTool) Name() string { return "list" }

func (t *fileListTool) Description() string {
	return "Lists a single directory's immediate entries: directories first, then " +
		"files, both sorted case-insensitively. path defaults to the working directory."
}

func (t *fileListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list, defaults to the working directory",
			},
		},
	}
}

func (t *fileListTool) Validate(args map[string]interface{}) error {
	return nil
}

func (t *fileListTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	root := "."
	if p, ok := args["path"].(string); ok && p != "" {
		root = p
	}
	resolved, err := resolveLocalPath(ctx, root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s", root)
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	type entry struct {
		name     string
		isDir    bool
		size     int64
		modified string
	}
	items := make([]entry, 0, len(entries))
	for _, e := range entries {
		meta, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, entry{
			name:     e.Name(),
			isDir:    e.IsDir(),
			size:     meta.Size(),
			modified: meta.ModTime().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return strings.ToLower(items[i].name) < strings.ToLower(items[j].name)
	})

	var b strings.Builder
	listed := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		if it.isDir {
			fmt.Fprintf(&b, "%s/\n", it.name)
		} else {
			fmt.Fprintf(&b, "%s\n", it.name)
		}
		listed = append(listed, map[string]interface{}{
			"name":     it.name,
			"is_dir":   it.isDir,
			"size":     it.size,
			"modified": it.modified,
		})
	}

	return &Result{
		Content: capMessage(b.String(), 500),
		Data: map[string]interface{}{
			"path":    root,
			"entries": listed,
			"total":   len(listed),
		},
	}, nil
}

// fileInfoTool implements the filesystem tool family's "info" operation
// (§4.7): metadata for a single path, without reading its contents.
type fileInfoTool struct{}

// CreateFileInfoTool builds the file_info builtin tool.
func CreateFileInfoTool() *fileInfoTool { return &fileInfoTool{} }

func (t *fileInfoTool) Name() string { return "file_info" }

func (t *fileInfoTool) Description() string {
	return "Returns metadata (size, type, modification time) for a single path " +
		"without reading its contents. file_path is required."
}

func (t *fileInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{"type": "string", "description": "Path to inspect"},
		},
		"required": []string{"file_path"},
	}
}

func (t *fileInfoTool) Validate(args map[string]interface{}) error {
	path, ok := args["file_path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("file_path is required and must be a non-empty string")
	}
	return nil
}

func (t *fileInfoTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	rawPath := args["file_path"].(string)

	resolved, err := resolveLocalPath(ctx, rawPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", rawPath)
		}
		return nil, fmt.Errorf("stat %s: %w", rawPath, err)
	}

	data := map[string]interface{}{
		"name":          filepath.Base(resolved),
		"size":          info.Size(),
		"is_dir":        info.IsDir(),
		"is_file":       !info.IsDir(),
		"modified":      info.ModTime(),
		"resolved_path": resolved,
	}

	content := fmt.Sprintf("%s: %d bytes, is_dir=%v, modified %s",
		rawPath, info.Size(), info.IsDir(), info.ModTime().Format("2006-01-02T15:04:05Z07:00"))

	return &Result{Content: content, Data: data}, nil
}
