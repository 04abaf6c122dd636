package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"toolrt/internal/approval"
)

const fileWriteMaxBytes = 50 << 20 // 50MB

// Approver is the subset of *approval.Manager the built-in tools drive:
// adjudicate one Action and report whether the side effect may proceed.
type Approver interface {
	Request(ctx context.Context, action approval.Action) (approval.Decision, error)
}

// fileWriteTool implements write/append/delete/create_directory, every
// one of them approval-gated.
type fileWriteTool struct {
	approver Approver
}

// CreateFileWriteTool builds the file_write builtin tool. A nil
// approver auto-denies every mutation, which is the fail-closed default
// until a real Approval Manager is wired in by the dispatcher.
func CreateFileWriteTool(approver Approver) *fileWriteTool {
	return &fileWriteTool{approver: approver}
}

func (t *fileWriteTool) Name() string { return "file_write" }

func (t *fileWriteTool) Description() string {
	return "Writes, appends to, deletes, or creates directories for files under the " +
		"working directory. Every mutation requires approval. file_path, content, " +
		"operation (write|append|delete|create_directory)."
}

func (t *fileWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{"type": "string", "description": "Target path"},
			"content":   map[string]interface{}{"type": "string", "description": "Content for write/append"},
			"operation": map[string]interface{}{
				"type":        "string",
				"description": "One of write, append, delete, create_directory",
				"enum":        []string{"write", "append", "delete", "create_directory"},
			},
		},
		"required": []string{"file_path", "operation"},
	}
}

func (t *fileWriteTool) Validate(args map[string]interface{}) error {
	path, ok := args["file_path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("file_path cannot be empty")
	}
	op, _ := args["operation"].(string)
	switch op {
	case "write", "append", "delete", "create_directory":
	default:
		return fmt.Errorf("operation must be one of write, append, delete, create_directory, got %q", op)
	}
	if (op == "write" || op == "append") && args["content"] == nil {
		return fmt.Errorf("content is required for operation %q", op)
	}
	return nil
}

func (t *fileWriteTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	rawPath := args["file_path"].(string)
	op := args["operation"].(string)

	resolved, err := resolveLocalPath(ctx, rawPath)
	if err != nil {
		return nil, err
	}

	if !t.approve(ctx, op, resolved) {
		return &Result{
			Content: fmt.Sprintf("denied: %s on %s requires approval", op, rawPath),
			Data:    map[string]interface{}{"approved": false},
		}, nil
	}

	switch op {
	case "write":
		content := fmt.Sprint(args["content"])
		if len(content) > fileWriteMaxBytes {
			return nil, fmt.Errorf("content exceeds %d byte limit", fileWriteMaxBytes)
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, fmt.Errorf("create parent directories: %w", err)
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rawPath, err)
		}
		return &Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(content), rawPath),
			Data: map[string]interface{}{"bytes_written": len(content), "operation": "write"}}, nil

	case "append":
		content := fmt.Sprint(args["content"])
		f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s for append: %w", rawPath, err)
		}
		defer f.Close()
		n, err := f.WriteString(content)
		if err != nil {
			return nil, fmt.Errorf("append to %s: %w", rawPath, err)
		}
		return &Result{Content: fmt.Sprintf("appended %d bytes to %s", n, rawPath),
			Data: map[string]interface{}{"bytes_written": n, "operation": "append"}}, nil

	case "delete":
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rawPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("refusing to delete directory %s", rawPath)
		}
		if err := os.Remove(resolved); err != nil {
			return nil, fmt.Errorf("delete %s: %w", rawPath, err)
		}
		return &Result{Content: fmt.Sprintf("deleted %s", rawPath),
			Data: map[string]interface{}{"operation": "delete"}}, nil

	case "create_directory":
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", rawPath, err)
		}
		return &Result{Content: fmt.Sprintf("created directory %s", rawPath),
			Data: map[string]interface{}{"operation": "create_directory"}}, nil
	}

	return nil, fmt.Errorf("unreachable operation %q", op)
}

func (t *fileWriteTool) approve(ctx context.Context, op, target string) bool {
	if t.approver == nil {
		return false
	}
	risk := approval.RiskMedium
	actionType := approval.FileWrite
	if op == "delete" {
		risk = approval.RiskCritical
		actionType = approval.FileDelete
	}
	action := approval.NewAction(actionType, risk, fmt.Sprintf("file_write %s", op), target)
	action.Details["operation"] = op

	decision, err := t.approver.Request(ctx, action)
	if err != nil {
		return false
	}
	return decision == approval.Approved || decision == approval.ApprovedForSession
}
