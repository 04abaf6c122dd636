package builtin

import (
	"bufio"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	fileReadCharLimit = 2500
	// fileReadMaxBytes caps a whole-file read (§4.7: "Reads are capped at
	// 10 MB; larger files require the chunked variant").
	fileReadMaxBytes = 10 << 20
)

// Result is the stable shape every builtin tool's Execute returns: a
// planner-facing rendered Content string plus structured Data for
// callers that want the raw fields.
type Result struct {
	Content string
	Data    map[string]interface{}
}

// fileReadTool reads a file's contents with line numbers, optionally
// running a lightweight Go AST analysis over it.
type fileReadTool struct{}

// CreateFileReadTool builds the file_read builtin tool.
func CreateFileReadTool() *fileReadTool {
	return &fileReadTool{}
}

func (t *fileReadTool) Name() string { return "file_read" }

func (t *fileReadTool) Description() string {
	return "General-purpose file reading with line numbers, line-range selection, " +
		"and optional Go code analysis for Go code analysis. Returns file_path " +
		"contents prefixed with line number annotations. Whole-file reads are " +
		"capped at 10 MB; larger files require offset and length (the chunked " +
		"variant, in bytes) to read a window of lines instead."
}

func (t *fileReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read, absolute or relative to the working directory",
			},
			"start_line": map[string]interface{}{
				"type":        "integer",
				"description": "First line to include (1-based, inclusive)",
			},
			"end_line": map[string]interface{}{
				"type":        "integer",
				"description": "Last line to include (1-based, inclusive)",
			},
			"analyze_go": map[string]interface{}{
				"type":        "boolean",
				"description": "When true and the file is a .go file, attach package/import/symbol analysis",
			},
			"offset": map[string]interface{}{
				"type":        "integer",
				"description": "Byte offset to start the chunked read from; required alongside length for files over 10 MB",
			},
			"length": map[string]interface{}{
				"type":        "integer",
				"description": "Number of bytes to read in the chunked variant; reads whole lines until this window is full",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *fileReadTool) Validate(args map[string]interface{}) error {
	path, ok := args["file_path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("file_path is required and must be a non-empty string")
	}
	return nil
}

func (t *fileReadTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	rawPath := args["file_path"].(string)

	path := rawPath
	if !filepath.IsAbs(path) {
		if resolved, err := resolveLocalPath(ctx, path); err == nil {
			path = resolved
		} else if abs, aerr := filepath.Abs(path); aerr == nil {
			path = abs
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", rawPath)
		}
		return nil, fmt.Errorf("stat %s: %w", rawPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("file does not exist: %s is a directory", rawPath)
	}

	offset, hasOffset, length, hasLength, err := parseChunkWindow(args)
	if err != nil {
		return nil, err
	}
	if hasOffset || hasLength {
		return t.executeChunked(path, rawPath, offset, length)
	}

	if info.Size() > fileReadMaxBytes {
		return nil, fmt.Errorf(
			"file too large (%d bytes, max %d bytes); use offset/length for the chunked read",
			info.Size(), fileReadMaxBytes,
		)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawPath, err)
	}

	startLine, endLine, err := parseLineRange(args)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(raw), "\n")
	total := len(lines)

	if startLine == 0 {
		startLine = 1
	}
	if endLine == 0 || endLine > total {
		endLine = total
	}
	if startLine > endLine {
		startLine, endLine = endLine, startLine
	}
	if startLine < 1 {
		startLine = 1
	}

	var b strings.Builder
	for i := startLine; i <= endLine && i <= total; i++ {
		fmt.Fprintf(&b, "%d:%s\n", i, lines[i-1])
	}
	fullContent := b.String()

	content := fullContent
	truncated := false
	if len(content) > fileReadCharLimit {
		content = content[:fileReadCharLimit] + fmt.Sprintf("\n... TRUNCATED (exceeds %d characters) ...", fileReadCharLimit)
		truncated = true
	}

	data := map[string]interface{}{
		"lines":         total,
		"file_size":     info.Size(),
		"modified":      info.ModTime(),
		"truncated":     truncated,
		"resolved_path": path,
		// content always carries the untruncated window: §3's truncation
		// policy caps the human-facing message, never the structured data.
		"content": fullContent,
	}

	analyzeGo, _ := args["analyze_go"].(bool)
	isGo := strings.HasSuffix(path, ".go")
	if isGo {
		data["is_go_file"] = true
	}
	if analyzeGo && isGo {
		data["analysis_enabled"] = true
		symbolInfo, analysisErr := analyzeGoSource(raw)
		if analysisErr != nil {
			data["analysis_error"] = analysisErr.Error()
		} else {
			data["symbol_info"] = symbolInfo
		}
	}

	return &Result{Content: content, Data: data}, nil
}

// parseChunkWindow extracts the optional offset/length chunked-read
// arguments, reporting whether each was actually supplied so the caller
// can distinguish "not given" from "given as zero".
func parseChunkWindow(args map[string]interface{}) (offset int, hasOffset bool, length int, hasLength bool, err error) {
	if args["offset"] != nil {
		offset, err = intArg(args["offset"])
		if err != nil {
			return 0, false, 0, false, fmt.Errorf("offset: %w", err)
		}
		hasOffset = true
	}
	if args["length"] != nil {
		length, err = intArg(args["length"])
		if err != nil {
			return 0, false, 0, false, fmt.Errorf("length: %w", err)
		}
		hasLength = true
	}
	return offset, hasOffset, length, hasLength, nil
}

// executeChunked reads a window of whole lines starting at byte offset
// and filling up to length bytes, for files too large for a single
// whole-file read (§4.7's chunked variant).
func (t *fileReadTool) executeChunked(path, rawPath string, offset, length int) (*Result, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be a positive number of bytes for a chunked read")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rawPath, err)
	}
	defer f.Close()

	var b strings.Builder
	currentOffset := 0
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		lineLen := len(line)
		if lineLen > 0 {
			if currentOffset >= offset && b.Len() < length {
				b.WriteString(line)
			}
			currentOffset += lineLen
		}
		if b.Len() >= length || readErr != nil {
			break
		}
	}

	content := b.String()
	return &Result{
		Content: capMessage(content, fileReadCharLimit),
		Data: map[string]interface{}{
			"offset":        offset,
			"length":        length,
			"bytes_read":    len(content),
			"resolved_path": path,
			"content":       content,
			"chunked":       true,
		},
	}, nil
}

func parseLineRange(args map[string]interface{}) (int, int, error) {
	start, err := intArg(args["start_line"])
	if err != nil {
		return 0, 0, fmt.Errorf("start_line: %w", err)
	}
	end, err := intArg(args["end_line"])
	if err != nil {
		return 0, 0, fmt.Errorf("end_line: %w", err)
	}
	return start, end, nil
}

func intArg(v interface{}) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		if n == "" {
			return 0, nil
		}
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// analyzeGoSource parses src and extracts a planner-friendly symbol
// summary: package name, imports, top-level funcs, structs, interfaces.
func analyzeGoSource(src []byte) (map[string]interface{}, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	imports := []interface{}{}
	for _, imp := range file.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}

	functions := []interface{}{}
	structs := []interface{}{}
	interfaces := []interface{}{}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			functions = append(functions, d.Name.Name)
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				switch ts.Type.(type) {
				case *ast.StructType:
					structs = append(structs, ts.Name.Name)
				case *ast.InterfaceType:
					interfaces = append(interfaces, ts.Name.Name)
				}
			}
		}
	}

	return map[string]interface{}{
		"package_name": file.Name.Name,
		"imports":      imports,
		"functions":    functions,
		"structs":      structs,
		"interfaces":   interfaces,
	}, nil
}
