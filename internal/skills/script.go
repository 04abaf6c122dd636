package skills

import (
	"context"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"toolrt/internal/skillvm"
)

// ScriptSkill is a script-source skill: a small skillvm program plus the
// permission set it runs under. Unlike markdown skills it is executed by
// the runtime rather than handed to the planner verbatim.
type ScriptSkill struct {
	Name        string
	Description string
	SourcePath  string
	Source      string
	Permissions []skillvm.Permission
}

// ScriptRunner compiles and executes script skills, caching the compiled
// Program per source path so repeated activations skip re-parsing. The
// cache is bounded by entry count, not by the program's size, mirroring
// the "compiled once, reused many times" contract for skill scripts.
type ScriptRunner struct {
	limits skillvm.Limits
	host   map[skillvm.Permission][]skillvm.NamedHostFunc
	cache  *lru.Cache[string, *skillvm.Program]
}

// NewScriptRunner builds a runner with a cache capacity of maxCached
// compiled programs; host supplies the full host-function catalogue,
// gated per skill by its declared Permissions.
func NewScriptRunner(limits skillvm.Limits, host map[skillvm.Permission][]skillvm.NamedHostFunc, maxCached int) (*ScriptRunner, error) {
	if maxCached <= 0 {
		maxCached = 128
	}
	cache, err := lru.New[string, *skillvm.Program](maxCached)
	if err != nil {
		return nil, fmt.Errorf("skills: build script cache: %w", err)
	}
	return &ScriptRunner{limits: limits, host: host, cache: cache}, nil
}

// LoadScriptSkill reads and parses a .skill.js file: a skill name/description
// pair of leading "// name: ..." / "// description: ..." comment lines (the
// same front-matter-over-body shape as the markdown carrier, adapted to a
// single-line-comment header since script files carry no YAML block),
// followed by the program body.
func LoadScriptSkill(path string, permissions []skillvm.Permission) (ScriptSkill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ScriptSkill{}, fmt.Errorf("skills: read %s: %w", path, err)
	}
	name, description, body := parseScriptHeader(string(raw))
	if name == "" {
		return ScriptSkill{}, fmt.Errorf("skills: %s: missing \"// name:\" header", path)
	}
	return ScriptSkill{
		Name:        name,
		Description: description,
		SourcePath:  path,
		Source:      body,
		Permissions: permissions,
	}, nil
}

func parseScriptHeader(raw string) (name, description, body string) {
	lines := strings.Split(raw, "\n")
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(trimmed, "// name:"):
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "// name:"))
		case strings.HasPrefix(trimmed, "// description:"):
			description = strings.TrimSpace(strings.TrimPrefix(trimmed, "// description:"))
		default:
			return name, description, strings.Join(lines[i:], "\n")
		}
	}
	return name, description, ""
}

// Run compiles skill.Source (serving the compiled Program from cache when
// present) and executes it against params and workingDir.
func (r *ScriptRunner) Run(ctx context.Context, skill ScriptSkill, params map[string]skillvm.Value, workingDir string) (skillvm.ExecResult, error) {
	program, ok := r.cache.Get(skill.SourcePath)
	if !ok {
		compiled, err := skillvm.Compile(skill.Source)
		if err != nil {
			return skillvm.ExecResult{}, fmt.Errorf("skills: compile %s: %w", skill.SourcePath, err)
		}
		program = compiled
		r.cache.Add(skill.SourcePath, program)
	}

	vm := skillvm.New(r.limits, skill.Permissions, r.host)
	return vm.Execute(ctx, program, params, workingDir), nil
}

// InvalidateCache drops path's compiled Program, forcing recompilation on
// its next Run (used when a script skill file is edited on disk).
func (r *ScriptRunner) InvalidateCache(path string) {
	r.cache.Remove(path)
}
