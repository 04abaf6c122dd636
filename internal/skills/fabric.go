package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fabricEnvVar points at a checkout of the Fabric prompt-pattern
// collection (https://github.com/danielmiessler/fabric's data/patterns
// layout): one directory per pattern, each holding a system.md and an
// optional user.md. When set, DefaultLibrary folds these patterns in as
// additional skills alongside the runtime's own markdown skills.
const fabricEnvVar = "TOOLRT_FABRIC_ROOT"

// loadFabricFromRoot converts every "<root>/data/patterns/<name>" pattern
// directory into a Skill.
func loadFabricFromRoot(root string) (Library, error) {
	patternsRoot := filepath.Join(root, "data", "patterns")
	entries, err := os.ReadDir(patternsRoot)
	if err != nil {
		return Library{}, fmt.Errorf("skills: read fabric patterns %s: %w", patternsRoot, err)
	}

	lib := Library{byName: map[string]Skill{}}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(patternsRoot, entry.Name())
		systemPath := filepath.Join(dir, "system.md")
		system, err := os.ReadFile(systemPath)
		if err != nil {
			continue // not a pattern directory
		}
		var userContent string
		if user, err := os.ReadFile(filepath.Join(dir, "user.md")); err == nil {
			userContent = string(user)
		}

		lib.byName[entry.Name()] = Skill{
			Name:        entry.Name(),
			Title:       fabricTitle(entry.Name()),
			Description: fabricDescription(string(system)),
			Body:        fabricBody(string(system), userContent),
			SourcePath:  systemPath,
			Priority:    5,
			MaxTokens:   2000,
		}
	}
	return lib, nil
}

func fabricTitle(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func fabricDescription(system string) string {
	var lines []string
	for _, line := range strings.Split(system, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	desc := strings.Join(lines, " ")
	if len(desc) > 500 {
		desc = desc[:500]
	}
	return desc
}

func fabricBody(system, user string) string {
	var b strings.Builder
	b.WriteString("## System\n\n")
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\n## User Template\n\n")
	b.WriteString(strings.TrimSpace(user))
	b.WriteString("\n")
	return b.String()
}

// DefaultLibrary resolves the runtime's markdown skill root and, when
// TOOLRT_FABRIC_ROOT is set, merges in the Fabric pattern library
// alongside it. Fabric patterns never override a same-named base skill.
func DefaultLibrary() (Library, error) {
	root, err := ResolveSkillsRoot()
	if err != nil {
		return Library{}, err
	}
	base, err := Load(root)
	if err != nil {
		return Library{}, err
	}

	fabricRoot := os.Getenv(fabricEnvVar)
	if fabricRoot == "" {
		return base, nil
	}
	fabric, err := loadFabricFromRoot(fabricRoot)
	if err != nil {
		return base, nil
	}
	return MergeLibraries(base, fabric, false), nil
}
