package skills

import (
	"toolrt/internal/skillvm"
	"toolrt/internal/tools"
)

// Category groups a skill by the kind of capability it exercises (§3's
// Skill metadata data model).
type Category string

const (
	CategoryFilesystem Category = "filesystem"
	CategoryShell       Category = "shell"
	CategoryWeb         Category = "web"
	CategoryData        Category = "data"
	CategorySystem      Category = "system"
	CategoryUtility     Category = "utility"
	CategoryCustom      Category = "custom"
)

// Source names which of the three skill sources (§4.8) produced a
// Metadata entry.
type Source string

const (
	SourceBuiltIn  Source = "built_in"
	SourceScript   Source = "script"
	SourceMarkdown Source = "markdown"
)

// Parameter is one declared input a skill accepts, reusing the
// catalogue's parameter type system rather than a parallel one (the
// supplemented-data note in SPEC_FULL.md §3).
type Parameter struct {
	Name        string
	Description string
	Type        tools.ToolParameterType
	Required    bool
	Default     any
}

// Metadata is the full planner- and runtime-facing description of one
// skill, regardless of which source produced it.
type Metadata struct {
	ID          string
	Name        string
	Description string
	Version     string
	Author      string
	Category    Category
	Permissions []skillvm.Permission
	Parameters  []Parameter
	Source      Source
}

// metadataFromMarkdown derives Metadata for a markdown-carried skill. A
// markdown skill never executes host capability functions (the planner
// executes its instructions using its other tools), so it is given the
// empty permission set.
func metadataFromMarkdown(s Skill) Metadata {
	return Metadata{
		ID:          s.Name,
		Name:        s.Name,
		Description: s.Description,
		Category:    CategoryUtility,
		Source:      SourceMarkdown,
	}
}

// metadataFromScript derives Metadata for a script-VM skill.
func metadataFromScript(s ScriptSkill, category Category) Metadata {
	return Metadata{
		ID:          s.Name,
		Name:        s.Name,
		Description: s.Description,
		Category:    category,
		Permissions: s.Permissions,
		Source:      SourceScript,
	}
}
