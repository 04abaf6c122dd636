// Package skills loads and indexes markdown-carried instruction skills:
// YAML front matter over a body the planner receives verbatim and executes
// with its other tools. The runtime here is a carrier, not an interpreter,
// for this skill source (see the sibling custom.go, matcher.go and the
// script VM in internal/skillvm for the other two skill sources).
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillTriggers describes when a skill should auto-activate.
type SkillTriggers struct {
	IntentPatterns      []string       `yaml:"intent_patterns"`
	ToolSignals         []string       `yaml:"tool_signals"`
	ContextSignals      ContextSignals `yaml:"context_signals"`
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
}

// ContextSignals are keyword hints that raise a skill's
// match confidence without being a full intent pattern.
type ContextSignals struct {
	Keywords []string `yaml:"keywords"`
}

// Skill is one markdown-carried instruction set.
type Skill struct {
	Name           string
	Title          string
	Description    string
	Body           string
	SourcePath     string
	Priority       int
	MaxTokens      int
	ExclusiveGroup string
	Triggers       *SkillTriggers
}

type frontMatter struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Priority       int            `yaml:"priority"`
	MaxTokens      int            `yaml:"max_tokens"`
	ExclusiveGroup string         `yaml:"exclusive_group"`
	Triggers       *SkillTriggers `yaml:"triggers"`
}

// Library is an indexed, name-keyed set of skills.
type Library struct {
	byName map[string]Skill
}

// Get looks a skill up by name.
func (l Library) Get(name string) (Skill, bool) {
	if l.byName == nil {
		return Skill{}, false
	}
	s, ok := l.byName[name]
	return s, ok
}

// List returns skills sorted by name.
func (l Library) List() []Skill {
	out := make([]Skill, 0, len(l.byName))
	for _, s := range l.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var frontMatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n?(.*)$`)

// parseSkillFile splits front matter from the body and applies defaults.
func parseSkillFile(path string, raw []byte) (Skill, error) {
	m := frontMatterPattern.FindSubmatch(raw)
	if m == nil {
		return Skill{}, fmt.Errorf("skills: %s: missing YAML front matter", path)
	}
	var fm frontMatter
	if err := yaml.Unmarshal(m[1], &fm); err != nil {
		return Skill{}, fmt.Errorf("skills: %s: parse front matter: %w", path, err)
	}
	body := strings.TrimLeft(string(m[2]), "\n")
	title := fm.Name
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	priority := fm.Priority
	if priority == 0 {
		priority = 5
	}
	maxTokens := fm.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	return Skill{
		Name:           fm.Name,
		Title:          title,
		Description:    fm.Description,
		Body:           body,
		SourcePath:     path,
		Priority:       priority,
		MaxTokens:      maxTokens,
		ExclusiveGroup: fm.ExclusiveGroup,
		Triggers:       fm.Triggers,
	}, nil
}

// Load reads every skill in dir, accepting both "<name>.md" files and
// "<name>/SKILL.md" directories, non-recursively.
func Load(dir string) (Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Library{}, fmt.Errorf("skills: read dir %s: %w", dir, err)
	}

	lib := Library{byName: map[string]Skill{}}
	for _, entry := range entries {
		var path string
		switch {
		case entry.IsDir():
			candidate := filepath.Join(dir, entry.Name(), "SKILL.md")
			if _, statErr := os.Stat(candidate); statErr != nil {
				continue
			}
			path = candidate
		case strings.HasSuffix(entry.Name(), ".md"):
			path = filepath.Join(dir, entry.Name())
		default:
			continue
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return Library{}, fmt.Errorf("skills: read %s: %w", path, readErr)
		}
		skill, parseErr := parseSkillFile(path, raw)
		if parseErr != nil {
			return Library{}, parseErr
		}
		lib.byName[skill.Name] = skill
	}
	return lib, nil
}

// IndexMarkdown renders a human-readable catalog of a library, suitable
// for inclusion in a bootstrap document or a planner system prompt.
func IndexMarkdown(lib Library) string {
	var b strings.Builder
	b.WriteString("# Skills Catalog\n\n")
	for _, s := range lib.List() {
		fmt.Fprintf(&b, "- `%s`: %s\n", s.Name, s.Description)
	}
	return b.String()
}
