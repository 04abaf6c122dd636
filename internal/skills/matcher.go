package skills

import (
	"regexp"
	"strings"

	"toolrt/internal/tokenutil"
)

// AutoActivationConfig controls whether and how aggressively skills are
// auto-activated from free-text task input rather than an explicit
// use_skill tool call.
type AutoActivationConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	TokenBudget         int
	MaxActivated        int
}

// MatchContext is the free-text input a skill's triggers are evaluated
// against.
type MatchContext struct {
	TaskInput string
	SessionID string
}

// MatchResult pairs a matched skill with the confidence that triggered it.
type MatchResult struct {
	Skill      Skill
	Confidence float64
}

// MatcherOptions reserves room for future matcher tuning knobs.
type MatcherOptions struct{}

// SkillMatcher evaluates a library's skills against free-text task input.
type SkillMatcher struct {
	lib *Library
}

// NewSkillMatcher builds a matcher over lib.
func NewSkillMatcher(lib *Library, _ MatcherOptions) *SkillMatcher {
	return &SkillMatcher{lib: lib}
}

// Match returns every skill whose triggers fire for ctx at or above
// config's confidence threshold, with exclusive-group conflicts resolved
// in favor of the highest-priority skill.
func (m *SkillMatcher) Match(ctx MatchContext, config AutoActivationConfig) []MatchResult {
	if !config.Enabled || m.lib == nil {
		return nil
	}

	var candidates []MatchResult
	for _, skill := range m.lib.List() {
		if skill.Triggers == nil {
			continue
		}
		confidence, matched := matchTriggers(*skill.Triggers, ctx)
		if !matched {
			continue
		}
		threshold := config.ConfidenceThreshold
		if confidence < threshold {
			continue
		}
		candidates = append(candidates, MatchResult{Skill: skill, Confidence: confidence})
	}

	return resolveExclusiveGroups(candidates)
}

func matchTriggers(t SkillTriggers, ctx MatchContext) (float64, bool) {
	for _, pattern := range t.IntentPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(ctx.TaskInput) {
			return 1.0, true
		}
	}
	for _, kw := range t.ContextSignals.Keywords {
		if kw != "" && strings.Contains(strings.ToLower(ctx.TaskInput), strings.ToLower(kw)) {
			return 0.6, true
		}
	}
	return 0, false
}

func resolveExclusiveGroups(candidates []MatchResult) []MatchResult {
	winners := map[string]MatchResult{}
	var ungrouped []MatchResult
	for _, c := range candidates {
		group := c.Skill.ExclusiveGroup
		if group == "" {
			ungrouped = append(ungrouped, c)
			continue
		}
		current, ok := winners[group]
		if !ok || c.Skill.Priority > current.Skill.Priority {
			winners[group] = c
		}
	}
	out := append([]MatchResult{}, ungrouped...)
	for _, w := range winners {
		out = append(out, w)
	}
	return out
}

// ApplyActivationLimits trims matches to fit config.TokenBudget,
// accumulating in input order and dropping whatever would overrun the
// remaining budget, and stops once config.MaxActivated matches are kept.
// A zero TokenBudget applies no budget; a positive MaxActivated still
// caps the number of matches.
func ApplyActivationLimits(matches []MatchResult, config AutoActivationConfig) []MatchResult {
	if config.TokenBudget <= 0 {
		if config.MaxActivated > 0 && len(matches) > config.MaxActivated {
			return matches[:config.MaxActivated]
		}
		return matches
	}

	var out []MatchResult
	remaining := config.TokenBudget
	for _, m := range matches {
		cost := tokenutil.CountTokens(m.Skill.Body)
		if cost > remaining {
			continue
		}
		out = append(out, m)
		remaining -= cost
		if config.MaxActivated > 0 && len(out) >= config.MaxActivated {
			break
		}
	}
	return out
}
