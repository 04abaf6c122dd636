package skills

import (
	"fmt"
	"strings"
)

// ChainStep is one stage of a multi-skill chain: run SkillName, optionally
// feeding it the output of an earlier step (InputFrom) and optionally
// naming its own output for a later step to consume (OutputAs).
type ChainStep struct {
	SkillName string
	InputFrom string
	OutputAs  string
}

// SkillChain is an ordered sequence of skill invocations, each of which
// may consume a previous step's output.
type SkillChain struct {
	Steps []ChainStep
}

// ResolveChain renders the instruction bodies of every step in order,
// substituting any named prior output into the step that asked for it,
// and returns the planner-facing combined instructions.
func (l Library) ResolveChain(chain SkillChain) (string, error) {
	outputs := map[string]string{}
	var b strings.Builder

	for i, step := range chain.Steps {
		skill, ok := l.Get(step.SkillName)
		if !ok {
			return "", fmt.Errorf("skills: chain step %d: skill %q not found", i+1, step.SkillName)
		}

		body := skill.Body
		if step.InputFrom != "" {
			if prior, ok := outputs[step.InputFrom]; ok {
				body = fmt.Sprintf("Input (%s):\n%s\n\n%s", step.InputFrom, prior, body)
			}
		}

		fmt.Fprintf(&b, "## Step %d: %s\n\n%s\n\n", i+1, step.SkillName, body)

		if step.OutputAs != "" {
			outputs[step.OutputAs] = body
		}
	}

	return b.String(), nil
}
