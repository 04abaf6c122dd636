package skills

import (
	"context"
	"fmt"

	"toolrt/internal/skillvm"
	"toolrt/internal/tools"
)

// Runtime is the Skill Runtime (C8) entry point the Tool Dispatcher
// drives through the dispatcher.SkillExecutor interface: it unifies the
// markdown-carrier and script-VM skill sources behind one
// ExecuteSkill(name, params) call.
type Runtime struct {
	markdown Library
	scripts  map[string]ScriptSkill
	runner   *ScriptRunner
	meta     map[string]Metadata
}

// NewRuntime builds a Runtime over a markdown skill library and a set of
// compiled script skills sharing runner. Metadata for every skill
// (markdown and script) is derived up front so ListMetadata and
// Descriptor can answer without re-deriving it per call.
func NewRuntime(markdown Library, scripts []ScriptSkill, runner *ScriptRunner, scriptCategories map[string]Category) *Runtime {
	rt := &Runtime{
		markdown: markdown,
		scripts:  map[string]ScriptSkill{},
		runner:   runner,
		meta:     map[string]Metadata{},
	}
	for _, s := range markdown.List() {
		rt.meta[s.Name] = metadataFromMarkdown(s)
	}
	for _, s := range scripts {
		rt.scripts[s.Name] = s
		category := scriptCategories[s.Name]
		if category == "" {
			category = CategoryUtility
		}
		rt.meta[s.Name] = metadataFromScript(s, category)
	}
	return rt
}

// ListMetadata returns every known skill's Metadata in map iteration
// order, which is not stable between calls (callers that need a
// deterministic planner-facing order should sort by Name).
func (rt *Runtime) ListMetadata() []Metadata {
	out := make([]Metadata, 0, len(rt.meta))
	for _, m := range rt.meta {
		out = append(out, m)
	}
	return out
}

// Descriptor is the single "use_skill" tool descriptor the catalogue
// exposes to the planner: one generic entry fronting every concrete
// skill, since skills are registered at runtime rather than at catalogue
// construction (§4.8, §4.6's "only surface the planner sees").
func (rt *Runtime) Descriptor() tools.ToolDescriptor {
	return tools.ToolDescriptor{
		Name: "use_skill",
		Description: "Invokes a named skill (markdown instruction carrier or " +
			"sandboxed script) by id, passing it a params object. Markdown " +
			"skills return their instruction body for you to execute with your " +
			"other tools; script skills execute under a permission-scoped VM " +
			"and return their computed result.",
		SideEffect: "varies by skill; script skills may modify files, execute " +
			"commands, or reach the network only if granted that permission",
		Schema: &tools.ToolSchema{
			Type: "object",
			Properties: map[string]*tools.ToolParameterDefinition{
				"skill":  tools.NewStringParameter("the skill id to invoke", true),
				"params": {Type: tools.ObjectType, Description: "arguments passed to the skill", Required: false},
			},
			Required: []string{"skill"},
		},
	}
}

// ExecuteSkill resolves name against the script skills first (since only
// they have runtime behavior distinct from "return my body"), then the
// markdown library.
func (rt *Runtime) ExecuteSkill(ctx context.Context, name string, params map[string]any) (tools.ToolResult, error) {
	if script, ok := rt.scripts[name]; ok {
		return rt.executeScript(ctx, script, params)
	}
	if skill, ok := rt.markdown.Get(name); ok {
		return tools.Ok(skill.Body, map[string]any{
			"skill":  skill.Name,
			"source": string(SourceMarkdown),
		}), nil
	}
	return tools.ToolResult{}, fmt.Errorf("skill %q not found", name)
}

func (rt *Runtime) executeScript(ctx context.Context, script ScriptSkill, params map[string]any) (tools.ToolResult, error) {
	if rt.runner == nil {
		return tools.ToolResult{}, fmt.Errorf("no script runner configured")
	}
	vmParams := toValueMap(params)
	res, err := rt.runner.Run(ctx, script, vmParams, "")
	if err != nil {
		return tools.ToolResult{}, err
	}
	if !res.Success {
		return tools.ToolResult{}, fmt.Errorf("%s", res.Message)
	}
	return tools.Ok(res.Message, fromValue(res.Value)), nil
}

func toValueMap(params map[string]any) map[string]skillvm.Value {
	out := make(map[string]skillvm.Value, len(params))
	for k, v := range params {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) skillvm.Value {
	switch x := v.(type) {
	case nil:
		return skillvm.Nil()
	case bool:
		return skillvm.BoolValue(x)
	case string:
		return skillvm.StringValue(x)
	case float64:
		return skillvm.NumberValue(x)
	case int:
		return skillvm.NumberValue(float64(x))
	case []any:
		arr := make([]skillvm.Value, len(x))
		for i, e := range x {
			arr[i] = toValue(e)
		}
		return skillvm.ArrayValue(arr)
	case map[string]any:
		m := make(map[string]skillvm.Value, len(x))
		for k, e := range x {
			m[k] = toValue(e)
		}
		return skillvm.MapValue(m)
	default:
		return skillvm.StringValue(fmt.Sprintf("%v", x))
	}
}

func fromValue(v skillvm.Value) any {
	switch v.Kind {
	case skillvm.KindNil:
		return nil
	case skillvm.KindBool:
		return v.Bool
	case skillvm.KindNumber:
		return v.Num
	case skillvm.KindString:
		return v.Str
	case skillvm.KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = fromValue(e)
		}
		return out
	case skillvm.KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = fromValue(e)
		}
		return out
	default:
		return nil
	}
}
