// Package toolregistry is the Tool Catalogue (C5): an insertion-ordered,
// planner-visible set of tools. Routing a ToolCall to a ToolResult is
// done by internal/dispatcher.
package toolregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"toolrt/internal/tools"
	"toolrt/internal/tools/builtin"
)

// Metadata is the dispatcher-facing summary of a registered tool:
// enough to route and log without touching its full descriptor.
type Metadata struct {
	Name       string
	Category   string
	Dangerous  bool
	SideEffect string
}

// RegisteredTool is what the catalogue actually stores: a planner
// descriptor, dispatch metadata, and the executable behind them.
type RegisteredTool interface {
	Metadata() Metadata
	Definition() tools.ToolDescriptor
	Execute(ctx context.Context, args map[string]interface{}) (*builtin.Result, error)
}

// adaptedTool wraps one of the builtin.* concrete tools (which expose
// Name/Description/Parameters/Validate/Execute) into a RegisteredTool.
type adaptedTool struct {
	meta        Metadata
	name        string
	description string
	parameters  map[string]interface{}
	validate    func(map[string]interface{}) error
	execute     func(context.Context, map[string]interface{}) (*builtin.Result, error)
}

func (a *adaptedTool) Metadata() Metadata { return a.meta }

func (a *adaptedTool) Definition() tools.ToolDescriptor {
	return tools.ToolDescriptor{
		Name:        a.name,
		Description: a.description,
		SideEffect:  a.meta.SideEffect,
		Schema:      rawSchemaToToolSchema(a.parameters),
	}
}

func (a *adaptedTool) Execute(ctx context.Context, args map[string]interface{}) (*builtin.Result, error) {
	if a.validate != nil {
		if err := a.validate(args); err != nil {
			return nil, err
		}
	}
	return a.execute(ctx, args)
}

// rawSchemaToToolSchema converts a raw JSON-Schema-shaped map (as every
// builtin tool's Parameters() returns) into the stable ToolSchema shape.
func rawSchemaToToolSchema(raw map[string]interface{}) *tools.ToolSchema {
	schema := &tools.ToolSchema{Type: "object", Properties: map[string]*tools.ToolParameterDefinition{}}
	if raw == nil {
		return schema
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		for name, def := range props {
			defMap, _ := def.(map[string]interface{})
			typeStr, _ := defMap["type"].(string)
			desc, _ := defMap["description"].(string)
			schema.Properties[name] = &tools.ToolParameterDefinition{
				Type:        tools.ToolParameterType(typeStr),
				Description: desc,
			}
		}
	}
	if required, ok := raw["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}

// Config builds a Registry's starting tool set and policy.
type Config struct {
	WorkingDir        string
	Approver          builtin.Approver
	ShellAllowlist    []string
	WebAllowedDomains []string
	WebRequestsPerMin int
	Policy            tools.ToolPolicyConfig
	Logger            zerolog.Logger
	DesktopDriver     builtin.DesktopDriver
}

// Registry is the insertion-ordered tool catalogue. The built-in set is
// fixed at construction, but RegisterDynamic can add tools afterwards,
// so reads take a read lock.
type Registry struct {
	order  []string
	tools  map[string]RegisteredTool
	policy *tools.ToolPolicy
	logger zerolog.Logger

	mu sync.RWMutex // guards dynamic (skill-contributed) registrations only
}

// NewRegistry builds the catalogue: every built-in tool, validated
// against a JSON-Schema meta-schema at registration so a malformed
// descriptor never reaches the planner.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Policy.Timeout.Default == 0 {
		cfg.Policy = tools.DefaultToolPolicyConfig()
	}

	r := &Registry{
		tools:  map[string]RegisteredTool{},
		policy: tools.NewToolPolicy(cfg.Policy),
		logger: cfg.Logger,
	}

	for _, entry := range builtinEntries(cfg) {
		if err := r.register(entry); err != nil {
			return nil, fmt.Errorf("toolregistry: register %s: %w", entry.Metadata().Name, err)
		}
	}

	return r, nil
}

func (r *Registry) register(t RegisteredTool) error {
	name := t.Metadata().Name
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	if err := validateDescriptorSchema(t.Definition()); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// RegisterDynamic adds a tool after startup (e.g. an MCP-style or
// skill-contributed tool). Unlike the built-in set this path is
// lock-protected since it can race with concurrent Get/List calls.
func (r *Registry) RegisterDynamic(t RegisteredTool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(t)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (RegisteredTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("toolregistry: tool %q not registered", name)
	}
	return t, nil
}

// List returns every tool's descriptor in catalogue (insertion) order.
func (r *Registry) List() []tools.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]tools.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Policy exposes the resolved timeout/retry policy for Dispatch's
// callers that need it directly (e.g. the Soul Engine's unsafe shell
// path, which bypasses approval but not timeout policy).
func (r *Registry) Policy() *tools.ToolPolicy { return r.policy }

// validateDescriptorSchema runs a ToolDescriptor's parameter schema
// through a JSON-Schema compiler as a structural sanity check: it must
// itself describe a valid object schema, independent of any particular
// call's arguments.
func validateDescriptorSchema(def tools.ToolDescriptor) error {
	if def.Schema == nil {
		return nil
	}
	doc := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	props := doc["properties"].(map[string]interface{})
	for name, p := range def.Schema.Properties {
		entry := map[string]interface{}{}
		if p.Type != "" {
			entry["type"] = string(p.Type)
		}
		props[name] = entry
	}
	if len(def.Schema.Required) > 0 {
		doc["required"] = def.Schema.Required
	}

	compiler := jsonschema.NewCompiler()
	resourceName := "tool://" + def.Name
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return err
	}
	_, err := compiler.Compile(resourceName)
	return err
}
