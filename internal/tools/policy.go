package tools

import (
	"path/filepath"
	"strings"
	"time"
)

// ToolTimeoutConfig configures per-call timeouts.
type ToolTimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// ToolRetryConfig configures retry/backoff behaviour for a tool call.
type ToolRetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// PolicySelector is the AND-matched condition a PolicyRule fires on. An
// empty/nil field never constrains the match; every non-empty field must
// match for the rule to apply.
type PolicySelector struct {
	Tools      []string
	Categories []string
	Channels   []string
	Tags       []string
	Dangerous  *bool
}

// PolicyRule overrides policy defaults for calls matching Match. Rules
// are evaluated in order; the first match wins and later rules are not
// consulted (§4.5's "first match wins" semantics, mirrored from the
// donor's own policy evaluator).
type PolicyRule struct {
	Name    string
	Match   PolicySelector
	Timeout *time.Duration
	Retry   *ToolRetryConfig
	Enabled *bool
	// EnforcementMode overrides how a disabled rule is surfaced, e.g.
	// "warn_allow" to log but not block.
	EnforcementMode string
}

// ToolPolicyConfig is the zero-value-friendly configuration a ToolPolicy
// is built from.
type ToolPolicyConfig struct {
	Timeout     ToolTimeoutConfig
	SafeRetry   ToolRetryConfig
	DangerRetry ToolRetryConfig
	Rules       []PolicyRule
}

// DefaultToolPolicyConfig returns the zero-value-friendly defaults: a
// 120s timeout, conservative retries for ordinary tools, and no retries
// for dangerous ones.
func DefaultToolPolicyConfig() ToolPolicyConfig {
	return ToolPolicyConfig{
		Timeout: ToolTimeoutConfig{
			Default: 120 * time.Second,
			PerTool: map[string]time.Duration{},
		},
		SafeRetry: ToolRetryConfig{
			MaxRetries:     2,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			BackoffFactor:  2.0,
		},
		DangerRetry: ToolRetryConfig{MaxRetries: 0},
	}
}

// ToolCallContext is the set of facts a policy rule may match against.
type ToolCallContext struct {
	ToolName    string
	Category    string
	Channel     string
	Tags        []string
	Dangerous   bool
	SafetyLevel string
}

// PolicyResult is the resolved policy for one tool call.
type PolicyResult struct {
	Enabled         bool
	Timeout         time.Duration
	Retry           ToolRetryConfig
	EnforcementMode string
}

// ToolPolicy resolves per-call timeout, retry, and enablement policy.
type ToolPolicy struct {
	cfg ToolPolicyConfig
}

// NewToolPolicy builds a ToolPolicy from cfg, filling any zero-value gaps
// with DefaultToolPolicyConfig's values.
func NewToolPolicy(cfg ToolPolicyConfig) *ToolPolicy {
	if cfg.Timeout.Default <= 0 {
		cfg.Timeout.Default = 120 * time.Second
	}
	if cfg.Timeout.PerTool == nil {
		cfg.Timeout.PerTool = map[string]time.Duration{}
	}
	if cfg.SafeRetry.MaxRetries == 0 && cfg.SafeRetry.InitialBackoff == 0 {
		cfg.SafeRetry = ToolRetryConfig{MaxRetries: 2, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, BackoffFactor: 2.0}
	}
	return &ToolPolicy{cfg: cfg}
}

// TimeoutFor returns the per-tool timeout override, or the configured
// default.
func (p *ToolPolicy) TimeoutFor(toolName string) time.Duration {
	if t, ok := p.cfg.Timeout.PerTool[toolName]; ok {
		return t
	}
	return p.cfg.Timeout.Default
}

// RetryConfigFor returns the retry policy for a tool, collapsing to no
// retries when the call is flagged dangerous (§7: dangerous actions are
// never silently retried).
func (p *ToolPolicy) RetryConfigFor(_ string, dangerous bool) ToolRetryConfig {
	if dangerous {
		return p.cfg.DangerRetry
	}
	return p.cfg.SafeRetry
}

// Resolve evaluates cfg.Rules against ctx in order and returns the
// resolved policy: the first matching rule's overrides, layered on the
// default timeout/retry/enabled.
func (p *ToolPolicy) Resolve(ctx ToolCallContext) PolicyResult {
	result := PolicyResult{
		Enabled: true,
		Timeout: p.TimeoutFor(ctx.ToolName),
		Retry:   p.RetryConfigFor(ctx.ToolName, ctx.Dangerous),
	}

	for _, rule := range p.cfg.Rules {
		if !selectorMatches(rule.Match, ctx) {
			continue
		}
		if rule.Timeout != nil {
			result.Timeout = *rule.Timeout
		}
		if rule.Retry != nil {
			result.Retry = *rule.Retry
		}
		if rule.Enabled != nil {
			result.Enabled = *rule.Enabled
		}
		result.EnforcementMode = rule.EnforcementMode
		break
	}

	return result
}

func selectorMatches(sel PolicySelector, ctx ToolCallContext) bool {
	if len(sel.Tools) > 0 && !matchesAnyGlob(sel.Tools, ctx.ToolName) {
		return false
	}
	if len(sel.Categories) > 0 && !containsFold(sel.Categories, ctx.Category) {
		return false
	}
	if len(sel.Channels) > 0 && !containsFold(sel.Channels, ctx.Channel) {
		return false
	}
	if len(sel.Tags) > 0 && !anyTagMatches(sel.Tags, ctx.Tags) {
		return false
	}
	if sel.Dangerous != nil && *sel.Dangerous != ctx.Dangerous {
		return false
	}
	return true
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func anyTagMatches(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

// matchesAnyGlob reports whether name matches any of patterns, where each
// pattern is a filepath.Match-style glob ("*" matches any run of
// characters).
func matchesAnyGlob(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
