package toolregistry

import (
	"context"
	"fmt"

	"toolrt/internal/tools/builtin"
	"toolrt/internal/tools/builtin/browser"
)

// anyTool is the shape every concrete builtin.* tool already satisfies;
// adapting one into a RegisteredTool only needs these five methods.
type anyTool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Validate(map[string]interface{}) error
	Execute(context.Context, map[string]interface{}) (*builtin.Result, error)
}

func adapt(t anyTool, category, sideEffect string, dangerous bool) *adaptedTool {
	return &adaptedTool{
		meta:        Metadata{Name: t.Name(), Category: category, Dangerous: dangerous, SideEffect: sideEffect},
		name:        t.Name(),
		description: t.Description(),
		parameters:  t.Parameters(),
		validate:    t.Validate,
		execute:     t.Execute,
	}
}

// noTransportDialer is the default browser transport factory: it
// refuses every dial until the host process supplies a real one,
// keeping the browser tool's policy surface testable without a live
// Chrome instance.
func noTransportDialer(ctx context.Context, target string) (browser.Transport, error) {
	return nil, fmt.Errorf("browser: no CDP transport dialer configured for %s", target)
}

// builtinEntries returns every built-in tool adapted into the
// catalogue, in the fixed order the planner will see them.
func builtinEntries(cfg Config) []RegisteredTool {
	entries := []RegisteredTool{
		adapt(builtin.CreateFindTool(), "filesystem", "read-only", false),
		adapt(builtin.CreateFileListTool(), "filesystem", "read-only", false),
		adapt(builtin.CreateFileInfoTool(), "filesystem", "read-only", false),
		adapt(builtin.CreateFileReadTool(), "filesystem", "read-only", false),
		adapt(builtin.CreateFileWriteTool(cfg.Approver), "filesystem", "requires approval, modifies files", true),
		adapt(builtin.CreateShellTool(cfg.Approver, cfg.ShellAllowlist), "shell", "requires approval, executes commands", true),
		adapt(builtin.CreateWebFetchTool(cfg.Approver, cfg.WebAllowedDomains, cfg.WebRequestsPerMin), "web", "requires approval, network request", true),
		adapt(builtin.CreateBrowserTool(cfg.Approver, noTransportDialer), "web", "requires approval, network request", true),
	}
	if cfg.DesktopDriver != nil {
		entries = append(entries, adapt(builtin.CreateDesktopTool(cfg.Approver, cfg.DesktopDriver), "desktop", "requires approval for input injection", true))
	}
	return entries
}
