// Package sandbox resolves and classifies filesystem paths against an
// allow/block policy. It is a policy layer, not a kernel jail: it decides
// whether an operation is allowed and whether it needs approval, but it
// never itself confines a process.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"toolrt/internal/approval"
)

// Operation is the kind of filesystem access being classified.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
	OpDelete
	OpExecute
	OpList
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpExecute:
		return "execute"
	case OpList:
		return "list"
	default:
		return "unknown"
	}
}

// Risk returns the operation's inherent risk per §4.1: Read/List = Low,
// Write = Medium, Execute = High, Delete = Critical.
func (o Operation) Risk() approval.Risk {
	switch o {
	case OpRead, OpList:
		return approval.RiskLow
	case OpWrite:
		return approval.RiskMedium
	case OpExecute:
		return approval.RiskHigh
	case OpDelete:
		return approval.RiskCritical
	default:
		return approval.RiskHigh
	}
}

// Verdict is the result of classifying a (path, operation) pair.
type Verdict struct {
	Allowed          bool
	RequiresApproval bool
	Risk             approval.Risk
	Reason           string
	ResolvedPath     string
}

// Config configures the sandbox's policy.
type Config struct {
	// AllowRoots are canonical directories writes/reads are permitted
	// under, subject to the risk-based approval escalation below.
	AllowRoots []string
	// BlockedRoots are hard-blocked directories (e.g. ~/.ssh), regardless
	// of AllowRoots.
	BlockedRoots []string
	// BlockedPatterns match filenames that are always denied (credential
	// files, .env, private keys) wherever they're found.
	BlockedPatterns []string
	// DisableApprovalEscalation turns the default-outside-allow-roots
	// verdict into a hard deny instead of an approval-gated allow.
	DisableApprovalEscalation bool
}

// DefaultBlockedPatterns matches auth stores, private keys, credential
// files, and env files, per §4.1 step 1.
var DefaultBlockedPatterns = []string{
	`(?i)\.env(\..+)?$`,
	`(?i)id_rsa$`,
	`(?i)id_ed25519$`,
	`(?i)\.pem$`,
	`(?i)\.pfx$`,
	`(?i)\.p12$`,
	`(?i)credentials(\.json)?$`,
	`(?i)\.npmrc$`,
	`(?i)\.netrc$`,
	`(?i)shadow$`,
	`(?i)^/etc/passwd$`,
	`(?i)\.aws/credentials$`,
	`(?i)\.kube/config$`,
}

// systemBinaryDirs are the system-write block roots from §4.1 step 2.
var systemBinaryDirs = []string{
	"/usr/bin", "/bin", "/sbin", "/boot", "/sys", "/proc", "/dev",
	"/usr/lib", "/usr/local/bin", "/usr/local/sbin",
}

// Sandbox evaluates filesystem operations against a Config.
type Sandbox struct {
	cfg             Config
	blockedPatterns []*regexp.Regexp
}

// New compiles a Config into a Sandbox.
func New(cfg Config) (*Sandbox, error) {
	if len(cfg.BlockedPatterns) == 0 {
		cfg.BlockedPatterns = DefaultBlockedPatterns
	}
	compiled := make([]*regexp.Regexp, 0, len(cfg.BlockedPatterns))
	for _, pattern := range cfg.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("sandbox: invalid blocked pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &Sandbox{cfg: cfg, blockedPatterns: compiled}, nil
}

// Resolve expands the user-home prefix, joins relative paths to cwd,
// canonicalises existing paths, and for non-existent paths canonicalises
// the deepest existing ancestor and re-attaches the residual components. It
// never silently follows a symlink outside the sandbox's allow-roots.
func (s *Sandbox) Resolve(raw string) (string, error) {
	if strings.Contains(raw, "\x00") {
		return "", fmt.Errorf("sandbox: invalid path")
	}

	expanded := raw
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("sandbox: resolve home dir: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}

	if !filepath.IsAbs(expanded) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("sandbox: resolve cwd: %w", err)
		}
		expanded = filepath.Join(cwd, expanded)
	}
	expanded = filepath.Clean(expanded)

	if _, statErr := os.Stat(expanded); statErr != nil && os.IsNotExist(statErr) {
		if found, ok := findInProjectSubdirs(expanded); ok {
			return found, nil
		}
	}

	resolved, ancestor, err := resolveDeepestAncestor(expanded)
	if err != nil {
		return "", err
	}

	if ancestor != "" {
		if _, inside := s.allowRootFor(expanded); inside && linkEscapesRoots(ancestor, s.cfg.AllowRoots) {
			return "", fmt.Errorf("sandbox: symlink escapes allowed roots")
		}
	}

	return resolved, nil
}

// resolveDeepestAncestor canonicalises the deepest existing ancestor of
// path (following symlinks) and reattaches the non-existent residual.
func resolveDeepestAncestor(path string) (resolved string, canonicalAncestor string, err error) {
	current := path
	var residual []string

	for {
		canon, statErr := filepath.EvalSymlinks(current)
		if statErr == nil {
			joined := filepath.Join(append([]string{canon}, residual...)...)
			return joined, canon, nil
		}
		if !os.IsNotExist(statErr) {
			return "", "", fmt.Errorf("sandbox: resolve path: %w", statErr)
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Hit filesystem root without finding anything that exists.
			return path, "", nil
		}
		residual = append([]string{filepath.Base(current)}, residual...)
		current = parent
	}
}

// projectManifestNames mark a directory as a project root for the
// find-in-project-subdirs fallback below.
var projectManifestNames = []string{"go.mod", "Cargo.toml", "package.json", "pyproject.toml"}

// findInProjectSubdirs implements §4.1's resolve fallback: "if the
// target does not exist but a project subdirectory of the CWD (one
// that contains a build manifest at its root) does contain it, that
// resolution wins." This handles running the assistant from the parent
// of a project checkout and referring to paths as if cwd were the
// project root itself.
func findInProjectSubdirs(target string) (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	entries, err := os.ReadDir(cwd)
	if err != nil {
		return "", false
	}

	fileName := filepath.Base(target)
	parentName := filepath.Base(filepath.Dir(target))
	relFromCwd, relErr := filepath.Rel(cwd, target)
	relUnderCwd := relErr == nil && relFromCwd != ".." && !strings.HasPrefix(relFromCwd, ".."+string(filepath.Separator))

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		subdir := filepath.Join(cwd, e.Name())
		if !hasBuildManifest(subdir) {
			continue
		}

		if parentName != "" && parentName != "." && parentName != string(filepath.Separator) {
			if canon, ok := statAndCanonicalize(filepath.Join(subdir, parentName, fileName)); ok {
				return canon, true
			}
		}
		if relUnderCwd {
			if canon, ok := statAndCanonicalize(filepath.Join(subdir, relFromCwd)); ok {
				return canon, true
			}
		}
	}
	return "", false
}

// hasBuildManifest reports whether dir contains a recognized build
// manifest file at its root.
func hasBuildManifest(dir string) bool {
	for _, name := range projectManifestNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// statAndCanonicalize returns candidate's canonical form if it exists.
func statAndCanonicalize(candidate string) (string, bool) {
	if _, err := os.Stat(candidate); err != nil {
		return "", false
	}
	if canon, err := filepath.EvalSymlinks(candidate); err == nil {
		return canon, true
	}
	return candidate, true
}

// linkEscapesRoots reports whether ancestor (an already fully-resolved,
// symlink-free path) falls outside every configured allow-root, when
// allow-roots are configured at all.
func linkEscapesRoots(ancestor string, allowRoots []string) bool {
	if len(allowRoots) == 0 {
		return false
	}
	for _, root := range allowRoots {
		canonRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			canonRoot = root
		}
		if withinRoot(canonRoot, ancestor) {
			return false
		}
	}
	return true
}

// ResolveAndClassify is the end-to-end entry point tools call: it resolves
// raw (preserving the §4.1 step-1 traversal check against the unresolved
// input, which Resolve's canonicalisation would otherwise erase) and then
// classifies the result for op.
func (s *Sandbox) ResolveAndClassify(raw string, op Operation) (Verdict, error) {
	if HasTraversal(raw) {
		return Verdict{Allowed: false, RequiresApproval: false, Risk: op.Risk(),
			Reason: "path traversal is blocked"}, nil
	}
	resolved, err := s.Resolve(raw)
	if err != nil {
		return Verdict{}, err
	}
	return s.Classify(resolved, op), nil
}

// Classify evaluates the policy order from §4.1 for the given canonical
// path and operation.
func (s *Sandbox) Classify(canonicalPath string, op Operation) Verdict {
	v := Verdict{ResolvedPath: canonicalPath, Risk: op.Risk()}

	if s.isHardBlocked(canonicalPath) {
		v.Allowed = false
		v.RequiresApproval = false
		v.Reason = "path is hard-blocked by policy"
		return v
	}

	if (op == OpWrite || op == OpDelete) && s.isSystemBinaryDir(canonicalPath) {
		v.Allowed = false
		v.RequiresApproval = false
		v.Reason = "write/delete to system directory is blocked"
		return v
	}

	if root, ok := s.allowRootFor(canonicalPath); ok {
		v.Allowed = true
		v.RequiresApproval = op.Risk() >= approval.RiskMedium
		v.Reason = fmt.Sprintf("within allow-root %s", root)
		return v
	}

	if s.cfg.DisableApprovalEscalation {
		v.Allowed = false
		v.RequiresApproval = false
		v.Reason = "outside allow-roots, approval escalation disabled"
		return v
	}

	v.Allowed = false
	v.RequiresApproval = true
	v.Risk = approval.RiskHigh
	v.Reason = "outside allow-roots, requires approval"
	return v
}

// IsBlocked reports whether canonicalPath is hard-blocked, independent of
// any particular operation. §8's invariant requires this to be consulted
// before any allowed=true verdict can be produced.
func (s *Sandbox) IsBlocked(canonicalPath string) bool {
	return s.isHardBlocked(canonicalPath)
}

func (s *Sandbox) isHardBlocked(p string) bool {
	lower := strings.ToLower(p)
	for _, root := range s.cfg.BlockedRoots {
		if withinRoot(strings.ToLower(root), lower) {
			return true
		}
	}
	base := filepath.Base(p)
	for _, re := range s.blockedPatterns {
		if re.MatchString(base) || re.MatchString(p) {
			return true
		}
	}
	return false
}

func (s *Sandbox) isSystemBinaryDir(p string) bool {
	for _, dir := range systemBinaryDirs {
		if withinRoot(dir, p) {
			return true
		}
	}
	return false
}

func (s *Sandbox) allowRootFor(p string) (string, bool) {
	for _, root := range s.cfg.AllowRoots {
		if withinRoot(root, p) {
			return root, true
		}
	}
	return "", false
}

// withinRoot reports whether p is root itself or a descendant of root,
// comparing cleaned paths component-wise so "/tmp/foobar" is not treated
// as within "/tmp/foo".
func withinRoot(root, p string) bool {
	root = filepath.Clean(root)
	p = filepath.Clean(p)
	if root == p {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}

// HasTraversal reports whether the raw (unresolved) input string contains a
// ".." path-traversal segment, per §4.1 step 1's hard-block condition.
func HasTraversal(raw string) bool {
	for _, part := range strings.Split(filepath.ToSlash(raw), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
