package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"toolrt/internal/approval"
)

func newSandboxWithRoot(t *testing.T, root string) *Sandbox {
	t.Helper()
	sb, err := New(Config{AllowRoots: []string{root}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sb
}

func TestResolveJoinsRelativePathToCWD(t *testing.T) {
	root := t.TempDir()
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	sb := newSandboxWithRoot(t, root)

	resolved, err := sb.Resolve("note.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(root, "note.txt")
	if resolved != want {
		t.Fatalf("expected %q, got %q", want, resolved)
	}
}

func TestResolveExpandsHomePrefix(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}
	sb := newSandboxWithRoot(t, home)

	resolved, err := sb.Resolve("~/scratch.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(home, "scratch.txt")
	if resolved != want {
		t.Fatalf("expected %q, got %q", want, resolved)
	}
}

func TestClassifyBlocksHardBlockedFile(t *testing.T) {
	root := t.TempDir()
	sb := newSandboxWithRoot(t, root)

	envPath := filepath.Join(root, ".env")
	v := sb.Classify(envPath, OpRead)
	if v.Allowed {
		t.Fatalf("expected .env to be blocked, got %+v", v)
	}
	if v.RequiresApproval {
		t.Fatalf("hard-blocked paths must never require approval (no escalation), got %+v", v)
	}
}

func TestClassifyBlocksSystemBinaryWrite(t *testing.T) {
	sb := newSandboxWithRoot(t, "/usr/bin")
	v := sb.Classify("/usr/bin/ls", OpWrite)
	if v.Allowed {
		t.Fatalf("expected system binary write to be blocked, got %+v", v)
	}
}

func TestClassifyAllowsSystemBinaryRead(t *testing.T) {
	sb := newSandboxWithRoot(t, "/usr/bin")
	v := sb.Classify("/usr/bin/ls", OpRead)
	if !v.Allowed {
		t.Fatalf("expected read of allow-rooted system binary to be allowed, got %+v", v)
	}
}

func TestClassifyAllowRootRequiresApprovalByRisk(t *testing.T) {
	root := t.TempDir()
	sb := newSandboxWithRoot(t, root)

	readVerdict := sb.Classify(filepath.Join(root, "a.txt"), OpRead)
	if readVerdict.RequiresApproval {
		t.Fatalf("low risk read should not require approval: %+v", readVerdict)
	}

	writeVerdict := sb.Classify(filepath.Join(root, "a.txt"), OpWrite)
	if !writeVerdict.RequiresApproval {
		t.Fatalf("medium+ risk write should require approval: %+v", writeVerdict)
	}
}

func TestClassifyDefaultOutsideAllowRootsRequiresApproval(t *testing.T) {
	sb, err := New(Config{AllowRoots: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v := sb.Classify("/opt/unwritten/file.txt", OpWrite)
	if v.Allowed {
		t.Fatalf("expected default verdict outside allow-roots to not be allowed: %+v", v)
	}
	if !v.RequiresApproval {
		t.Fatalf("expected default verdict to require approval: %+v", v)
	}
	if v.Risk != approval.RiskHigh {
		t.Fatalf("expected High risk for default outside-root verdict, got %v", v.Risk)
	}
}

func TestClassifyDisableApprovalEscalationHardDenies(t *testing.T) {
	sb, err := New(Config{AllowRoots: []string{t.TempDir()}, DisableApprovalEscalation: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v := sb.Classify("/opt/unwritten/file.txt", OpWrite)
	if v.Allowed || v.RequiresApproval {
		t.Fatalf("expected hard deny with escalation disabled, got %+v", v)
	}
}

func TestResolveAndClassifyBlocksTraversal(t *testing.T) {
	root := t.TempDir()
	sb := newSandboxWithRoot(t, root)

	v, err := sb.ResolveAndClassify("../escape.txt", OpRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Allowed {
		t.Fatalf("expected traversal to be blocked, got %+v", v)
	}
}

func TestIsBlockedNeverYieldsAllowedVerdict(t *testing.T) {
	root := t.TempDir()
	sb := newSandboxWithRoot(t, root)

	candidates := []string{
		filepath.Join(root, ".env"),
		filepath.Join(root, "id_rsa"),
		filepath.Join(root, "credentials.json"),
	}
	for _, p := range candidates {
		if !sb.IsBlocked(p) {
			t.Fatalf("expected %q to be blocked", p)
		}
		v := sb.Classify(p, OpRead)
		if v.Allowed {
			t.Fatalf("invariant violated: blocked path %q yielded allowed verdict", p)
		}
	}
}

func TestResolveAndClassifyNonexistentPathResolvesDeepestAncestor(t *testing.T) {
	root := t.TempDir()
	sb := newSandboxWithRoot(t, root)

	v, err := sb.ResolveAndClassify(filepath.Join(root, "nested", "missing.txt"), OpWrite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "nested", "missing.txt")
	if v.ResolvedPath != want {
		t.Fatalf("expected resolved path %q, got %q", want, v.ResolvedPath)
	}
}

func TestResolveFindsPathInProjectSubdirWithBuildManifest(t *testing.T) {
	cwd := t.TempDir()
	projectDir := filepath.Join(cwd, "myproj")
	srcDir := filepath.Join(projectDir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module myproj\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	target := filepath.Join(srcDir, "main.go")
	if err := os.WriteFile(target, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write main.go: %v", err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(cwd); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	sb := newSandboxWithRoot(t, cwd)
	resolved, err := sb.Resolve("src/main.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	wantResolved, _ := filepath.EvalSymlinks(target)
	if resolved != wantResolved {
		t.Fatalf("expected project-subdir resolution %q, got %q", wantResolved, resolved)
	}
}

func TestResolveIgnoresSubdirWithoutBuildManifest(t *testing.T) {
	cwd := t.TempDir()
	otherDir := filepath.Join(cwd, "notaproject")
	if err := os.MkdirAll(filepath.Join(otherDir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(otherDir, "src", "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write main.go: %v", err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(cwd); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	sb := newSandboxWithRoot(t, cwd)
	resolved, err := sb.Resolve("src/main.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(cwd, "src", "main.go")
	if resolved != want {
		t.Fatalf("expected deepest-ancestor fallback %q, got %q", want, resolved)
	}
}
