package multiagent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(filepath.Join(t.TempDir(), "box"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sb
}

func TestSandboxResolveInside(t *testing.T) {
	sb := newTestSandbox(t)

	for _, path := range []string{".", "file.txt", "./file.txt", "sub/dir/file.txt", "sub/../file.txt"} {
		resolved, err := sb.Resolve(path)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error: %v", path, err)
			continue
		}
		if resolved != sb.Root() && !strings.HasPrefix(resolved, sb.Root()+string(filepath.Separator)) {
			t.Errorf("Resolve(%q) = %q, outside root %q", path, resolved, sb.Root())
		}
	}

	// Absolute paths already inside the sandbox are accepted.
	abs := filepath.Join(sb.Root(), "ok.txt")
	resolved, err := sb.Resolve(abs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != abs {
		t.Errorf("expected %q, got %q", abs, resolved)
	}
}

func TestSandboxResolveTraversal(t *testing.T) {
	sb := newTestSandbox(t)

	for _, path := range []string{"../escape.txt", "sub/../../escape.txt", "/etc/passwd", "../../.."} {
		_, err := sb.Resolve(path)
		if err == nil {
			t.Errorf("Resolve(%q): expected traversal error", path)
			continue
		}
		var traversal *PathTraversalError
		if !errors.As(err, &traversal) {
			t.Errorf("Resolve(%q): expected *PathTraversalError, got %T", path, err)
			continue
		}
		if traversal.Path != path {
			t.Errorf("expected error path %q, got %q", path, traversal.Path)
		}
		if !strings.Contains(err.Error(), "Path traversal attempt detected") {
			t.Errorf("unexpected error message: %v", err)
		}
	}
}

func TestSandboxResolveSymlinkEscape(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(sb.Root(), "link")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	_, err := sb.Resolve("link/secret.txt")
	var traversal *PathTraversalError
	if !errors.As(err, &traversal) {
		t.Fatalf("expected *PathTraversalError through symlink, got %v", err)
	}
}

func TestSandboxReadFileRange(t *testing.T) {
	sb := newTestSandbox(t)
	content := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(filepath.Join(sb.Root(), "lines.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"full file", 0, 0, content},
		{"middle slice", 2, 4, "two\nthree\nfour"},
		{"default start", 0, 2, "one\ntwo"},
		{"default end", 4, 0, "four\nfive"},
		{"end clamped", 2, 99, "two\nthree\nfour\nfive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.ReadFileRange("lines.txt", tt.start, tt.end)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSandboxReadFileRangeInvalid(t *testing.T) {
	sb := newTestSandbox(t)
	if err := os.WriteFile(filepath.Join(sb.Root(), "lines.txt"), []byte("one\ntwo\nthree\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		start, end int
	}{
		{"single line", 2, 2},
		{"inverted", 3, 1},
		{"start clamps onto end", 99, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sb.ReadFileRange("lines.txt", tt.start, tt.end)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected *InvalidRangeError, got %v", err)
			}
			if rangeErr.Start != tt.start || rangeErr.End != tt.end {
				t.Errorf("expected requested range %d-%d on error, got %d-%d", tt.start, tt.end, rangeErr.Start, rangeErr.End)
			}
			if rangeErr.Lines != 3 {
				t.Errorf("expected 3 lines, got %d", rangeErr.Lines)
			}
		})
	}
}

func TestSandboxWriteFile(t *testing.T) {
	sb := newTestSandbox(t)

	res, err := sb.WriteFile("hello.txt", "hello\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("expected Created for a new file")
	}
	if res.Previous != "" {
		t.Errorf("expected empty Previous, got %q", res.Previous)
	}

	res, err = sb.WriteFile("hello.txt", "goodbye\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created {
		t.Error("expected replace, not create")
	}
	if res.Previous != "hello\n" {
		t.Errorf("expected prior content, got %q", res.Previous)
	}

	got, err := sb.ReadFile("hello.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "goodbye\n" {
		t.Errorf("expected %q, got %q", "goodbye\n", got)
	}
}

func TestSandboxWriteFileCreatesParents(t *testing.T) {
	sb := newTestSandbox(t)

	if _, err := sb.WriteFile("a/b/c.txt", "nested"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sb.IsDir("a/b") {
		t.Error("expected parent directories to be created")
	}
	got, err := sb.ReadFile("a/b/c.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "nested" {
		t.Errorf("expected %q, got %q", "nested", got)
	}
}

func TestSandboxListDir(t *testing.T) {
	sb := newTestSandbox(t)
	if _, err := sb.WriteFile("zebra.txt", "z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sb.WriteFile("alpha.txt", "aa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Mkdir(filepath.Join(sb.Root(), "mid"), 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := sb.ListDir(".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Sorted by name.
	if entries[0].Name != "alpha.txt" || entries[1].Name != "mid" || entries[2].Name != "zebra.txt" {
		t.Errorf("unexpected order: %v", entries)
	}
	if !entries[1].IsDir {
		t.Error("expected mid to be a directory")
	}
	if entries[0].Size != 2 {
		t.Errorf("expected size 2, got %d", entries[0].Size)
	}
}

func TestSandboxExecCommand(t *testing.T) {
	sb := newTestSandbox(t)

	res, err := sb.ExecCommand(context.Background(), "echo hello", ".", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("expected stdout %q, got %q", "hello", res.Stdout)
	}
	if res.TimedOut {
		t.Error("unexpected timeout")
	}

	res, err = sb.ExecCommand(context.Background(), "exit 3", ".", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
}

func TestSandboxExecCommandTimeout(t *testing.T) {
	sb := newTestSandbox(t)

	res, err := sb.ExecCommand(context.Background(), "sleep 5", ".", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut")
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit -1 on timeout, got %d", res.ExitCode)
	}
}

func TestSandboxExecCommandBadWorkdir(t *testing.T) {
	sb := newTestSandbox(t)

	if _, err := sb.ExecCommand(context.Background(), "echo hi", "missing", time.Second); err == nil {
		t.Error("expected error for missing working directory")
	}

	_, err := sb.ExecCommand(context.Background(), "echo hi", "../outside", time.Second)
	var traversal *PathTraversalError
	if !errors.As(err, &traversal) {
		t.Errorf("expected *PathTraversalError, got %v", err)
	}
}

func TestNewSessionSandbox(t *testing.T) {
	base := t.TempDir()

	first, err := NewSessionSandbox(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := NewSessionSandbox(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Root() == second.Root() {
		t.Error("expected distinct session directories")
	}
	for _, sb := range []*Sandbox{first, second} {
		if filepath.Dir(sb.Root()) != mustEval(t, base) {
			t.Errorf("expected session dir under %q, got %q", base, sb.Root())
		}
	}
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resolved
}
