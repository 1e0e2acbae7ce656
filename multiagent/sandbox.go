package multiagent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierlabs/atelier/observability"
)

// Sandbox confines every filesystem and process operation of one session to
// a single base directory. Path arguments are canonicalized and checked for
// containment before any I/O happens; escapes via "..", absolute paths, or
// symlinks fail with *PathTraversalError.
type Sandbox struct {
	root   string
	logger zerolog.Logger
}

// NewSandbox creates (if needed) and canonicalizes the base directory.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("sandbox root %q: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox root %q: %w", root, err)
	}
	return &Sandbox{
		root:   canonical,
		logger: observability.WithComponent("sandbox"),
	}, nil
}

// NewSessionSandbox creates a timestamped session directory under base and
// returns a sandbox rooted there.
func NewSessionSandbox(base string) (*Sandbox, error) {
	return NewSandbox(filepath.Join(base, sessionStamp(time.Now())))
}

// sessionStamp formats a session directory name, second resolution plus
// microseconds so concurrent sessions get distinct directories.
func sessionStamp(t time.Time) string {
	return t.Format("20060102_150405") + fmt.Sprintf("_%06d", t.Nanosecond()/1000)
}

// Root returns the canonical base directory.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a user-supplied path to an absolute path inside the sandbox.
// Relative paths join against the root; absolute paths are accepted only
// when they already point inside. Symlinks are resolved through the nearest
// existing ancestor so a link pointing outside cannot smuggle I/O out.
func (s *Sandbox) Resolve(path string) (string, error) {
	joined := path
	if filepath.IsAbs(joined) {
		joined = filepath.Clean(joined)
	} else {
		joined = filepath.Join(s.root, joined)
	}

	resolved := resolveThroughAncestors(joined)
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		s.logger.Warn().Str("path", path).Msg("path traversal rejected")
		return "", &PathTraversalError{Path: path}
	}
	return resolved, nil
}

// resolveThroughAncestors canonicalizes p even when it does not exist yet:
// the deepest existing ancestor is resolved through symlinks and the
// remaining components are rejoined lexically.
func resolveThroughAncestors(p string) string {
	suffix := ""
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, suffix)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}

// Exists reports whether path resolves to an existing file or directory.
func (s *Sandbox) Exists(path string) bool {
	resolved, err := s.Resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

// IsDir reports whether path resolves to an existing directory.
func (s *Sandbox) IsDir(path string) bool {
	resolved, err := s.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && info.IsDir()
}

// Stat returns file info for a path inside the sandbox.
func (s *Sandbox) Stat(path string) (os.FileInfo, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(resolved)
}

// ReadFile returns the full contents of a file.
func (s *Sandbox) ReadFile(path string) (string, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadFileRange returns a 1-indexed inclusive line slice of a file. Zero or
// negative bounds mean "unset": an unset start reads from the first line,
// an unset end reads through the last. Bounds clamp to the file; a range
// that is empty after clamping (start >= end) fails with
// *InvalidRangeError.
func (s *Sandbox) ReadFileRange(path string, start, end int) (string, error) {
	content, err := s.ReadFile(path)
	if err != nil {
		return "", err
	}
	if start <= 0 && end <= 0 {
		return content, nil
	}

	lines := strings.Split(content, "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" && strings.HasSuffix(content, "\n") {
		lines = lines[:n-1]
	}
	total := len(lines)

	from := start
	if from <= 0 {
		from = 1
	} else if from > total {
		from = total
	}
	to := end
	if to <= 0 || to > total {
		to = total
	}
	if from >= to {
		return "", &InvalidRangeError{Start: start, End: end, Lines: total}
	}
	return strings.Join(lines[from-1:to], "\n"), nil
}

// WriteResult reports what a write did and carries the prior content of a
// replaced file for diffing.
type WriteResult struct {
	Path     string
	Created  bool
	Previous string
}

// WriteFile writes content to a file inside the sandbox, creating parent
// directories as needed.
func (s *Sandbox) WriteFile(path, content string) (*WriteResult, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	res := &WriteResult{Path: path, Created: true}
	if prev, err := os.ReadFile(resolved); err == nil {
		res.Created = false
		res.Previous = string(prev)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return nil, err
	}

	op := "replaced"
	if res.Created {
		op = "created"
	}
	s.logger.Debug().Str("path", path).Str("operation", op).Msg("file written")
	return res, nil
}

// DirEntry is one child of a listed directory.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// ListDir returns the sorted children of a directory inside the sandbox.
func (s *Sandbox) ListDir(path string) ([]DirEntry, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		de := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if !de.IsDir {
			if info, err := entry.Info(); err == nil {
				de.Size = info.Size()
			} else {
				de.Size = -1
			}
		}
		result = append(result, de)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ExecResult holds the outcome of one shell command.
type ExecResult struct {
	Command    string `json:"command"`
	WorkDir    string `json:"work_dir"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecCommand runs a shell command with its working directory confined to
// the sandbox. The child runs in its own process group; on timeout the
// whole group is killed and the result is marked TimedOut. A non-nil error
// means the command could not be started at all.
func (s *Sandbox) ExecCommand(ctx context.Context, command, workdir string, timeout time.Duration) (*ExecResult, error) {
	if workdir == "" {
		workdir = "."
	}
	resolvedDir, err := s.Resolve(workdir)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(resolvedDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("working directory %q is not a directory", workdir)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell := "/bin/sh"
	shellArg := "-c"
	if runtime.GOOS == "windows" {
		shell = "cmd.exe"
		shellArg = "/c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	cmd.Dir = resolvedDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Command:    command,
		WorkDir:    workdir,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}

	s.logger.Debug().
		Str("command", command).
		Int("exit_code", result.ExitCode).
		Bool("timed_out", result.TimedOut).
		Int64("duration_ms", result.DurationMs).
		Msg("command executed")
	return result, nil
}
