package multiagent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Default shell timeouts. The expert tool gets a long leash for builds and
// test runs; the planner's restricted tool is for quick inspection only.
const (
	DefaultExecTimeout     = 180 * time.Second
	DefaultSafeExecTimeout = 30 * time.Second
)

// Operation labels attached to file-mutating outcomes.
const (
	OpCreated  = "created"
	OpReplaced = "replaced"
	OpModified = "modified"
)

// Tool pairs model-facing metadata with an executor. Parameters holds a
// JSON Schema object describing the arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Execute     func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome
}

// ToolOutcome is the result of one tool execution. Content is always the
// model-facing string; errors encountered while doing the work are
// formatted into it rather than returned, so the model can read them and
// adapt. Failed marks an execution fault (the tool could not run at all),
// which is what feeds the per-signature failure counter. Diff, Exec and
// FilePath carry structured detail for specialized events.
type ToolOutcome struct {
	Content   string
	Failed    bool
	Diff      *DiffInfo
	Exec      *ExecResult
	FilePath  string
	Operation string
}

// faultOutcome builds the outcome for a tool that could not execute.
func faultOutcome(tool string, err error) *ToolOutcome {
	return &ToolOutcome{
		Content: (&ToolExecutionError{Tool: tool, Err: err}).Error(),
		Failed:  true,
	}
}

// Argument accessors. Models are loose with JSON types, so numbers arrive
// as float64, int, or json.Number depending on the decoder.

func stringArg(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

func boolArg(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// NewReadFileTool reads files for the generator and reviewer roles. An
// optional 1-indexed inclusive line range slices the content.
func NewReadFileTool() *Tool {
	return &Tool{
		Name:        "read_file",
		Description: "Read and analyze the contents of any file. Use this to examine existing code, configuration files, or any text-based files. Supports an optional 1-indexed inclusive line range for large files.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to read",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "Optional first line to include (1-indexed)",
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "Optional last line to include (inclusive)",
				},
			},
			"required": []string{"file_path"},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			path, ok := args["file_path"].(string)
			if !ok || path == "" {
				return faultOutcome("read_file", fmt.Errorf("file_path is required"))
			}
			start := intArg(args, "start_line", 0)
			end := intArg(args, "end_line", 0)

			content, err := sb.ReadFileRange(path, start, end)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error reading file %s: %v", path, err)}
			}
			return &ToolOutcome{Content: fmt.Sprintf("File contents of %s:\n\n%s", path, content)}
		},
	}
}

// NewWriteFileTool creates or replaces files. The outcome distinguishes the
// two and carries a diff: a pure addition for new files, before/after for
// replacements.
func NewWriteFileTool() *Tool {
	return &Tool{
		Name:        "write_file",
		Description: "Create a new file with specified content. Use this for creating new code files, documentation, or any text files. Parent directories are created automatically.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Name/path of the file to create",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Complete content to write to the file",
				},
			},
			"required": []string{"file_path", "content"},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			path, ok := args["file_path"].(string)
			if !ok || path == "" {
				return faultOutcome("write_file", fmt.Errorf("file_path is required"))
			}
			content := stringArg(args, "content", "")

			res, err := sb.WriteFile(path, content)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error writing to file %s: %v", path, err)}
			}

			diff := ComputeDiff(path, res.Previous, content)
			diff.Created = res.Created
			op := OpReplaced
			if res.Created {
				op = OpCreated
			}
			return &ToolOutcome{
				Content:   fmt.Sprintf("Successfully wrote to %s", path),
				Diff:      diff,
				FilePath:  path,
				Operation: op,
			}
		},
	}
}

// NewFindReplaceTool edits files in place. Literal matching is the default
// so code with regex metacharacters is safe to pass; regex mode is opt-in.
func NewFindReplaceTool() *Tool {
	return &Tool{
		Name:        "find_and_replace_in_file",
		Description: "Modify existing files by finding and replacing text. This is the PREFERRED method for editing existing files rather than rewriting them. Uses literal text matching by default (safe for code with special characters like parentheses). Set use_regex=true only when you need regex patterns.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to modify",
				},
				"find_text": map[string]interface{}{
					"type":        "string",
					"description": "Exact text to find (literal matching by default)",
				},
				"replace_text": map[string]interface{}{
					"type":        "string",
					"description": "Text to replace with",
				},
				"use_regex": map[string]interface{}{
					"type":        "boolean",
					"description": "Set to true for regex pattern matching (default: false)",
				},
			},
			"required": []string{"file_path", "find_text", "replace_text"},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			path, ok := args["file_path"].(string)
			if !ok || path == "" {
				return faultOutcome("find_and_replace_in_file", fmt.Errorf("file_path is required"))
			}
			find := stringArg(args, "find_text", "")
			replace := stringArg(args, "replace_text", "")
			useRegex := boolArg(args, "use_regex", false)

			before, err := sb.ReadFile(path)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error in find and replace for %s: %v", path, err)}
			}

			var after string
			var count int
			if useRegex {
				re, err := regexp.Compile(find)
				if err != nil {
					return &ToolOutcome{Content: fmt.Sprintf("Error in find and replace for %s: %v", path, err)}
				}
				count = len(re.FindAllStringIndex(before, -1))
				after = re.ReplaceAllString(before, replace)
			} else {
				count = strings.Count(before, find)
				after = strings.ReplaceAll(before, find, replace)
			}

			if _, err := sb.WriteFile(path, after); err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error in find and replace for %s: %v", path, err)}
			}
			return &ToolOutcome{
				Content:   fmt.Sprintf("Successfully made %d replacements in %s", count, path),
				Diff:      ComputeDiff(path, before, after),
				FilePath:  path,
				Operation: OpModified,
			}
		},
	}
}

// NewListDirectoryTool lists directory contents for the expert roles.
func NewListDirectoryTool() *Tool {
	return &Tool{
		Name:        "list_directory",
		Description: "Explore directory contents to understand project structure. Lists all files and subdirectories with size information. Essential for understanding what files exist before reading or modifying them.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"directory_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to directory to list (defaults to the session directory)",
				},
			},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			path := stringArg(args, "directory_path", ".")
			if path == "" {
				path = "."
			}
			if _, err := sb.Resolve(path); err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error listing directory %s: %v", path, err)}
			}
			if !sb.IsDir(path) {
				return &ToolOutcome{Content: fmt.Sprintf("Directory %s does not exist or is not a directory.", path)}
			}
			entries, err := sb.ListDir(path)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error listing directory %s: %v", path, err)}
			}
			return &ToolOutcome{Content: formatListing(path, entries)}
		},
	}
}

// formatListing renders sorted directory entries with type markers.
func formatListing(path string, entries []DirEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", path)
	}
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.IsDir:
			items = append(items, fmt.Sprintf("📁 %s/", e.Name))
		case e.Size < 0:
			items = append(items, fmt.Sprintf("📄 %s (size unknown)", e.Name))
		default:
			items = append(items, fmt.Sprintf("📄 %s (%d bytes)", e.Name, e.Size))
		}
	}
	return fmt.Sprintf("Contents of %s:\n", path) + strings.Join(items, "\n")
}

// formatExecBlock renders a command result for the model, with stdout and
// stderr capped.
func formatExecBlock(res *ExecResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", res.Command)
	fmt.Fprintf(&b, "Exit Code: %d\n", res.ExitCode)
	fmt.Fprintf(&b, "Working Directory: %s\n\n", res.WorkDir)
	if res.Stdout != "" {
		fmt.Fprintf(&b, "STDOUT:\n%s\n", TruncateStdout(res.Stdout))
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "STDERR:\n%s\n", TruncateStderr(res.Stderr))
	}
	return b.String()
}

// NewExecuteBashTool is the expert shell: unrestricted commands inside the
// sandbox with a long timeout. A zero timeout selects the default.
func NewExecuteBashTool(timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &Tool{
		Name:        "execute_bash_command",
		Description: "Execute system commands for testing, building, or running code. Use this to run Python scripts, install packages, run tests, compile code, or perform any command-line operations. Includes timeout protection.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The bash command to execute",
				},
				"working_directory": map[string]interface{}{
					"type":        "string",
					"description": "Directory to run the command in (defaults to the session directory)",
				},
			},
			"required": []string{"command"},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			command, ok := args["command"].(string)
			if !ok || command == "" {
				return faultOutcome("execute_bash_command", fmt.Errorf("command is required"))
			}
			workdir := stringArg(args, "working_directory", ".")
			if workdir == "" {
				workdir = "."
			}

			if _, err := sb.Resolve(workdir); err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error executing command '%s': %v", command, err)}
			}
			if !sb.IsDir(workdir) {
				return &ToolOutcome{Content: fmt.Sprintf("Error: Working directory '%s' is not a valid directory.", workdir)}
			}

			res, err := sb.ExecCommand(ctx, command, workdir, timeout)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error executing command '%s': %v", command, err)}
			}
			if res.TimedOut {
				return &ToolOutcome{
					Content: fmt.Sprintf("Command timed out: %s", command),
					Exec:    res,
				}
			}
			return &ToolOutcome{Content: formatExecBlock(res), Exec: res}
		},
	}
}

// NewExecuteSafeBashTool is the planner shell: the safety filter gates
// every command, the timeout is short, and rejections are surfaced with
// their reason so the model can self-correct.
func NewExecuteSafeBashTool(timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = DefaultSafeExecTimeout
	}
	return &Tool{
		Name:        "execute_safe_bash",
		Description: "Execute safe bash commands for information gathering and analysis. Only whitelisted read-only commands are allowed.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The bash command to execute (must be in whitelist)",
				},
				"working_directory": map[string]interface{}{
					"type":        "string",
					"description": "Directory to run the command in",
				},
			},
			"required": []string{"command"},
		},
		Execute: func(ctx context.Context, sb *Sandbox, args map[string]interface{}) *ToolOutcome {
			command, ok := args["command"].(string)
			if !ok || command == "" {
				return faultOutcome("execute_safe_bash", fmt.Errorf("command is required"))
			}
			workdir := stringArg(args, "working_directory", ".")
			if workdir == "" {
				workdir = "."
			}

			if safe, reason := CheckCommand(command); !safe {
				return &ToolOutcome{Content: fmt.Sprintf("Command rejected: %s\nCommand: %s", reason, command)}
			}
			if _, err := sb.Resolve(workdir); err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error executing command '%s': %v", command, err)}
			}
			if !sb.IsDir(workdir) {
				return &ToolOutcome{Content: fmt.Sprintf("Error: Working directory '%s' is not a valid directory.", workdir)}
			}

			res, err := sb.ExecCommand(ctx, command, workdir, timeout)
			if err != nil {
				return &ToolOutcome{Content: fmt.Sprintf("Error executing command '%s': %v", command, err)}
			}
			if res.TimedOut {
				return &ToolOutcome{
					Content: fmt.Sprintf("Command timed out (%ds limit): %s", int(timeout.Seconds()), command),
					Exec:    res,
				}
			}
			return &ToolOutcome{Content: formatExecBlock(res), Exec: res}
		},
	}
}
