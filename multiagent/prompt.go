package multiagent

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const recentCommitLimit = 10

// BuildExpertPrompt assembles the system prompt for one expert turn: the
// role prompt, the reviewer's recent-files context when the run has touched
// files, the environment block, and a repository context block when the
// session directory sits inside a git work tree.
func BuildExpertPrompt(role Role, recentFiles []string, workingDir, model string) string {
	var b strings.Builder
	b.WriteString(role.SystemPrompt)
	if role.Name == ExpertCodeReviewer {
		b.WriteString(recentFilesSuffix(recentFiles))
	}
	b.WriteString("\n\n")
	b.WriteString(buildEnvironmentContext(workingDir, model))
	if gitCtx := buildGitContext(workingDir); gitCtx != "" {
		b.WriteString("\n\n")
		b.WriteString(gitCtx)
	}
	return b.String()
}

// BuildPlannerPrompt assembles the system prompt for a planner turn.
func BuildPlannerPrompt(pt PlanType, workingDir, model string) string {
	var b strings.Builder
	b.WriteString(PlannerSystemPrompt(pt))
	b.WriteString("\n\n")
	b.WriteString(buildEnvironmentContext(workingDir, model))
	if gitCtx := buildGitContext(workingDir); gitCtx != "" {
		b.WriteString("\n\n")
		b.WriteString(gitCtx)
	}
	return b.String()
}

func buildEnvironmentContext(workingDir, model string) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", insideGitWorkTree(workingDir))
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "OS version: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

func insideGitWorkTree(dir string) bool {
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// buildGitContext summarizes branch, dirty files, and recent commits.
// Returns "" outside a repository so callers can skip the block.
func buildGitContext(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<git_context>\n")

	head, headErr := repo.Head()
	if headErr == nil {
		fmt.Fprintf(&sb, "Branch: %s\n", head.Name().Short())
	}

	if wt, err := repo.Worktree(); err == nil {
		if st, err := wt.Status(); err == nil && len(st) > 0 {
			fmt.Fprintf(&sb, "Modified/untracked files: %d\n", len(st))
		}
	}

	if headErr == nil {
		if iter, err := repo.Log(&git.LogOptions{From: head.Hash()}); err == nil {
			var commits []string
			_ = iter.ForEach(func(c *object.Commit) error {
				if len(commits) >= recentCommitLimit {
					return storer.ErrStop
				}
				subject := strings.SplitN(c.Message, "\n", 2)[0]
				commits = append(commits, fmt.Sprintf("%s %s", c.Hash.String()[:7], subject))
				return nil
			})
			if len(commits) > 0 {
				sb.WriteString("Recent commits:\n")
				sb.WriteString(strings.Join(commits, "\n"))
				sb.WriteString("\n")
			}
		}
	}

	sb.WriteString("</git_context>")
	return sb.String()
}
