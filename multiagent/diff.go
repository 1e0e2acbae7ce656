package multiagent

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffInfo summarizes what a write or replace did to one file. Changed is
// always Added+Removed, so it is zero exactly when the content did not
// change. For created files the diff is a pure addition and Added equals
// the new file's line count.
type DiffInfo struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Changed int    `json:"changed"`
	Patch   string `json:"patch"`
	Created bool   `json:"created"`
}

// ComputeDiff builds a unified diff with three lines of context between two
// versions of a file and counts added/removed lines from the diff body.
func ComputeDiff(path, before, after string) *DiffInfo {
	info := &DiffInfo{Path: path}
	if before == after {
		return info
	}

	var a, b []string
	if before != "" {
		a = difflib.SplitLines(before)
	}
	if after != "" {
		b = difflib.SplitLines(after)
	}

	patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		// Not reachable with SplitLines input.
		info.Added = len(b)
		info.Removed = len(a)
		info.Changed = info.Added + info.Removed
		return info
	}

	info.Patch = patch
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			info.Added++
		case strings.HasPrefix(line, "-"):
			info.Removed++
		}
	}
	info.Changed = info.Added + info.Removed
	return info
}
