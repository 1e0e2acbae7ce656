package multiagent

import (
	"fmt"
	"regexp"
	"strings"
)

// dangerousPatterns block destructive commands, privilege escalation,
// process control, and shell metacharacters. They are checked against the
// whole command string before the whitelist is consulted, so a dangerous
// token anywhere in the command rejects it.
var dangerousPatterns = []string{
	`\brm\b`, `\bmv\b`, `\bcp\b`, `\bdd\b`, `\bchmod\b`, `\bchown\b`,
	`\bsu\b`, `\bsudo\b`, `\bkill\b`, `\bkillall\b`, `\bpkill\b`,
	`\breboot\b`, `\bshutdown\b`, `\bhalt\b`, `\binit\b`,
	`\bmount\b`, `\bumount\b`, `\bfdisk\b`, `\bparted\b`,
	`\b>\b`, `\b>>\b`, `\b<\b`, `\b\|\b`, `\b&\b`, `\b;\b`,
	`\bexec\b`, `\beval\b`, `\bsource\b`, `\b\.\b`,
}

var dangerousRegexps = compileDangerous()

func compileDangerous() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(dangerousPatterns))
	for i, p := range dangerousPatterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

// safeCommands is the closed whitelist of leading tokens the planner's
// restricted shell accepts. Everything here is informational or read-only.
var safeCommands = map[string]bool{
	// File and directory inspection.
	"ls": true, "ll": true, "dir": true, "find": true, "locate": true,
	"which": true, "whereis": true,
	"cat": true, "head": true, "tail": true, "less": true, "more": true,
	"file": true, "stat": true,
	"pwd": true, "whoami": true, "id": true, "groups": true,
	"env": true, "printenv": true,

	// System information.
	"ps": true, "top": true, "htop": true, "free": true, "df": true,
	"du": true, "lscpu": true, "lsblk": true,
	"uname": true, "hostname": true, "uptime": true, "date": true,
	"cal": true, "history": true,

	// Network information.
	"ping": true, "nslookup": true, "dig": true, "host": true,
	"netstat": true, "ss": true, "lsof": true,

	// Text processing.
	"grep": true, "egrep": true, "fgrep": true, "awk": true, "sed": true,
	"sort": true, "uniq": true, "wc": true, "cut": true, "tr": true,
	"tee": true, "diff": true, "cmp": true, "comm": true,

	// Archive inspection.
	"tar": true, "zip": true, "unzip": true, "gzip": true,
	"gunzip": true, "zcat": true,

	// Development tools.
	"git": true, "python": true, "python3": true, "node": true,
	"npm": true, "pip": true, "pip3": true,
	"java": true, "javac": true, "gcc": true, "g++": true,
	"make": true, "cmake": true,

	// Package managers, info subcommands only.
	"apt": true, "yum": true, "dnf": true, "brew": true,
	"conda": true, "docker": true,
}

var gitWriteOps = []string{"push", "commit", "add", "rm", "reset"}
var dockerLifecycleOps = []string{"run", "exec", "start", "stop", "rm"}

// CheckCommand reports whether a shell command is safe for the planner's
// restricted executor. The reason string is surfaced verbatim to the model
// so it can self-correct; accepted commands get "Command is safe".
func CheckCommand(command string) (bool, string) {
	command = strings.TrimSpace(command)

	for i, re := range dangerousRegexps {
		if re.MatchString(command) {
			return false, fmt.Sprintf("Command contains dangerous pattern: %s", dangerousPatterns[i])
		}
	}

	head := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		head = fields[0]
	}
	if !safeCommands[head] {
		return false, fmt.Sprintf("Command '%s' is not in the safe commands whitelist", head)
	}

	lower := strings.ToLower(command)
	switch head {
	case "git":
		for _, op := range gitWriteOps {
			if strings.Contains(lower, op) {
				return false, "Git write operations are not allowed"
			}
		}
	case "python", "python3", "node":
		if strings.Contains(command, "-c") {
			return false, "Code execution with -c flag is not allowed"
		}
	case "docker":
		for _, op := range dockerLifecycleOps {
			if strings.Contains(lower, op) {
				return false, "Docker container operations are not allowed"
			}
		}
	}

	return true, "Command is safe"
}
