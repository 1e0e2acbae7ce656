package multiagent

import "strings"

// Routing names of the built-in roles.
const (
	ExpertCoordinator   = "Coordinator"
	ExpertCodeGenerator = "CodeGenerator"
	ExpertCodeReviewer  = "CodeReviewer"
	ExpertPlanner       = "Planner"
)

// Role is an immutable expert definition: who it is, what it may call, and
// the base system prompt it runs under. Defined at process start, never
// mutated.
type Role struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Description  string   `json:"description"`
	Icon         string   `json:"icon"`
	SystemPrompt string   `json:"-"`
	ToolNames    []string `json:"tools"`
}

const codeGeneratorPrompt = `You are a Code Generator AI assistant. You specialize in:
    - Writing and generating code files
    - Implementing features based on specifications
    - Creating complete solutions from requirements
    - Modifying and improving existing code

    IMPORTANT PRINCIPLES:
    - Prefer modifying existing files over rewriting them completely
    - The conversation history contains file contents from previous operations
    - Test your code after creating or modifying it
    - Be thorough and complete your tasks properly

    You can use tools as many times as needed to complete the task properly. Focus on delivering high-quality, working solutions.`

const codeReviewerPrompt = `You are a Code Reviewer AI assistant. You specialize in:
    - Code review and quality assurance
    - Security checks and best practices
    - Bug detection and performance analysis
    - Code formatting and standards validation
    - Improving code quality and maintainability

    IMPORTANT PRINCIPLES:
    - Be proactive in finding and analyzing code
    - The conversation history contains file contents from previous operations
    - Test code after making changes to ensure it still works
    - Provide comprehensive analysis with actionable recommendations
    - Focus on delivering thorough code review and improvements

    You can use tools as many times as needed to provide thorough code review and improvements.`

// builtinRoles is the closed role set. The coordinator routes and never
// executes tools; its prompt lives with the router.
var builtinRoles = map[string]Role{
	ExpertCoordinator: {
		Name:        ExpertCoordinator,
		DisplayName: "Coordinator",
		Description: "Analyzes requests and routes them to the most appropriate specialist agent",
		Icon:        "🎯",
	},
	ExpertCodeGenerator: {
		Name:         ExpertCodeGenerator,
		DisplayName:  "Code Generator",
		Description:  "Generates code solutions based on requirements and specifications",
		Icon:         "⚡",
		SystemPrompt: codeGeneratorPrompt,
		ToolNames: []string{
			"write_file",
			"find_and_replace_in_file",
			"read_file",
			"list_directory",
			"execute_bash_command",
		},
	},
	ExpertCodeReviewer: {
		Name:         ExpertCodeReviewer,
		DisplayName:  "Code Reviewer",
		Description:  "Reviews code quality, security, and adherence to best practices",
		Icon:         "🔎",
		SystemPrompt: codeReviewerPrompt,
		ToolNames: []string{
			"read_file",
			"list_directory",
			"find_and_replace_in_file",
			"execute_bash_command",
		},
	},
	ExpertPlanner: {
		Name:        ExpertPlanner,
		DisplayName: "Planner",
		Description: "Analyzes complex tasks and creates detailed execution plans with file system awareness",
		Icon:        "📋",
		ToolNames: []string{
			"read_file",
			"list_directory",
			"execute_safe_bash",
		},
	},
}

// LookupRole returns a built-in role by routing name.
func LookupRole(name string) (Role, bool) {
	r, ok := builtinRoles[name]
	return r, ok
}

// AllRoles returns the built-in roles in a fixed presentation order.
func AllRoles() []Role {
	names := []string{ExpertCoordinator, ExpertCodeGenerator, ExpertCodeReviewer, ExpertPlanner}
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		roles = append(roles, builtinRoles[n])
	}
	return roles
}

// recentFilesSuffix gives the reviewer awareness of files the session has
// already touched. Empty when nothing was written yet.
func recentFilesSuffix(recentFiles []string) string {
	if len(recentFiles) == 0 {
		return ""
	}
	return "\n\nCONTEXT: Recently created/modified files in this session: " + strings.Join(recentFiles, ", ")
}
