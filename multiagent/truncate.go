package multiagent

// Output caps keep tool results from flooding the model context. The
// markers are part of the tool output contract and appear verbatim in
// conversation history.
const (
	StdoutLimit      = 5000
	StderrLimit      = 2000
	PlannerReadLimit = 10000

	stdoutTruncatedMarker  = "\n... [Output truncated]"
	stderrTruncatedMarker  = "\n... [Error output truncated]"
	plannerTruncatedMarker = "\n... [Content truncated for planning analysis]"
)

func truncateAt(s string, limit int, marker string) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + marker
}

// TruncateStdout caps command stdout for inclusion in tool output.
func TruncateStdout(s string) string {
	return truncateAt(s, StdoutLimit, stdoutTruncatedMarker)
}

// TruncateStderr caps command stderr for inclusion in tool output.
func TruncateStderr(s string) string {
	return truncateAt(s, StderrLimit, stderrTruncatedMarker)
}

// TruncateForPlanning caps file content read by the planner, which favors
// breadth of exploration over complete file bodies.
func TruncateForPlanning(s string) string {
	return truncateAt(s, PlannerReadLimit, plannerTruncatedMarker)
}
