package mcpconn

import (
	"regexp"
	"strings"
)

// toolNameDelimiter separates the server name from the tool name in a fully
// qualified tool name. Model-facing tool names must conform to
// ^[a-zA-Z0-9_-]+$, so the delimiter is drawn from that character set.
const toolNameDelimiter = "__AGENT_MCP__"

// namePattern is the pattern valid server and tool names must match.
const namePattern = "^[a-zA-Z0-9_-]+$"

var validNameRE = regexp.MustCompile(namePattern)

// validName reports whether name is acceptable as a server or tool
// identifier.
func validName(name string) bool {
	return validNameRE.MatchString(name)
}

// FullyQualifiedToolName returns the catalog key for a (server, tool) pair.
// Inputs are assumed to already satisfy the name pattern.
func FullyQualifiedToolName(server, tool string) string {
	return server + toolNameDelimiter + tool
}

// ParseFullyQualifiedToolName splits a catalog key back into its server and
// tool halves at the first occurrence of the delimiter. ok is false when the
// delimiter is absent or either half is empty.
func ParseFullyQualifiedToolName(fqName string) (server, tool string, ok bool) {
	server, tool, found := strings.Cut(fqName, toolNameDelimiter)
	if !found || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}
