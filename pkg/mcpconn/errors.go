package mcpconn

import "fmt"

// StartupErrors records, per server name, why a configured server never
// became usable. A server appears either here or in the live session set,
// never both.
type StartupErrors map[string]error

// ToolCollisionError reports two tools mapping to the same fully qualified
// name. Construction fails with it rather than silently merging the entries.
type ToolCollisionError struct {
	Name string
}

func (e *ToolCollisionError) Error() string {
	return fmt.Sprintf("tool name collision for %q", e.Name)
}

// UnknownServerError is returned by CallTool when the named server has no
// live session: it was never configured, failed startup, or the name was
// mistyped.
type UnknownServerError struct {
	Server string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("unknown MCP server %q", e.Server)
}
