// Package config loads MCP server launch specs from the runtime's TOML
// configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/agentrt/mcpcore/pkg/mcpconn"
)

type document struct {
	MCPServers map[string]serverEntry `toml:"mcp_servers"`
}

type serverEntry struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

// Parse decodes the mcp_servers table of a TOML document into launch specs.
// Server names are not validated here; the connection manager reports
// invalid names per server at construction time.
func Parse(data []byte) (map[string]mcpconn.ServerConfig, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	servers := make(map[string]mcpconn.ServerConfig, len(doc.MCPServers))
	for name, entry := range doc.MCPServers {
		if entry.Command == "" {
			return nil, fmt.Errorf("config: server %q: command is required", name)
		}
		servers[name] = mcpconn.ServerConfig{
			Command: entry.Command,
			Args:    entry.Args,
			Env:     entry.Env,
		}
	}
	return servers, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (map[string]mcpconn.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
