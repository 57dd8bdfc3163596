package mcpconn

import (
	"log/slog"
	"time"
)

// ServerConfig describes how to launch one MCP server over stdio. Values are
// read once during NewManager and never mutated afterwards.
type ServerConfig struct {
	// Command is the executable to spawn.
	Command string
	// Args are passed to the command verbatim.
	Args []string
	// Env entries are appended to the inherited process environment.
	Env map[string]string
}

// Options configure manager construction. The zero value is usable; call
// sites normally pass nil and rely on the defaults.
type Options struct {
	// ClientName and ClientVersion identify this client during the MCP
	// capability handshake.
	ClientName    string
	ClientVersion string
	// HandshakeTimeout bounds spawn plus initialize for each server
	// independently. A server that exceeds it lands in StartupErrors without
	// affecting its siblings.
	HandshakeTimeout time.Duration
	// ListToolsTimeout bounds the tools/list request issued to each server
	// during discovery, independently per server.
	ListToolsTimeout time.Duration
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Factory overrides how sessions are launched, for tests and alternate
	// transports. Defaults to the stdio factory backed by the MCP SDK.
	Factory SessionFactory
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcpcore"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ListToolsTimeout <= 0 {
		opts.ListToolsTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Factory == nil {
		opts.Factory = newStdioSession
	}
	return opts
}
