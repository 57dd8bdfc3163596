// Package mcpconn manages the set of Model Context Protocol (MCP) servers an
// agent runtime is configured with. It launches each configured server,
// performs the capability handshake, aggregates every server's tools into a
// single namespace keyed by fully qualified tool name, and exposes one entry
// point to invoke any tool. Individual servers failing to start never take
// down the others: their failures are collected into StartupErrors for the
// caller to surface.
package mcpconn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

// Manager owns one live session per successfully started server together
// with the tool catalog aggregated from them. Both are fixed at
// construction: the catalog is a stable snapshot and is not refreshed when a
// server changes its tool list afterwards. A Manager is safe for concurrent
// use; concurrent CallTool invocations on the same server do not serialize.
type Manager struct {
	opts     Options
	sessions map[string]Session
	tools    map[string]*mcp.Tool
}

type launchResult struct {
	name    string
	session Session
	err     error
	// fatal records a launch unit that terminated abnormally instead of
	// producing a result. It aborts the whole construction.
	fatal error
}

// NewManager launches every configured server concurrently, waits for all of
// them, discovers the tools of each server that became ready, and merges
// them into one catalog keyed by fully qualified tool name.
//
// Servers that fail to start (invalid name, spawn failure, or handshake
// failure/timeout) are reported in StartupErrors and never abort
// construction of the others; callers should surface those errors to the
// user. The returned error is non-nil only for faults that invalidate the
// manager as a whole: a tool discovery failure, a namespace collision, or a
// launch unit terminating abnormally.
func NewManager(ctx context.Context, servers map[string]ServerConfig, opts *Options) (*Manager, StartupErrors, error) {
	options := opts.withDefaults()
	m := &Manager{
		opts:     options,
		sessions: make(map[string]Session),
		tools:    make(map[string]*mcp.Tool),
	}
	startupErrs := make(StartupErrors)
	if len(servers) == 0 {
		return m, startupErrs, nil
	}

	impl := &mcp.Implementation{Name: options.ClientName, Version: options.ClientVersion}
	results := make(chan launchResult, len(servers))
	launched := 0
	for name, cfg := range servers {
		if !validName(name) {
			startupErrs[name] = fmt.Errorf("invalid server name; must match %s", namePattern)
			continue
		}
		launched++
		go func(name string, cfg ServerConfig) {
			res := launchResult{name: name}
			defer func() {
				if r := recover(); r != nil {
					res.session = nil
					res.fatal = fmt.Errorf("launching server %q: panic: %v", name, r)
				}
				results <- res
			}()
			launchCtx, cancel := context.WithTimeout(ctx, options.HandshakeTimeout)
			defer cancel()
			res.session, res.err = options.Factory(launchCtx, name, cfg, impl)
		}(name, cfg)
	}

	var fatal error
	for i := 0; i < launched; i++ {
		res := <-results
		switch {
		case res.fatal != nil:
			if fatal == nil {
				fatal = res.fatal
			}
		case res.err != nil:
			startupErrs[res.name] = res.err
		default:
			m.sessions[res.name] = res.session
		}
	}
	if fatal != nil {
		m.closeAll()
		return nil, nil, fatal
	}

	if err := m.discoverTools(ctx); err != nil {
		m.closeAll()
		return nil, nil, err
	}
	return m, startupErrs, nil
}

// discoverTools queries every live session for its tools concurrently so the
// overall latency tracks the slowest server rather than their sum. A
// tools/list failure on any server fails the whole discovery; tools with
// invalid names are dropped with a logged notice.
func (m *Manager) discoverTools(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for name, sess := range m.sessions {
		g.Go(func() error {
			listCtx, cancel := context.WithTimeout(gctx, m.opts.ListToolsTimeout)
			defer cancel()
			res, err := sess.ListTools(listCtx, nil)
			if err != nil {
				return fmt.Errorf("listing tools for %q: %w", name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, tool := range res.Tools {
				if !validName(tool.Name) {
					m.opts.Logger.Warn("ignoring invalid tool name", "server", name, "tool", tool.Name)
					continue
				}
				fqName := FullyQualifiedToolName(name, tool.Name)
				if _, exists := m.tools[fqName]; exists {
					return &ToolCollisionError{Name: fqName}
				}
				m.tools[fqName] = tool
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.opts.Logger.Info("aggregated tools", "tools", len(m.tools), "servers", len(m.sessions))
	return nil
}

// ListAllTools returns an independent copy of the aggregated catalog. Each
// key is the fully qualified name for the tool; mutating the returned map or
// its entries does not affect the manager. Nested schema values are shared
// with the catalog and must be treated as read-only.
func (m *Manager) ListAllTools() map[string]*mcp.Tool {
	out := make(map[string]*mcp.Tool, len(m.tools))
	for fqName, tool := range m.tools {
		clone := *tool
		out[fqName] = &clone
	}
	return out
}

// Servers returns the names of all servers with a live session, sorted.
func (m *Manager) Servers() []string {
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasServer reports whether a live session exists for the named server.
func (m *Manager) HasServer(server string) bool {
	_, ok := m.sessions[server]
	return ok
}

// CallTool invokes the tool indicated by the (server, tool) pair. A positive
// timeout bounds the call; zero leaves only the context's own deadline in
// effect. The catalog is advisory: invocation does not require the tool to
// still be listed.
func (m *Manager) CallTool(ctx context.Context, server, tool string, arguments any, timeout time.Duration) (*mcp.CallToolResult, error) {
	sess, ok := m.sessions[server]
	if !ok {
		return nil, &UnknownServerError{Server: server}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := sess.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("tool call failed for %s/%s: %w", server, tool, err)
	}
	return res, nil
}

// Close shuts down every live session. The manager must not be used
// afterwards.
func (m *Manager) Close() error {
	var errs []error
	for name, sess := range m.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session for %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) closeAll() {
	if err := m.Close(); err != nil {
		m.opts.Logger.Warn("closing sessions", "error", err)
	}
}
