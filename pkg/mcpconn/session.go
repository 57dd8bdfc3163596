package mcpconn

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the surface the manager needs from one live server connection.
// Implementations must be safe for concurrent use: the manager issues
// discovery and invocation calls from multiple goroutines without additional
// locking.
type Session interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// SessionFactory launches one configured server and performs the capability
// handshake. The context carries the handshake deadline. Spawn failures and
// handshake failures both surface as the returned error; the manager does
// not distinguish them.
type SessionFactory func(ctx context.Context, name string, cfg ServerConfig, impl *mcp.Implementation) (Session, error)

type stdioSession struct {
	session *mcp.ClientSession
}

// newStdioSession spawns cfg.Command as a subprocess and connects to it over
// stdio. Connect performs the initialize handshake before returning, so a
// non-nil result is a ready session.
func newStdioSession(ctx context.Context, name string, cfg ServerConfig, impl *mcp.Implementation) (Session, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command missing for %q", name)
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	client := mcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, err
	}
	return &stdioSession{session: session}, nil
}

func (s *stdioSession) ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	return s.session.ListTools(ctx, params)
}

func (s *stdioSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	return s.session.CallTool(ctx, params)
}

func (s *stdioSession) Close() error {
	return s.session.Close()
}
