// Package gateway exposes a constructed connection manager over a small JSON
// HTTP API: the aggregated tool catalog and a single invocation endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"

	"github.com/agentrt/mcpcore/pkg/mcpconn"
)

// ToolService is the manager surface the gateway fronts. *mcpconn.Manager
// satisfies it.
type ToolService interface {
	ListAllTools() map[string]*mcp.Tool
	CallTool(ctx context.Context, server, tool string, arguments any, timeout time.Duration) (*mcp.CallToolResult, error)
}

// Options configure the gateway handler.
type Options struct {
	// Logger receives request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// CORS overrides the permissive default applied to every route.
	CORS *cors.Cors
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CORS == nil {
		opts.CORS = cors.Default()
	}
	return opts
}

type server struct {
	svc    ToolService
	logger *slog.Logger
}

// NewHandler builds the HTTP handler serving GET /tools and POST /call.
func NewHandler(svc ToolService, opts *Options) http.Handler {
	options := opts.withDefaults()
	s := &server{svc: svc, logger: options.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /call", s.handleCallTool)
	return options.CORS.Handler(mux)
}

func (s *server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListAllTools())
}

type callRequest struct {
	Server    string          `json:"server"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	TimeoutMS int64           `json:"timeout_ms,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Server == "" || req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "server and tool are required"})
		return
	}

	var arguments any
	if len(req.Arguments) > 0 {
		arguments = req.Arguments
	}
	timeout := time.Duration(req.TimeoutMS) * time.Millisecond

	result, err := s.svc.CallTool(r.Context(), req.Server, req.Tool, arguments, timeout)
	if err != nil {
		var unknown *mcpconn.UnknownServerError
		status := http.StatusBadGateway
		if errors.As(err, &unknown) {
			status = http.StatusNotFound
		}
		s.logger.Warn("tool call failed", "server", req.Server, "tool", req.Tool, "error", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
