package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentrt/mcpcore/pkg/mcpconn"
)

type fakeService struct {
	tools   map[string]*mcp.Tool
	callErr error

	lastServer string
	lastTool   string
	lastArgs   any
}

func (f *fakeService) ListAllTools() map[string]*mcp.Tool {
	return f.tools
}

func (f *fakeService) CallTool(_ context.Context, server, tool string, arguments any, _ time.Duration) (*mcp.CallToolResult, error) {
	f.lastServer = server
	f.lastTool = tool
	f.lastArgs = arguments
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &mcp.CallToolResult{}, nil
}

func TestListToolsRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeService{tools: map[string]*mcp.Tool{
		mcpconn.FullyQualifiedToolName("good", "echo"): {Name: "echo"},
	}}
	handler := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tools = %d, expected 200", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin == "" {
		t.Fatalf("expected CORS headers on response")
	}
	var payload map[string]*mcp.Tool
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding catalog: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("catalog = %v, expected one entry", payload)
	}
}

func TestCallRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	handler := NewHandler(svc, nil)

	body := `{"server":"good","tool":"echo","arguments":{"msg":"hi"},"timeout_ms":500}`
	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /call = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastServer != "good" || svc.lastTool != "echo" {
		t.Fatalf("call routed to %s/%s", svc.lastServer, svc.lastTool)
	}
	if svc.lastArgs == nil {
		t.Fatalf("arguments not forwarded")
	}
}

func TestCallRouteValidation(t *testing.T) {
	t.Parallel()

	handler := NewHandler(&fakeService{}, nil)

	for _, body := range []string{`not json`, `{"server":"","tool":"echo"}`, `{"server":"s","tool":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("POST /call with body %q = %d, expected 400", body, rec.Code)
		}
	}
}

func TestCallRouteUnknownServer(t *testing.T) {
	t.Parallel()

	svc := &fakeService{callErr: &mcpconn.UnknownServerError{Server: "nope"}}
	handler := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"server":"nope","tool":"echo"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("POST /call for unknown server = %d, expected 404", rec.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if !strings.Contains(payload.Error, "nope") {
		t.Fatalf("error %q does not name the server", payload.Error)
	}
}
