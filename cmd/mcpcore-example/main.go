// Command mcpcore-example wires the connection manager, the HTTP gateway,
// and the message history log into a small runnable program. It loads the
// server map from a TOML config file, reports servers that failed to start,
// and serves the aggregated catalog until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agentrt/mcpcore/pkg/config"
	"github.com/agentrt/mcpcore/pkg/gateway"
	"github.com/agentrt/mcpcore/pkg/history"
	"github.com/agentrt/mcpcore/pkg/mcpconn"
)

func main() {
	configPath := flag.String("config", "config.toml", "TOML file with an mcp_servers table")
	addr := flag.String("addr", ":8700", "gateway listen address")
	historyPath := flag.String("history", "history.jsonl", "message history file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	servers, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, startupErrs, err := mcpconn.NewManager(ctx, servers, &mcpconn.Options{Logger: logger})
	if err != nil {
		log.Fatalf("building connection manager: %v", err)
	}
	defer manager.Close()

	for server, startupErr := range startupErrs {
		logger.Warn("server failed to start", "server", server, "error", startupErr)
	}
	for fqName := range manager.ListAllTools() {
		logger.Info("tool available", "name", fqName)
	}

	msgLog, err := history.Open(*historyPath, nil)
	if err != nil {
		log.Fatalf("opening history log: %v", err)
	}
	sessionID := uuid.New()
	if err := msgLog.Append("session started", sessionID); err != nil {
		logger.Warn("history append failed", "error", err)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           gateway.NewHandler(manager, &gateway.Options{Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", *addr, "servers", manager.Servers())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("gateway server stopped: %v", err)
	}
}
