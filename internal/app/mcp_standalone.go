package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hotelmap/internal/config"
	mcpserver "hotelmap/internal/mcp"
	"hotelmap/internal/service"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// Destructive tools wait for approval through the mcp_approvals table,
// which a running desktop window polls.
func ServeMCP(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the protocol, so logs go to stderr.
	log.SetOutput(os.Stderr)

	be, err := openBackend(cfg, service.NoopEmitter{})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer be.close()
	be.start(ctx, false)

	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:     service.NoopEmitter{},
		Map:         be.maps,
		Backups:     be.backups,
		Loader:      be.loader,
		ApprovalDB:  be.db.Conn(), // Enable SQLite-based approval IPC
		AutoApprove: cfg.MCPAutoApprove,
	})

	log.Println("[MCP] Starting standalone stdio server...")
	if err := mcpSrv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
