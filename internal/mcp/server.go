package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"hotelmap/internal/domain"
	"hotelmap/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for the hotel map.
// It exposes tools, resources, and prompts so AI agents can lay out floors.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue

	maps    *service.MapService
	backups *service.BackupService
	loader  *service.MarkerLoader

	// Floor used when a tool call omits floorId (set by set_active_floor)
	mu          sync.Mutex
	activeFloor int
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter     EventEmitter
	Map         *service.MapService
	Backups     *service.BackupService // optional
	Loader      *service.MarkerLoader  // defaults to a loader writing through Map
	ApprovalDB  *sql.DB                // When set, use SQLite-based approval (standalone mode)
	AutoApprove bool
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NoopEmitter{}
	}
	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.ApprovalDB != nil {
		approval.SetDB(deps.ApprovalDB)
	}
	approval.SetAutoApprove(deps.AutoApprove)
	if deps.Loader == nil {
		deps.Loader = service.NewMarkerLoader(deps.Map, deps.Emitter)
	}

	s := &Server{
		emitter:  deps.Emitter,
		approval: approval,
		maps:     deps.Map,
		backups:  deps.Backups,
		loader:   deps.Loader,
	}

	s.mcp = server.NewMCPServer(
		"hotelmap-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerFloorTools()
	s.registerMarkerTools()
	s.registerTransferTools()
	s.registerLoadTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Handler serves the MCP protocol over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// ListenHTTP serves streamable HTTP on addr until ctx is done. The desktop
// app uses it to host the server next to the window that approves its
// destructive tools.
func (s *Server) ListenHTTP(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[MCP] HTTP shutdown: %v", err)
		}
	}()

	log.Printf("[MCP] Starting HTTP server on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve mcp on %s: %w", addr, err)
	}
	return nil
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// Resolve answers a request raised by this server. It reports false for
// ids it does not know.
func (s *Server) Resolve(actionID string, approved bool) bool {
	return s.approval.Resolve(actionID, approved)
}

// PendingApprovals lists this server's requests still waiting for the user.
func (s *Server) PendingApprovals() []PendingAction {
	return s.approval.Pending()
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }

// parseJSON decodes a tool argument that carries JSON text.
func parseJSON(data string, target any) error {
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return err
	}
	return nil
}

// resolveFloorID returns floorId from the tool args or falls back to the
// active floor, then to the lowest floor in the document.
func (s *Server) resolveFloorID(req mcp.CallToolRequest) (int, error) {
	if raw, ok := req.GetArguments()["floorId"]; ok && raw != nil {
		id, ok := floorArg(raw)
		if !ok {
			return 0, fmt.Errorf("floorId must be a positive integer")
		}
		return id, nil
	}
	s.mu.Lock()
	active := s.activeFloor
	s.mu.Unlock()
	if active > 0 {
		return active, nil
	}
	if floors := s.maps.Floors(); len(floors) > 0 {
		id, _ := domain.ParseFloorKey(floors[0].ID)
		return id, nil
	}
	return 0, fmt.Errorf("no floorId provided and the map has no floors (use create_floor first)")
}

// floorArg accepts a floor id sent as a JSON number or string.
func floorArg(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return domain.ParseFloorKey(fmt.Sprint(int(v)))
	case string:
		return domain.ParseFloorKey(v)
	}
	return 0, false
}

func (s *Server) setActiveFloor(id int) {
	s.mu.Lock()
	s.activeFloor = id
	s.mu.Unlock()
}

// approve runs a destructive tool through the approval queue.
func (s *Server) approve(tool, description string, floorID int) bool {
	meta := fmt.Sprintf(`{"floorId":%d}`, floorID)
	approved, err := s.approval.Request(tool, description, meta)
	if err != nil {
		log.Printf("[MCP] %s not approved: %v", tool, err)
	}
	return err == nil && approved
}
