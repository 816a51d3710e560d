package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"hotelmap/internal/imaging"
)

func (s *Server) registerFloorTools() {
	// ── list_floors ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_floors",
		mcp.WithDescription("List all floors with their marker and connection counts"),
	), s.handleListFloors)

	// ── set_active_floor ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_floor",
		mcp.WithDescription("Set the active floor for subsequent tool calls. Tools that accept floorId will default to this."),
		mcp.WithNumber("floorId",
			mcp.Description("ID of the floor to make active"),
			mcp.Required(),
		),
	), s.handleSetActiveFloor)

	// ── get_floor ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_floor",
		mcp.WithDescription("Get a floor's markers and connections. The floor plan image is omitted."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
	), s.handleGetFloor)

	// ── create_floor ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_floor",
		mcp.WithDescription("Create a new floor. It gets the smallest free floor number and becomes active."),
		mcp.WithString("name",
			mcp.Description("Display name, e.g. \"Lobby\""),
			mcp.Required(),
		),
	), s.handleCreateFloor)

	// ── rename_floor ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_floor",
		mcp.WithDescription("Change a floor's display name"),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("name", mcp.Description("New name"), mcp.Required()),
	), s.handleRenameFloor)

	// ── delete_floor ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_floor",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a floor with all its markers and connections. Requires user approval."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteFloor)

	// ── clear_floor ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("clear_floor",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove all markers and connections from a floor. Requires user approval."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithBoolean("clearImage", mcp.Description("Also remove the floor plan image")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleClearFloor)

	// ── preview_floor ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("preview_floor",
		mcp.WithDescription("Render the floor plan with markers and connections as a PNG image"),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithNumber("width", mcp.Description("Maximum width in pixels (default 1024)")),
	), s.handlePreviewFloor)
}

func (s *Server) handleListFloors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.maps.Floors())
}

func (s *Server) handleSetActiveFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	f, err := s.maps.Floor(id)
	if err != nil {
		return nil, err
	}
	s.setActiveFloor(id)
	return textResult(fmt.Sprintf("Active floor set to %d (%s)", id, f.Name)), nil
}

func (s *Server) handleGetFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	f, err := s.maps.Floor(id)
	if err != nil {
		return nil, err
	}
	hasImage := f.HasImage()
	f.FloorPlanURL = nil
	return jsonResult(map[string]any{
		"id":       id,
		"floor":    f,
		"hasImage": hasImage,
	})
}

func (s *Server) handleCreateFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	id, err := s.maps.AddFloor(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create floor: %w", err)
	}
	// Auto-set as active floor
	s.setActiveFloor(id)
	return jsonResult(map[string]any{"id": id, "name": name})
}

func (s *Server) handleRenameFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	name := req.GetString("name", "")
	if err := s.maps.RenameFloor(ctx, id, name); err != nil {
		return nil, fmt.Errorf("rename floor: %w", err)
	}
	return textResult(fmt.Sprintf("Floor %d renamed to %q", id, name)), nil
}

func (s *Server) handleDeleteFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	f, err := s.maps.Floor(id)
	if err != nil {
		return nil, err
	}
	if !s.approve("delete_floor", fmt.Sprintf("Delete %q with %d marker(s) and %d connection(s)", f.Name, len(f.Markers), len(f.Connections)), id) {
		return textResult("Action rejected by user"), nil
	}
	if err := s.maps.DeleteFloor(ctx, id); err != nil {
		return nil, fmt.Errorf("delete floor: %w", err)
	}
	s.mu.Lock()
	if s.activeFloor == id {
		s.activeFloor = 0
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Floor %d (%s) deleted", id, f.Name)), nil
}

func (s *Server) handleClearFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	clearImage := req.GetBool("clearImage", false)
	desc := fmt.Sprintf("Clear all markers and connections from floor %d", id)
	if clearImage {
		desc += " and remove its floor plan"
	}
	if !s.approve("clear_floor", desc, id) {
		return textResult("Action rejected by user"), nil
	}
	if err := s.maps.ClearFloor(ctx, id, clearImage); err != nil {
		return nil, fmt.Errorf("clear floor: %w", err)
	}
	return textResult(fmt.Sprintf("Floor %d cleared", id)), nil
}

func (s *Server) handlePreviewFloor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	width := int(req.GetFloat("width", imaging.DefaultPreviewWidth))
	if width <= 0 || width > 4096 {
		return nil, fmt.Errorf("width must be between 1 and 4096")
	}
	png, err := s.maps.FloorPreview(id, width)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewImageContent(base64.StdEncoding.EncodeToString(png), "image/png"),
		},
	}, nil
}
