package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"hotelmap/internal/etl"
	"hotelmap/internal/service"
)

func (s *Server) registerLoadTools() {
	s.mcp.AddTool(mcp.NewTool("list_marker_sources",
		mcp.WithDescription("List the room list formats load_markers can read, their options and the transform types"),
	), s.handleListMarkerSources)

	s.mcp.AddTool(mcp.NewTool("preview_marker_source",
		mcp.WithDescription("Show the columns and first rows of a room list without changing the map. Use it to choose the mapping for load_markers."),
		mcp.WithString("sourceType", mcp.Description("csv, json or http"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description(`Source options as JSON, e.g. {"data":"name,icon\nSpa,soap"} or {"url":"https://pms.example/rooms","dataPath":"data"}`), mcp.Required()),
	), s.handlePreviewMarkerSource)

	s.mcp.AddTool(mcp.NewTool("load_markers",
		mcp.WithDescription("Place every row of a room list (CSV, JSON or HTTP) as a marker on a floor in one step. Rows without x/y are laid out automatically. mode=replace removes the floor's markers first and requires user approval."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to the active floor)")),
		mcp.WithString("sourceType", mcp.Description("csv, json or http"), mcp.Required()),
		mcp.WithString("sourceConfig", mcp.Description("Source options as JSON (see preview_marker_source)"), mcp.Required()),
		mcp.WithString("mapping", mcp.Description(`Column names as JSON, e.g. {"name":"room","icon":"type"}. Defaults: name, icon, x, y`)),
		mcp.WithString("transforms", mcp.Description(`Optional JSON array applied in order, e.g. [{"type":"filter","config":{"field":"wing","op":"eq","value":"East"}},{"type":"map_values","config":{"field":"type","values":{"Suite":"bed","Gym":"dumbbell"}}},{"type":"scale","config":{"field":"x","extent":1200}}]`)),
		mcp.WithString("dedupeKey", mcp.Description("Column whose repeated values are dropped")),
		mcp.WithString("mode", mcp.Description("append (default) or replace")),
	), s.handleLoadMarkers)

	s.mcp.AddTool(mcp.NewTool("list_marker_loads",
		mcp.WithDescription("List recent load_markers runs with row counts and errors, newest first"),
	), s.handleListMarkerLoads)
}

func (s *Server) handleListMarkerSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"sources":    s.loader.ListSources(),
		"transforms": etl.TransformTypes(),
	})
}

func (s *Server) handlePreviewMarkerSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cfg etl.SourceConfig
	if err := parseJSON(req.GetString("sourceConfig", "{}"), &cfg); err != nil {
		return nil, fmt.Errorf("invalid sourceConfig JSON: %w", err)
	}
	preview, err := s.loader.Preview(ctx, req.GetString("sourceType", ""), cfg)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleLoadMarkers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	floorID, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}

	in := service.LoadInput{
		SourceType: req.GetString("sourceType", ""),
		DedupeKey:  req.GetString("dedupeKey", ""),
		FloorID:    floorID,
		Mode:       req.GetString("mode", ""),
	}
	if err := parseJSON(req.GetString("sourceConfig", "{}"), &in.SourceConfig); err != nil {
		return nil, fmt.Errorf("invalid sourceConfig JSON: %w", err)
	}
	if raw := req.GetString("mapping", ""); raw != "" {
		if err := parseJSON(raw, &in.Mapping); err != nil {
			return nil, fmt.Errorf("invalid mapping JSON: %w", err)
		}
	}
	if raw := req.GetString("transforms", ""); raw != "" {
		if err := parseJSON(raw, &in.Transforms); err != nil {
			return nil, fmt.Errorf("invalid transforms JSON: %w", err)
		}
	}

	mode, err := etl.ParseLoadMode(in.Mode)
	if err != nil {
		return nil, err
	}
	if mode == etl.LoadReplace {
		if !s.approve("load_markers", fmt.Sprintf("Replace all markers on floor %d with a loaded room list", floorID), floorID) {
			return textResult("Action rejected by user"), nil
		}
	}

	result, err := s.loader.Load(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("load markers: %w", err)
	}
	if result.Declined {
		return textResult("Action rejected by user"), nil
	}
	s.setActiveFloor(floorID)
	return jsonResult(result)
}

func (s *Server) handleListMarkerLoads(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.loader.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	return jsonResult(runs)
}
