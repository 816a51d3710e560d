package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTransferTools() {
	s.mcp.AddTool(mcp.NewTool("export_map",
		mcp.WithDescription("Export the whole hotel map as the JSON document used by import_map"),
	), s.handleExportMap)

	s.mcp.AddTool(mcp.NewTool("import_map",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the whole hotel map with an exported JSON document. Requires user approval."),
		mcp.WithString("data", mcp.Description("Export JSON, e.g. {\"floors\":{\"1\":{...}}}"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleImportMap)

	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List saved revisions of the map, newest first"),
	), s.handleListRevisions)

	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("🛑 DESTRUCTIVE: Roll the map back to a saved revision. Requires user approval."),
		mcp.WithString("revisionId", mcp.Description("Revision ID from list_revisions"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreRevision)

	s.mcp.AddTool(mcp.NewTool("run_backup",
		mcp.WithDescription("Write a backup of the map to the backup directory now"),
	), s.handleRunBackup)
}

func (s *Server) handleExportMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, data, err := s.maps.Export()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) handleImportMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data := req.GetString("data", "")
	if data == "" {
		return nil, fmt.Errorf("data is required")
	}
	if !s.approve("import_map", "Replace all floors, markers and connections with imported data", 0) {
		return textResult("Action rejected by user"), nil
	}
	report, err := s.maps.Import(ctx, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	s.setActiveFloor(0)
	return textResult("Imported " + report.String()), nil
}

func (s *Server) handleListRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revs, err := s.maps.ListRevisions()
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return jsonResult(revs)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("revisionId", "")
	if id == "" {
		return nil, fmt.Errorf("revisionId is required")
	}
	if !s.approve("restore_revision", fmt.Sprintf("Restore the map to revision %s", id), 0) {
		return textResult("Action rejected by user"), nil
	}
	if err := s.maps.RestoreRevision(ctx, id); err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	return textResult(fmt.Sprintf("Restored revision %s", id)), nil
}

func (s *Server) handleRunBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.backups == nil {
		return nil, fmt.Errorf("backups are not configured")
	}
	file, err := s.backups.RunBackup(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return jsonResult(file)
}
