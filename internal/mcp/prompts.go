package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("map_floor",
		mcp.WithPromptDescription("Lay out the points of interest of one hotel floor and connect the walking routes"),
		mcp.WithArgument("floorName",
			mcp.ArgumentDescription("Name of the floor, e.g. Lobby"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("rooms",
			mcp.ArgumentDescription("Comma-separated list of places to mark"),
			mcp.RequiredArgument(),
		),
	), s.handleMapFloorPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("audit_routes",
		mcp.WithPromptDescription("Check every floor for markers that are not reachable through connections"),
	), s.handleAuditRoutesPrompt)
}

func (s *Server) handleMapFloorPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	floorName := req.Params.Arguments["floorName"]
	rooms := req.Params.Arguments["rooms"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Map the %s floor", floorName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Map the hotel floor "%s". Follow these steps:

1. Use list_floors. If no floor is named "%s", create it with create_floor; otherwise set_active_floor.
2. Use list_icons and pick the closest icon for each place.
3. Use place_markers once with these places: %s. Give x/y (0-100, percent of the floor plan) only when you know where a place is.
4. Connect markers that are next to each other along a corridor with connect_markers.
5. Call preview_floor and check that nothing overlaps and every place is reachable.`, floorName, floorName, rooms),
				},
			},
		},
	}, nil
}

func (s *Server) handleAuditRoutesPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Find unreachable markers",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Audit the walking routes of the hotel map:

1. Read hotelmap://floors, then get_floor for each floor.
2. Treat connections as undirected edges and list markers with no connection at all.
3. List groups of markers that are connected to each other but not to the rest of the floor.
4. Suggest connect_markers calls that would join them, but do not run them until the user agrees.`,
				},
			},
		},
	}, nil
}
