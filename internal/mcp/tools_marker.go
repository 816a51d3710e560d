package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"hotelmap/internal/domain"
	"hotelmap/internal/floorstore"
)

func (s *Server) registerMarkerTools() {
	s.mcp.AddTool(mcp.NewTool("list_icons",
		mcp.WithDescription("List the marker icons that can be used with place_marker"),
	), s.handleListIcons)

	s.mcp.AddTool(mcp.NewTool("place_marker",
		mcp.WithDescription("Place a named marker on a floor. x and y are percentages of the floor plan (0-100). Omit both to let the server pick a free spot."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("name", mcp.Description("Marker name, e.g. \"Front Desk\""), mcp.Required()),
		mcp.WithString("icon", mcp.Description("Icon name or emoji (see list_icons). Defaults to bed.")),
		mcp.WithNumber("x", mcp.Description("Horizontal position in percent")),
		mcp.WithNumber("y", mcp.Description("Vertical position in percent")),
	), s.handlePlaceMarker)

	s.mcp.AddTool(mcp.NewTool("place_markers",
		mcp.WithDescription("Place several markers at once. Entries without x/y are spread over free spots."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("markers", mcp.Description("JSON array of {name, icon, x, y}; icon, x and y are optional"), mcp.Required()),
	), s.handlePlaceMarkers)

	s.mcp.AddTool(mcp.NewTool("find_markers",
		mcp.WithDescription("Find markers whose name contains the query, across all floors"),
		mcp.WithString("query", mcp.Description("Case-insensitive substring"), mcp.Required()),
	), s.handleFindMarkers)

	s.mcp.AddTool(mcp.NewTool("delete_marker",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a marker and every connection touching it. Requires user approval."),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("markerId", mcp.Description("Marker ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteMarker)

	s.mcp.AddTool(mcp.NewTool("connect_markers",
		mcp.WithDescription("Draw a connection between two markers on the same floor"),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("from", mcp.Description("First marker ID"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Second marker ID"), mcp.Required()),
	), s.handleConnectMarkers)

	s.mcp.AddTool(mcp.NewTool("disconnect_markers",
		mcp.WithDescription("Remove the connection between two markers"),
		mcp.WithNumber("floorId", mcp.Description("Floor ID (optional, defaults to active floor)")),
		mcp.WithString("from", mcp.Description("First marker ID"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Second marker ID"), mcp.Required()),
	), s.handleDisconnectMarkers)
}

type placedMarker struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Server) handleListIcons(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type iconInfo struct {
		Name  string `json:"name"`
		Glyph string `json:"glyph"`
	}
	var out []iconInfo
	for _, ic := range domain.Icons() {
		out = append(out, iconInfo{Name: string(ic), Glyph: ic.Glyph()})
	}
	return jsonResult(out)
}

func (s *Server) handlePlaceMarker(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	floorID, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	draft := domain.MarkerDraft{Name: req.GetString("name", ""), Icon: req.GetString("icon", "")}
	args := req.GetArguments()
	if x, ok := args["x"].(float64); ok {
		draft.X = &x
	}
	if y, ok := args["y"].(float64); ok {
		draft.Y = &y
	}

	placed, err := s.placeMarkers(ctx, floorID, []domain.MarkerDraft{draft})
	if err != nil {
		return nil, err
	}
	return jsonResult(placed[0])
}

func (s *Server) handlePlaceMarkers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	floorID, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	var drafts []domain.MarkerDraft
	if err := parseJSON(req.GetString("markers", ""), &drafts); err != nil {
		return nil, fmt.Errorf("markers must be a JSON array: %w", err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("markers is empty")
	}
	placed, err := s.placeMarkers(ctx, floorID, drafts)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"placed": placed})
}

// placeMarkers adds the drafts in one save. Missing coordinates are filled
// in by the layout engine.
func (s *Server) placeMarkers(ctx context.Context, floorID int, drafts []domain.MarkerDraft) ([]placedMarker, error) {
	markers, err := s.maps.PlaceMarkers(ctx, floorID, drafts, false)
	if err != nil {
		return nil, fmt.Errorf("place markers: %w", err)
	}
	placed := make([]placedMarker, len(markers))
	for i, m := range markers {
		placed[i] = placedMarker{ID: m.ID, Name: m.Name, X: m.X, Y: m.Y}
	}
	return placed, nil
}

func (s *Server) handleFindMarkers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(strings.TrimSpace(req.GetString("query", "")))
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	type hit struct {
		FloorID string        `json:"floorId"`
		Floor   string        `json:"floor"`
		Marker  domain.Marker `json:"marker"`
	}
	doc, _ := s.maps.Document()
	hits := []hit{}
	for _, id := range doc.SortedFloorIDs() {
		key := domain.FloorKey(id)
		f := doc.Floors[key]
		for _, m := range f.Markers {
			if strings.Contains(strings.ToLower(m.Name), query) {
				hits = append(hits, hit{FloorID: key, Floor: f.Name, Marker: m})
			}
		}
	}
	return jsonResult(hits)
}

func (s *Server) handleDeleteMarker(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	floorID, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	markerID := req.GetString("markerId", "")
	f, err := s.maps.Floor(floorID)
	if err != nil {
		return nil, err
	}
	idx := f.MarkerIndex(markerID)
	if idx < 0 {
		return nil, domain.MarkerNotFound(markerID)
	}
	if !s.approve("delete_marker", fmt.Sprintf("Delete marker %q from %s", f.Markers[idx].Name, f.Name), floorID) {
		return textResult("Action rejected by user"), nil
	}
	if err := s.maps.DeleteMarker(ctx, floorID, markerID); err != nil {
		return nil, fmt.Errorf("delete marker: %w", err)
	}
	return textResult(fmt.Sprintf("Marker %s deleted", markerID)), nil
}

func (s *Server) handleConnectMarkers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.link(ctx, req, s.maps.Connect)
}

func (s *Server) handleDisconnectMarkers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.link(ctx, req, s.maps.Disconnect)
}

func (s *Server) link(ctx context.Context, req mcp.CallToolRequest, op func(context.Context, int, string, string) (floorstore.LinkResult, error)) (*mcp.CallToolResult, error) {
	floorID, err := s.resolveFloorID(req)
	if err != nil {
		return nil, err
	}
	from, to := req.GetString("from", ""), req.GetString("to", "")
	if from == "" || to == "" {
		return nil, fmt.Errorf("from and to are required")
	}
	res, err := op(ctx, floorID, from, to)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("%s and %s: %s", from, to, res)), nil
}
