package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"hotelmap/internal/domain"
)

const (
	floorsURI      = "hotelmap://floors"
	floorURIPrefix = "hotelmap://floor/"
)

func (s *Server) registerResources() {
	// ── hotelmap://floors ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		floorsURI,
		"All Floors",
		mcp.WithMIMEType("application/json"),
	), s.handleFloorsResource)

	// ── hotelmap://floor/{floorId} ─────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			floorURIPrefix+"{floorId}",
			"Markers and Connections on a Floor",
		),
		s.handleFloorResource,
	)
}

func (s *Server) handleFloorsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.maps.Floors(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      floorsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleFloorResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	floorID, ok := floorIDFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("could not extract floorId from URI: %s", uri)
	}
	f, err := s.maps.Floor(floorID)
	if err != nil {
		return nil, err
	}
	// Image data URLs can be megabytes; agents get a flag instead.
	hasImage := f.HasImage()
	f.FloorPlanURL = nil

	data, _ := json.MarshalIndent(map[string]any{
		"id":       floorID,
		"floor":    f,
		"hasImage": hasImage,
	}, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// floorIDFromURI extracts the id from "hotelmap://floor/{id}".
func floorIDFromURI(uri string) (int, bool) {
	rest, ok := strings.CutPrefix(uri, floorURIPrefix)
	if !ok {
		return 0, false
	}
	return domain.ParseFloorKey(strings.TrimSuffix(rest, "/"))
}
