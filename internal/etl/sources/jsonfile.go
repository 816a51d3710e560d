package sources

import (
	"context"

	"hotelmap/internal/etl"
)

// ── JSON Source ─────────────────────────────────────────────
// Reads a room list from a JSON file or inline JSON text.

type jsonSource struct{}

func init() { etl.RegisterSource(&jsonSource{}) }

func (s *jsonSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:       "json",
		Label:      "JSON",
		Extensions: []string{".json"},
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Help: "Absolute path to the JSON file"},
			{Key: "data", Label: "JSON Text", Type: "textarea", Help: "Pasted JSON, used instead of the file when set"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Help: "Dot-separated path to the array (e.g., 'data.rooms'). Leave empty if root is an array."},
		},
	}
}

func (s *jsonSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	records, err := readJSON(cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *jsonSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return stream(ctx, func() ([]etl.Record, error) { return readJSON(cfg) })
}

func readJSON(cfg etl.SourceConfig) ([]etl.Record, error) {
	data, err := readInput(cfg)
	if err != nil {
		return nil, err
	}
	dataPath, _ := cfg["dataPath"].(string)
	return parseJSONRecords(data, dataPath)
}
