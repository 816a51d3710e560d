package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"hotelmap/internal/etl"
)

// maxInput caps files and response bodies read by any source.
const maxInput = 10 << 20

// readInput returns the inline "data" text when present, otherwise the
// contents of "filePath".
func readInput(cfg etl.SourceConfig) ([]byte, error) {
	if data, ok := cfg["data"].(string); ok && data != "" {
		if len(data) > maxInput {
			return nil, fmt.Errorf("data exceeds %d bytes", maxInput)
		}
		return []byte(data), nil
	}
	filePath, _ := cfg["filePath"].(string)
	if filePath == "" {
		return nil, fmt.Errorf("filePath or data is required")
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	if info.Size() > maxInput {
		return nil, fmt.Errorf("%s exceeds %d bytes", filePath, maxInput)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// stream sends records on a channel until done or cancelled.
func stream(ctx context.Context, load func() ([]etl.Record, error)) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := load()
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

// parseJSONRecords decodes a JSON document and returns the array found at
// the dot-separated dataPath, or the root when dataPath is empty.
func parseJSONRecords(data []byte, dataPath string) ([]etl.Record, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if dataPath != "" {
		for _, part := range strings.Split(dataPath, ".") {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid data path: %q not found", part)
			}
			raw = m[part]
		}
	}
	return toRecords(raw), nil
}

// toRecords converts a raw JSON value into a slice of Records.
func toRecords(raw any) []etl.Record {
	switch v := raw.(type) {
	case []any:
		records := make([]etl.Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, etl.Record{Data: flattenMap(m)})
			}
		}
		return records
	case map[string]any:
		return []etl.Record{{Data: flattenMap(v)}}
	default:
		return nil
	}
}

// flattenMap keeps scalar values and serializes nested ones as JSON.
func flattenMap(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		switch v.(type) {
		case string, float64, bool, nil:
			flat[k] = v
		default:
			b, _ := json.Marshal(v)
			flat[k] = string(b)
		}
	}
	return flat
}

// inferSchema collects the columns seen across records, sorted by name.
func inferSchema(records []etl.Record) *etl.Schema {
	fieldSet := make(map[string]string)
	for _, rec := range records {
		for k, v := range rec.Data {
			if _, exists := fieldSet[k]; !exists {
				fieldSet[k] = inferType(v)
			}
		}
	}

	schema := &etl.Schema{Fields: make([]etl.Field, 0, len(fieldSet))}
	for name, typ := range fieldSet {
		schema.Fields = append(schema.Fields, etl.Field{Name: name, Type: typ})
	}
	sort.Slice(schema.Fields, func(i, j int) bool { return schema.Fields[i].Name < schema.Fields[j].Name })
	return schema
}

func inferType(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "text"
	}
}
