package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"hotelmap/internal/etl"
)

// ── CSV Source ──────────────────────────────────────────────
// Reads a room list from a CSV file or inline CSV text.

type csvSource struct{}

func init() { etl.RegisterSource(&csvSource{}) }

func (s *csvSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:       "csv",
		Label:      "CSV",
		Extensions: []string{".csv", ".tsv", ".txt"},
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Help: "Absolute path to the CSV file"},
			{Key: "data", Label: "CSV Text", Type: "textarea", Help: "Pasted CSV, used instead of the file when set"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "hasHeader", Label: "Has Header", Type: "select", Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
		},
	}
}

func (s *csvSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	headers, _, err := readCSV(cfg)
	if err != nil {
		return nil, err
	}
	schema := &etl.Schema{Fields: make([]etl.Field, len(headers))}
	for i, h := range headers {
		schema.Fields[i] = etl.Field{Name: h, Type: "text"}
	}
	return schema, nil
}

func (s *csvSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return stream(ctx, func() ([]etl.Record, error) {
		headers, rows, err := readCSV(cfg)
		if err != nil {
			return nil, err
		}
		return csvRecords(headers, rows), nil
	})
}

func csvRecords(headers []string, rows [][]string) []etl.Record {
	records := make([]etl.Record, 0, len(rows))
	for _, row := range rows {
		data := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(row) {
				data[h] = inferCSVValue(row[j])
			}
		}
		records = append(records, etl.Record{Data: data})
	}
	return records
}

func readCSV(cfg etl.SourceConfig) ([]string, [][]string, error) {
	input, err := readInput(cfg)
	if err != nil {
		return nil, nil, err
	}
	// Spreadsheet exports often start with a UTF-8 byte order mark.
	input = bytes.TrimPrefix(input, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(input))
	reader.Comma = csvDelimiter(cfg)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv")
	}

	hasHeader := true
	if h, ok := cfg["hasHeader"].(string); ok {
		hasHeader = strings.ToLower(h) != "false"
	}

	if hasHeader {
		headers := make([]string, len(records[0]))
		for i, h := range records[0] {
			headers[i] = strings.ToLower(strings.TrimSpace(h))
		}
		return headers, records[1:], nil
	}
	// Generate column names: col_1, col_2, ...
	headers := make([]string, len(records[0]))
	for i := range headers {
		headers[i] = fmt.Sprintf("col_%d", i+1)
	}
	return headers, records, nil
}

// csvDelimiter returns the configured delimiter, a tab for .tsv files
// and a comma otherwise. A literal "\t" means tab.
func csvDelimiter(cfg etl.SourceConfig) rune {
	if delim, ok := cfg["delimiter"].(string); ok && delim != "" {
		if delim == `\t` {
			return '\t'
		}
		return rune(delim[0])
	}
	if path, _ := cfg["filePath"].(string); strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// inferCSVValue parses numbers so coordinates can be range-checked and
// sorted. Blank cells become nil. Zero-padded values like room "0101"
// stay text.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
