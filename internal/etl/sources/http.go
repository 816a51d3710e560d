package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hotelmap/internal/etl"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches a room list from a REST endpoint, e.g. a property management
// system export.

type httpSource struct {
	client *http.Client
}

func init() { etl.RegisterSource(&httpSource{client: &http.Client{Timeout: 30 * time.Second}}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL returning JSON or CSV"},
			{Key: "method", Label: "Method", Type: "select", Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "textarea", Help: "JSON object of headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Type: "textarea", Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Help: "Dot-separated path to the array in a JSON response"},
		},
	}
}

func (s *httpSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	records, err := s.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *httpSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return stream(ctx, func() ([]etl.Record, error) { return s.fetch(ctx, cfg) })
}

func (s *httpSource) fetch(ctx context.Context, cfg etl.SourceConfig) ([]etl.Record, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}

	method, _ := cfg["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := cfg["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if headersStr, ok := cfg["headers"].(string); ok && headersStr != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(headersStr), &headers); err != nil {
			return nil, fmt.Errorf("headers must be a JSON object: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInput+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxInput {
		return nil, fmt.Errorf("response exceeds %d bytes", maxInput)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "csv") {
		headers, rows, err := readCSV(etl.SourceConfig{"data": string(data)})
		if err != nil {
			return nil, err
		}
		return csvRecords(headers, rows), nil
	}
	dataPath, _ := cfg["dataPath"].(string)
	return parseJSONRecords(data, dataPath)
}
