package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"hotelmap/internal/etl"
)

func readAll(t *testing.T, typ string, cfg etl.SourceConfig) []etl.Record {
	t.Helper()
	src, err := etl.GetSource(typ)
	if err != nil {
		t.Fatal(err)
	}
	recCh, errCh := src.Read(context.Background(), cfg)
	var out []etl.Record
	for r := range recCh {
		out = append(out, r)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("read %s: %v", typ, err)
	}
	return out
}

func TestCSVSource_Inline(t *testing.T) {
	data := "\xef\xbb\xbfRoom; Icon ;X;Y\n0101;bed;10;20\nLobby;bell;;\n"
	records := readAll(t, "csv", etl.SourceConfig{"data": data, "delimiter": ";"})
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	first := records[0].Data
	if first["room"] != "0101" || first["icon"] != "bed" || first["x"] != 10.0 || first["y"] != 20.0 {
		t.Errorf("first = %+v", first)
	}
	if records[1].Data["x"] != nil {
		t.Errorf("blank cell = %#v", records[1].Data["x"])
	}
}

func TestCSVSource_NoHeaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.csv")
	os.WriteFile(path, []byte("Gym,dumbbell\nPool,pool\n"), 0o644)

	src, _ := etl.GetSource("csv")
	schema, err := src.Discover(context.Background(), etl.SourceConfig{"filePath": path, "hasHeader": "false"})
	if err != nil {
		t.Fatal(err)
	}
	if got := schema.FieldNames(); len(got) != 2 || got[0] != "col_1" {
		t.Errorf("fields = %v", got)
	}
	records := readAll(t, "csv", etl.SourceConfig{"filePath": path, "hasHeader": "false"})
	if len(records) != 2 || records[1].Data["col_1"] != "Pool" {
		t.Errorf("records = %+v", records)
	}
}

func TestCSVSource_TabSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.TSV")
	os.WriteFile(path, []byte("name\ticon\nSauna, east\tsoap\n"), 0o644)

	if typ := etl.SourceForFile(path); typ != "csv" {
		t.Fatalf("SourceForFile = %q", typ)
	}
	records := readAll(t, "csv", etl.SourceConfig{"filePath": path})
	if len(records) != 1 || records[0].Data["name"] != "Sauna, east" {
		t.Errorf("records = %+v", records)
	}
	records = readAll(t, "csv", etl.SourceConfig{"data": "a\tb\n1\t2\n", "delimiter": `\t`})
	if len(records) != 1 || records[0].Data["b"] != 2.0 {
		t.Errorf("inline tab records = %+v", records)
	}
}

func TestSourceForFile(t *testing.T) {
	tests := map[string]string{
		"/tmp/rooms.json": "json",
		"rooms.JSON":      "json",
		"rooms.csv":       "csv",
		"rooms.xlsx":      etl.DefaultFileSource,
		"rooms":           etl.DefaultFileSource,
	}
	for path, want := range tests {
		if got := etl.SourceForFile(path); got != want {
			t.Errorf("SourceForFile(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCSVSource_Errors(t *testing.T) {
	src, _ := etl.GetSource("csv")
	for name, cfg := range map[string]etl.SourceConfig{
		"no input": {},
		"missing":  {"filePath": filepath.Join(t.TempDir(), "nope.csv")},
	} {
		recCh, errCh := src.Read(context.Background(), cfg)
		for range recCh {
		}
		if err := <-errCh; err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestJSONSource_DataPath(t *testing.T) {
	data := `{"hotel":{"rooms":[{"name":"Suite","icon":"bed","x":40,"y":60,"tags":["vip"]},{"name":"Bar"}]}}`
	records := readAll(t, "json", etl.SourceConfig{"data": data, "dataPath": "hotel.rooms"})
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Data["x"] != 40.0 || records[0].Data["tags"] != `["vip"]` {
		t.Errorf("first = %+v", records[0].Data)
	}

	src, _ := etl.GetSource("json")
	if _, err := src.Discover(context.Background(), etl.SourceConfig{"data": data, "dataPath": "hotel.rooms.name"}); err == nil {
		t.Error("expected bad path error")
	}
	schema, err := src.Discover(context.Background(), etl.SourceConfig{"data": data, "dataPath": "hotel.rooms"})
	if err != nil {
		t.Fatal(err)
	}
	if names := schema.FieldNames(); len(names) != 5 || names[0] != "icon" {
		t.Errorf("schema = %v", names)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rooms.json":
			if r.Header.Get("Authorization") != "Bearer t0k" {
				http.Error(w, "denied", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"name":"Spa","icon":"soap"}]}`))
		case "/rooms.csv":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte("name,icon\nCafe,coffee\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	records := readAll(t, "http", etl.SourceConfig{
		"url":      srv.URL + "/rooms.json",
		"headers":  `{"Authorization":"Bearer t0k"}`,
		"dataPath": "data",
	})
	if len(records) != 1 || records[0].Data["name"] != "Spa" {
		t.Errorf("json records = %+v", records)
	}

	records = readAll(t, "http", etl.SourceConfig{"url": srv.URL + "/rooms.csv"})
	if len(records) != 1 || records[0].Data["icon"] != "coffee" {
		t.Errorf("csv records = %+v", records)
	}

	src, _ := etl.GetSource("http")
	for _, cfg := range []etl.SourceConfig{
		{"url": srv.URL + "/rooms.json"},
		{"url": "file:///etc/passwd"},
		{"url": srv.URL + "/rooms.json", "headers": "nope"},
	} {
		if _, err := src.Discover(context.Background(), cfg); err == nil {
			t.Errorf("expected error for %v", cfg)
		}
	}
}

func TestListSources(t *testing.T) {
	specs := etl.ListSources()
	var types []string
	for _, s := range specs {
		types = append(types, s.Type)
	}
	want := []string{"csv", "http", "json"}
	if len(types) != len(want) {
		t.Fatalf("types = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types = %v", types)
		}
	}
}
