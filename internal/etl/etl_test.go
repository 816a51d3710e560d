package etl

import (
	"context"
	"errors"
	"testing"

	"hotelmap/internal/domain"
)

// ── Test doubles ───────────────────────────────────────────

type staticSource struct {
	typ     string
	records []Record
	err     error
}

func (s *staticSource) Spec() SourceSpec { return SourceSpec{Type: s.typ, Label: s.typ} }

func (s *staticSource) Discover(ctx context.Context, cfg SourceConfig) (*Schema, error) {
	return &Schema{Fields: []Field{{Name: "name", Type: "text"}}}, nil
}

func (s *staticSource) Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error) {
	out := make(chan Record, len(s.records))
	errCh := make(chan error, 1)
	for _, r := range s.records {
		out <- Record{Data: copyData(r.Data)}
	}
	close(out)
	if s.err != nil {
		errCh <- s.err
	}
	close(errCh)
	return out, errCh
}

func copyData(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type recordingDest struct {
	floorID int
	drafts  []domain.MarkerDraft
	replace bool
	decline bool
}

func (d *recordingDest) PlaceMarkers(ctx context.Context, floorID int, drafts []domain.MarkerDraft, replace bool) ([]domain.Marker, error) {
	d.floorID, d.drafts, d.replace = floorID, drafts, replace
	if d.decline {
		return nil, nil
	}
	out := make([]domain.Marker, len(drafts))
	for i, dr := range drafts {
		out[i] = domain.Marker{ID: dr.Name, Name: dr.Name}
	}
	return out, nil
}

func rec(kv ...any) Record {
	data := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i].(string)] = kv[i+1]
	}
	return Record{Data: data}
}

// ── Transforms ─────────────────────────────────────────────

func TestFilterTransform(t *testing.T) {
	tests := []struct {
		op    string
		value any
		in    any
		keep  bool
	}{
		{"eq", "suite", "suite", true},
		{"neq", "suite", "suite", false},
		{"contains", "POOL", "Pool deck", true},
		{"gt", 2.0, 3.0, true},
		{"lt", 2.0, "3", false},
		{"eq", "Suite", " suite ", true},
		{"in", "gym, pool", "Pool", true},
		{"in", []any{"spa", 101.0}, 101.0, true},
		{"in", []any{"spa"}, "bar", false},
	}
	for _, tt := range tests {
		f := &FilterTransform{Field: "v", Op: tt.op, Value: tt.value}
		if _, keep := f.Transform(rec("v", tt.in)); keep != tt.keep {
			t.Errorf("%s %v on %v: keep = %v", tt.op, tt.value, tt.in, keep)
		}
	}
	if _, keep := (&FilterTransform{Field: "missing", Op: "eq"}).Transform(rec("v", 1.0)); keep {
		t.Error("missing field should be dropped")
	}
}

func TestTemplateTransform(t *testing.T) {
	tr := &TemplateTransform{Field: "name", Template: "Room {number} ({wing})"}
	out, _ := tr.Transform(rec("number", 101.0, "wing", "East"))
	if out.Data["name"] != "Room 101 (East)" {
		t.Errorf("name = %v", out.Data["name"])
	}
	out, _ = tr.Transform(rec("number", 7.5))
	if out.Data["name"] != "Room 7.5 ()" {
		t.Errorf("name = %v", out.Data["name"])
	}
}

func TestMapValuesAndScale(t *testing.T) {
	ts := BuildTransformers([]TransformConfig{
		{Type: "map_values", Config: map[string]any{"field": "type", "values": map[string]any{"Suite": "bed", "Gym": "dumbbell"}, "default": "door"}},
		{Type: "scale", Config: map[string]any{"field": "x", "extent": 1200.0}},
		{Type: "scale", Config: map[string]any{"field": "y", "extent": 0.0}}, // no extent: skipped
	}, "")
	if len(ts) != 2 {
		t.Fatalf("transformers = %d, want 2", len(ts))
	}

	out, _ := ApplyTransformers(rec("type", "suite", "x", 300.0, "y", 40.0), ts)
	if out.Data["type"] != "bed" || out.Data["x"] != 25.0 || out.Data["y"] != 40.0 {
		t.Errorf("out = %+v", out.Data)
	}
	out, _ = ApplyTransformers(rec("type", "Lobby", "x", "n/a"), ts)
	if out.Data["type"] != "door" || out.Data["x"] != "n/a" {
		t.Errorf("fallback = %+v", out.Data)
	}

	types := TransformTypes()
	if len(types) != 7 || types[0] != "filter" {
		t.Errorf("types = %v", types)
	}
}

func TestBuildTransformers_OrderAndDedupe(t *testing.T) {
	ts := BuildTransformers([]TransformConfig{
		{Type: "rename", Config: map[string]any{"mapping": map[string]any{"room": "name"}}},
		{Type: "limit", Config: map[string]any{"count": 2.0}},
		{Type: "bogus", Config: map[string]any{}},
		{Type: "filter", Config: map[string]any{"field": "name"}}, // no op: skipped
	}, "name")
	if len(ts) != 3 {
		t.Fatalf("transformers = %d, want 3", len(ts))
	}
	if _, ok := ts[2].(*DedupeTransform); !ok {
		t.Errorf("dedupe should run last, got %T", ts[2])
	}

	var kept []string
	for _, r := range []Record{rec("room", "A"), rec("room", "A"), rec("room", "B"), rec("room", "C")} {
		if out, keep := ApplyTransformers(r, ts); keep {
			kept = append(kept, out.Data["name"].(string))
		}
	}
	// The limit counts rows before dedupe sees them.
	if len(kept) != 1 || kept[0] != "A" {
		t.Errorf("kept = %v", kept)
	}
}

func TestApplyBatchSort(t *testing.T) {
	records := []Record{rec("n", "10"), rec("n", 9.0), rec("n", "x"), rec("n", 11.0)}
	ts := []Transformer{&SortTransform{Field: "n", Direction: "desc"}}
	sorted := ApplyBatchSort(records, ts)
	got := []any{sorted[0].Data["n"], sorted[1].Data["n"], sorted[2].Data["n"]}
	if got[0] != "x" || got[1] != 11.0 || got[2] != "10" {
		t.Errorf("sorted = %v", got)
	}
	if records[0].Data["n"] != "10" {
		t.Error("input slice was reordered")
	}
}

// ── Mapping ────────────────────────────────────────────────

func TestToDrafts(t *testing.T) {
	records := []Record{
		rec("room", "Lobby", "kind", "bell", "px", 10.0, "py", 20.0),
		rec("room", "Gym", "kind", "dumbbell"),
		rec("room", "", "kind", "bed"),
		rec("room", "Spa", "kind", "hot tub"),
		rec("room", "Roof", "px", 50.0),
		rec("room", "Moon", "px", 150.0, "py", 1.0),
		rec("room", 204.0, "px", "", "py", nil),
	}
	drafts, skipped := ToDrafts(records, ColumnMapping{Name: "room", Icon: "kind", X: "px", Y: "py"})

	if len(drafts) != 3 {
		t.Fatalf("drafts = %+v", drafts)
	}
	if !drafts[0].HasPosition() || *drafts[0].X != 10 || *drafts[0].Y != 20 {
		t.Errorf("lobby = %+v", drafts[0])
	}
	if drafts[1].HasPosition() {
		t.Error("gym should be auto-placed")
	}
	if drafts[2].Name != "204" || drafts[2].HasPosition() {
		t.Errorf("numeric name = %+v", drafts[2])
	}

	wantRows := []int{3, 4, 5, 6}
	if len(skipped) != len(wantRows) {
		t.Fatalf("skipped = %+v", skipped)
	}
	for i, row := range wantRows {
		if skipped[i].Row != row {
			t.Errorf("skipped[%d].Row = %d, want %d", i, skipped[i].Row, row)
		}
	}
}

func TestParseLoadMode(t *testing.T) {
	for in, want := range map[string]LoadMode{"": LoadAppend, "Append": LoadAppend, " replace ": LoadReplace} {
		if got, err := ParseLoadMode(in); err != nil || got != want {
			t.Errorf("ParseLoadMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLoadMode("merge"); err == nil {
		t.Error("expected error")
	}
}

// ── Engine ─────────────────────────────────────────────────

func TestEngineRun(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_rooms", records: []Record{
		rec("name", "Desk", "icon", "bell"),
		rec("name", "Bar", "icon", "unicorn"),
		rec("name", "Pool", "icon", "pool"),
	}})
	dest := &recordingDest{}
	e := &Engine{Dest: dest}

	res, err := e.Run(context.Background(), &Job{
		SourceType: "test_rooms",
		Transforms: []TransformConfig{{Type: "sort", Config: map[string]any{"field": "name"}}},
		FloorID:    3,
		Mode:       LoadReplace,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsRead != 3 || len(res.Placed) != 2 || len(res.Skipped) != 1 {
		t.Errorf("result = %+v", res)
	}
	if dest.floorID != 3 || !dest.replace || dest.drafts[0].Name != "Desk" || dest.drafts[1].Name != "Pool" {
		t.Errorf("dest = %+v", dest)
	}
}

func TestEngineRun_Declined(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_one", records: []Record{rec("name", "Desk")}})
	res, err := (&Engine{Dest: &recordingDest{decline: true}}).Run(context.Background(), &Job{SourceType: "test_one", FloorID: 1})
	if err != nil || !res.Declined {
		t.Errorf("res = %+v, err = %v", res, err)
	}
}

func TestEngineRun_Errors(t *testing.T) {
	e := &Engine{Dest: &recordingDest{}}
	ctx := context.Background()

	if _, err := e.Run(ctx, &Job{SourceType: "nope"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown source: %v", err)
	}

	RegisterSource(&staticSource{typ: "test_broken", err: errors.New("disk on fire")})
	if _, err := e.Run(ctx, &Job{SourceType: "test_broken"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("read failure: %v", err)
	}

	RegisterSource(&staticSource{typ: "test_nameless", records: []Record{rec("room", "A")}})
	res, err := e.Run(ctx, &Job{SourceType: "test_nameless"})
	if !errors.Is(err, domain.ErrValidation) || len(res.Skipped) != 1 {
		t.Errorf("no usable rows: res = %+v, err = %v", res, err)
	}
}

func TestEnginePreview(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_many", records: []Record{rec("name", "A"), rec("name", "B"), rec("name", "C")}})
	records, schema, err := (&Engine{}).Preview(context.Background(), "test_many", nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || !schema.Has("name") {
		t.Errorf("records = %d, schema = %+v", len(records), schema)
	}
}
