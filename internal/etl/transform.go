package etl

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify rows between the source and the floor. Each takes a
// record and returns the (possibly modified) record and whether to keep it.

// Transformer processes a single record.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `json:"type"` // see transformBuilders
	Config map[string]any `json:"config"`
}

// ── Row filters ────────────────────────────────────────────

// FilterTransform keeps rows whose field matches. Text comparisons ignore
// case and surrounding spaces, since room lists come from spreadsheets.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "contains" | "in" | "gt" | "lt"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	got := normText(v)
	switch t.Op {
	case "eq":
		return r, got == normText(t.Value)
	case "neq":
		return r, got != normText(t.Value)
	case "contains":
		return r, strings.Contains(got, normText(t.Value))
	case "in":
		for _, want := range listValues(t.Value) {
			if got == normText(want) {
				return r, true
			}
		}
		return r, false
	case "gt":
		return r, toFloat(v) > toFloat(t.Value)
	case "lt":
		return r, toFloat(v) < toFloat(t.Value)
	}
	return r, true
}

// DedupeTransform drops rows whose key value was already seen.
type DedupeTransform struct {
	Key  string
	seen map[string]bool
}

func NewDedupeTransform(key string) *DedupeTransform {
	return &DedupeTransform{Key: key, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	v := normText(r.Data[t.Key])
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// LimitTransform keeps the first Count rows that reach it.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool) {
	t.seen++
	return r, t.seen <= t.Count
}

// ── Field rewrites ─────────────────────────────────────────

// RenameTransform moves columns to new names, e.g. "room" to "name".
type RenameTransform struct {
	Mapping map[string]string // from → to
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	for from, to := range t.Mapping {
		if v, ok := r.Data[from]; ok {
			r.Data[to] = v
			delete(r.Data, from)
		}
	}
	return r, true
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// TemplateTransform writes a field built from other fields, e.g.
// "Room {number}". Unknown references render empty.
type TemplateTransform struct {
	Field    string
	Template string
}

func (t *TemplateTransform) Transform(r Record) (Record, bool) {
	r.Data[t.Field] = placeholder.ReplaceAllStringFunc(t.Template, func(m string) string {
		v, ok := r.Data[m[1:len(m)-1]]
		if !ok || v == nil {
			return ""
		}
		if f, isNum := v.(float64); isNum {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	})
	return r, true
}

// MapValuesTransform translates the values of one field, typically a room
// type column into icon names ("Suite" → "bed"). Values without an entry
// get Default when it is set and are left alone otherwise.
type MapValuesTransform struct {
	Field   string
	Values  map[string]string // keys are matched like FilterTransform
	Default string
}

func (t *MapValuesTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, true
	}
	for from, to := range t.Values {
		if normText(v) == normText(from) {
			r.Data[t.Field] = to
			return r, true
		}
	}
	if t.Default != "" {
		r.Data[t.Field] = t.Default
	}
	return r, true
}

// ScaleTransform turns pixel coordinates into percentages of a plan that
// is Extent pixels wide (or high). Non-numeric values are left for the
// draft check to report.
type ScaleTransform struct {
	Field  string
	Extent float64
}

func (t *ScaleTransform) Transform(r Record) (Record, bool) {
	if f, ok := toFloatSafe(r.Data[t.Field]); ok && t.Extent > 0 {
		r.Data[t.Field] = f / t.Extent * 100
	}
	return r, true
}

// SortTransform orders all collected records by a field. It is a batch
// transform: the loader applies it after the streaming phase.
type SortTransform struct {
	Field     string
	Direction string // "asc" | "desc"
}

func (t *SortTransform) Transform(r Record) (Record, bool) {
	return r, true
}

// ── Building chains ────────────────────────────────────────

type transformBuilder func(cfg map[string]any) (Transformer, bool)

var transformBuilders = map[string]transformBuilder{
	"filter": func(cfg map[string]any) (Transformer, bool) {
		field, op := str(cfg, "field"), str(cfg, "op")
		return &FilterTransform{Field: field, Op: op, Value: cfg["value"]}, field != "" && op != ""
	},
	"rename": func(cfg map[string]any) (Transformer, bool) {
		m := stringMap(cfg["mapping"])
		return &RenameTransform{Mapping: m}, len(m) > 0
	},
	"template": func(cfg map[string]any) (Transformer, bool) {
		field, tmpl := str(cfg, "field"), str(cfg, "template")
		return &TemplateTransform{Field: field, Template: tmpl}, field != "" && tmpl != ""
	},
	"map_values": func(cfg map[string]any) (Transformer, bool) {
		t := &MapValuesTransform{Field: str(cfg, "field"), Values: stringMap(cfg["values"]), Default: str(cfg, "default")}
		return t, t.Field != "" && (len(t.Values) > 0 || t.Default != "")
	},
	"scale": func(cfg map[string]any) (Transformer, bool) {
		extent, _ := toFloatSafe(cfg["extent"])
		field := str(cfg, "field")
		return &ScaleTransform{Field: field, Extent: extent}, field != "" && extent > 0
	},
	"sort": func(cfg map[string]any) (Transformer, bool) {
		dir := str(cfg, "direction")
		if dir == "" {
			dir = "asc"
		}
		return &SortTransform{Field: str(cfg, "field"), Direction: dir}, str(cfg, "field") != ""
	},
	"limit": func(cfg map[string]any) (Transformer, bool) {
		count, _ := toFloatSafe(cfg["count"])
		return NewLimitTransform(int(count)), count >= 1
	},
}

// TransformTypes lists the transform types BuildTransformers understands.
func TransformTypes() []string {
	types := make([]string, 0, len(transformBuilders))
	for typ := range transformBuilders {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// BuildTransformers converts declarative configs into Transformers, in
// order. Unknown or incomplete configs are skipped. Dedupe runs last when
// dedupeKey is set.
func BuildTransformers(configs []TransformConfig, dedupeKey string) []Transformer {
	var ts []Transformer
	for _, tc := range configs {
		build, ok := transformBuilders[tc.Type]
		if !ok {
			continue
		}
		if t, ok := build(tc.Config); ok {
			ts = append(ts, t)
		}
	}
	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(dedupeKey))
	}
	return ts
}

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		if r, keep = t.Transform(r); !keep {
			return r, false
		}
	}
	return r, true
}

// ApplyBatchSort returns records ordered by the first SortTransform in
// the chain. The input slice is not reordered.
func ApplyBatchSort(records []Record, ts []Transformer) []Record {
	for _, t := range ts {
		st, ok := t.(*SortTransform)
		if !ok || st.Field == "" {
			continue
		}
		sorted := append([]Record(nil), records...)
		dir := 1
		if st.Direction == "desc" {
			dir = -1
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareValues(sorted[i].Data[st.Field], sorted[j].Data[st.Field])*dir < 0
		})
		return sorted
	}
	return records
}

// compareValues orders numbers numerically and everything else as text.
func compareValues(a, b any) int {
	fa, aOk := toFloatSafe(a)
	fb, bOk := toFloatSafe(b)
	if !aOk || !bOk {
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// ── Value helpers ──────────────────────────────────────────

func normText(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

func str(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func stringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	m := make(map[string]string, len(raw))
	for k, val := range raw {
		m[k] = fmt.Sprint(val)
	}
	return m
}

// listValues accepts a JSON array or a comma-separated string.
func listValues(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	case string:
		var out []any
		for _, s := range strings.Split(l, ",") {
			out = append(out, s)
		}
		return out
	}
	return []any{v}
}

func toFloatSafe(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toFloat(v any) float64 {
	f, _ := toFloatSafe(v)
	return f
}
