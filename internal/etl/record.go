package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate format between a marker list and the floor.
// Sources emit Records, the loader maps them onto MarkerDrafts.

// Field describes a single column in a marker list.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean"
}

// Schema describes the columns a source produces.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the schema contains a column.
func (s *Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Record is one row of a marker list.
type Record struct {
	Data map[string]any `json:"data"`
}
