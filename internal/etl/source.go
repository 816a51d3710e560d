package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source reads a list of rooms or points of interest from somewhere
// outside the app. Implementations live in etl/sources/, one per format.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField is one input of a source's configuration form.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "textarea" | "file"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type, its form and the file extensions
// it reads (lower case, with the dot).
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Extensions   []string      `json:"extensions,omitempty"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is implemented by every room list format.
type Source interface {
	Spec() SourceSpec

	// Discover returns the columns the source will produce.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read streams records into a channel that is closed when done or
	// when ctx is cancelled. A failure is sent on the error channel.
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

// ── Registry ───────────────────────────────────────────────

// DefaultFileSource reads files whose extension no source claims.
const DefaultFileSource = "csv"

type sourceRegistry struct {
	mu     sync.RWMutex
	byType map[string]Source
	byExt  map[string]string
}

var sources = &sourceRegistry{byType: map[string]Source{}, byExt: map[string]string{}}

func (r *sourceRegistry) add(s Source) {
	spec := s.Spec()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[spec.Type] = s
	for _, ext := range spec.Extensions {
		r.byExt[strings.ToLower(ext)] = spec.Type
	}
}

// RegisterSource makes a source available by its spec type. Sources call
// it from init().
func RegisterSource(s Source) {
	sources.add(s)
}

// GetSource returns a registered source by type.
func GetSource(typ string) (Source, error) {
	sources.mu.RLock()
	defer sources.mu.RUnlock()
	s, ok := sources.byType[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// SourceForFile picks the source type for a room list file by extension.
func SourceForFile(path string) string {
	sources.mu.RLock()
	defer sources.mu.RUnlock()
	if typ, ok := sources.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return typ
	}
	return DefaultFileSource
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	sources.mu.RLock()
	defer sources.mu.RUnlock()
	specs := make([]SourceSpec, 0, len(sources.byType))
	for _, s := range sources.byType {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}
