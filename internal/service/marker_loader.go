package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"hotelmap/internal/domain"
	"hotelmap/internal/etl"
	_ "hotelmap/internal/etl/sources"
)

// ─────────────────────────────────────────────────────────────
// MarkerLoader — bulk marker loads from room lists
// ─────────────────────────────────────────────────────────────

// MarkerLoader reads room lists (CSV, JSON, HTTP) and places them on a
// floor through the map session. One load per floor runs at a time.
type MarkerLoader struct {
	maps    *MapService
	emitter EventEmitter
	history LoadHistory
	running jobGuard
	timeout time.Duration
}

// LoadHistory records finished loads. storage.LoadLogStore implements it.
type LoadHistory interface {
	CreateRunLog(l *etl.RunLog) error
	ListRunLogs(limit int) ([]etl.RunLog, error)
}

// NewMarkerLoader creates a loader that writes through maps.
func NewMarkerLoader(maps *MapService, emitter EventEmitter) *MarkerLoader {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &MarkerLoader{maps: maps, emitter: emitter, timeout: 2 * time.Minute}
}

// SetHistory enables the load history.
func (l *MarkerLoader) SetHistory(h LoadHistory) {
	l.history = h
}

// LoadInput is a load request as the frontend, MCP and HTTP callers send it.
type LoadInput struct {
	SourceType   string                `json:"sourceType"`
	SourceConfig map[string]any        `json:"sourceConfig"`
	Transforms   []etl.TransformConfig `json:"transforms"`
	DedupeKey    string                `json:"dedupeKey"`
	Mapping      etl.ColumnMapping     `json:"mapping"`
	FloorID      int                   `json:"floorId"`
	Mode         string                `json:"mode"`
}

// ── Run ────────────────────────────────────────────────────

// Load runs a load synchronously. When the user declines replacing the
// floor's markers the result has Declined set and no error.
func (l *MarkerLoader) Load(ctx context.Context, in LoadInput) (*etl.Result, error) {
	mode, err := etl.ParseLoadMode(in.Mode)
	if err != nil {
		return nil, domain.Invalid("mode", err.Error())
	}
	if _, err := etl.GetSource(in.SourceType); err != nil {
		return nil, domain.Invalid("sourceType", err.Error())
	}
	if _, err := l.maps.Floor(in.FloorID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("floor:%d", in.FloorID)
	if !l.running.begin(key) {
		return nil, fmt.Errorf("a marker load is already running for floor %d", in.FloorID)
	}
	defer l.running.end(key)

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	engine := &etl.Engine{Dest: l.maps}
	result, err := engine.Run(runCtx, &etl.Job{
		SourceType: in.SourceType,
		SourceCfg:  in.SourceConfig,
		Transforms: in.Transforms,
		DedupeKey:  in.DedupeKey,
		Mapping:    in.Mapping,
		FloorID:    in.FloorID,
		Mode:       mode,
	})
	l.record(in, mode, start, result, err)
	if err != nil {
		log.Printf("[LOADER] %s load onto floor %d failed: %v", in.SourceType, in.FloorID, err)
		return result, err
	}
	if !result.Declined {
		l.emitter.Emit(ctx, EventMarkersLoaded, result)
	}
	return result, nil
}

func (l *MarkerLoader) record(in LoadInput, mode etl.LoadMode, start time.Time, result *etl.Result, runErr error) {
	if l.history == nil {
		return
	}
	entry := &etl.RunLog{
		FloorID:    in.FloorID,
		SourceType: in.SourceType,
		Mode:       mode,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Status:     "success",
	}
	if result != nil {
		entry.RowsRead = result.RowsRead
		entry.Placed = len(result.Placed)
		entry.Skipped = len(result.Skipped)
		if result.Declined {
			entry.Status = "declined"
		}
	}
	if runErr != nil {
		entry.Status = "failed"
		entry.Error = runErr.Error()
	}
	if err := l.history.CreateRunLog(entry); err != nil {
		log.Printf("[LOADER] Failed to record load: %v", err)
	}
}

// ListRuns returns the last 50 loads, newest first.
func (l *MarkerLoader) ListRuns() ([]etl.RunLog, error) {
	if l.history == nil {
		return []etl.RunLog{}, nil
	}
	return l.history.ListRunLogs(50)
}

// ListSources returns the available source descriptors.
func (l *MarkerLoader) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ── Preview / Schema Discovery ─────────────────────────────

// PreviewResult is the response from Preview.
type PreviewResult struct {
	Schema  *etl.Schema  `json:"schema"`
	Records []etl.Record `json:"records"`
}

// Preview reads the first rows of a source so the user can pick columns.
func (l *MarkerLoader) Preview(ctx context.Context, sourceType string, cfg etl.SourceConfig) (*PreviewResult, error) {
	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	records, schema, err := (&etl.Engine{Dest: l.maps}).Preview(previewCtx, sourceType, cfg, 10)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Records: records}, nil
}

// DiscoverSchema lists the columns a source provides.
func (l *MarkerLoader) DiscoverSchema(ctx context.Context, sourceType string, cfg etl.SourceConfig) (*etl.Schema, error) {
	source, err := etl.GetSource(sourceType)
	if err != nil {
		return nil, err
	}
	discCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return source.Discover(discCtx, cfg)
}

// WaitRunning blocks until running loads finish or ctx is cancelled.
func (l *MarkerLoader) WaitRunning(ctx context.Context) {
	l.running.wait(ctx)
}
