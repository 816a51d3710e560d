package etl

import (
	"context"
	"fmt"
	"log"
	"time"

	"hotelmap/internal/domain"
)

// ── Load ───────────────────────────────────────────────────
// source.Read → transform chain → column mapping → floor.

// Job describes one marker list load.
type Job struct {
	SourceType string            `json:"sourceType"`
	SourceCfg  SourceConfig      `json:"sourceConfig"`
	Transforms []TransformConfig `json:"transforms,omitempty"`
	DedupeKey  string            `json:"dedupeKey,omitempty"`
	Mapping    ColumnMapping     `json:"mapping"`
	FloorID    int               `json:"floorId"`
	Mode       LoadMode          `json:"mode"`
}

// Result is the outcome of a load.
type Result struct {
	RowsRead int             `json:"rowsRead"`
	Placed   []domain.Marker `json:"placed"`
	Skipped  []RowError      `json:"skipped"`
	// Declined is set when the user refused to replace existing markers.
	Declined bool          `json:"declined"`
	Duration time.Duration `json:"duration"`
}

// Engine runs loads using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// Run executes a load end-to-end. Skipped rows are reported, not fatal;
// a list with no usable rows is.
func (e *Engine) Run(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()
	result := &Result{Placed: []domain.Marker{}, Skipped: []RowError{}}

	records, err := e.collect(ctx, job, result)
	if err != nil {
		return result, err
	}

	drafts, skipped := ToDrafts(records, job.Mapping)
	result.Skipped = append(result.Skipped, skipped...)
	if len(drafts) == 0 {
		result.Duration = time.Since(start)
		return result, domain.Invalid("markers", fmt.Sprintf("no usable rows in %d read", result.RowsRead))
	}

	placed, err := e.Dest.PlaceMarkers(ctx, job.FloorID, drafts, job.Mode == LoadReplace)
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("place markers: %w", err)
	}
	if placed == nil {
		result.Declined = true
		return result, nil
	}
	result.Placed = placed
	log.Printf("[ETL] Loaded %d marker(s) onto floor %d from %s (%d skipped) in %s",
		len(placed), job.FloorID, job.SourceType, len(result.Skipped), result.Duration)
	return result, nil
}

// collect reads and transforms every record of the job's source.
func (e *Engine) collect(ctx context.Context, job *Job, result *Result) ([]Record, error) {
	source, err := GetSource(job.SourceType)
	if err != nil {
		return nil, domain.Invalid("sourceType", err.Error())
	}

	recCh, errCh := source.Read(ctx, job.SourceCfg)
	transformers := BuildTransformers(job.Transforms, job.DedupeKey)

	var records []Record
	for rec := range recCh {
		result.RowsRead++
		if transformed, keep := ApplyTransformers(rec, transformers); keep {
			records = append(records, transformed)
		}
	}
	if err := <-errCh; err != nil {
		return nil, domain.Invalid("source", fmt.Sprintf("read: %s", err))
	}
	return ApplyBatchSort(records, transformers), nil
}

// Preview reads up to maxRows raw records and the source schema without
// touching the map.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, maxRows int) ([]Record, *Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(ctx, cfg)

	var records []Record
	truncated := false
	for rec := range recCh {
		records = append(records, rec)
		if len(records) >= maxRows {
			truncated = true
			break
		}
	}

	if truncated {
		// Stop the reader and drain what it already queued.
		cancel()
		go func() {
			for range recCh {
			}
		}()
		<-errCh
		return records, schema, nil
	}
	if err := <-errCh; err != nil {
		return records, schema, err
	}
	return records, schema, nil
}

// RunLog records one load for the history panel.
type RunLog struct {
	ID         string    `json:"id"`
	FloorID    int       `json:"floorId"`
	SourceType string    `json:"sourceType"`
	Mode       LoadMode  `json:"mode"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"` // "success" | "declined" | "failed"
	RowsRead   int       `json:"rowsRead"`
	Placed     int       `json:"placed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}
