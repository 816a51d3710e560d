package storage

import (
	"fmt"

	"github.com/google/uuid"

	"hotelmap/internal/etl"
)

// LoadLogStore keeps the history of bulk marker loads.
type LoadLogStore struct {
	db *DB
}

func NewLoadLogStore(db *DB) *LoadLogStore {
	return &LoadLogStore{db: db}
}

func (s *LoadLogStore) CreateRunLog(l *etl.RunLog) error {
	l.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO marker_loads (id, floor_id, source_type, mode, started_at, finished_at, status, rows_read, placed, skipped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FloorID, l.SourceType, l.Mode, l.StartedAt, l.FinishedAt, l.Status, l.RowsRead, l.Placed, l.Skipped, l.Error,
	)
	if err != nil {
		return fmt.Errorf("insert load log: %w", err)
	}
	return nil
}

// ListRunLogs returns the newest loads first.
func (s *LoadLogStore) ListRunLogs(limit int) ([]etl.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, floor_id, source_type, mode, started_at, finished_at, status, rows_read, placed, skipped, error
		 FROM marker_loads ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list load logs: %w", err)
	}
	defer rows.Close()

	logs := []etl.RunLog{}
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(&l.ID, &l.FloorID, &l.SourceType, &l.Mode, &l.StartedAt, &l.FinishedAt,
			&l.Status, &l.RowsRead, &l.Placed, &l.Skipped, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
