package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelmap/internal/domain"
)

// DefaultRevisionLimit is how many snapshots are kept when no limit is configured.
const DefaultRevisionLimit = 40

// RevisionStore manages revision history in SQLite.
type RevisionStore struct {
	db    *DB
	limit int
}

func NewRevisionStore(db *DB, limit int) *RevisionStore {
	if limit <= 0 {
		limit = DefaultRevisionLimit
	}
	return &RevisionStore{db: db, limit: limit}
}

// PushRevision stores a snapshot and prunes the oldest ones past the limit.
func (s *RevisionStore) PushRevision(r *domain.Revision) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO revisions (id, version, label, snapshot_json, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Version, r.Label, r.SnapshotJSON, len(r.SnapshotJSON), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	s.pruneIfNeeded()
	return nil
}

// ListRevisions returns the history newest first, without snapshot bodies.
func (s *RevisionStore) ListRevisions() ([]domain.Revision, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, version, label, created_at FROM revisions
		 ORDER BY version DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []domain.Revision
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.ID, &r.Version, &r.Label, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// GetRevision returns one revision including its snapshot.
func (s *RevisionStore) GetRevision(id string) (*domain.Revision, error) {
	r := &domain.Revision{}
	err := s.db.conn.QueryRow(
		`SELECT id, version, label, snapshot_json, created_at FROM revisions WHERE id = ?`, id,
	).Scan(&r.ID, &r.Version, &r.Label, &r.SnapshotJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "revision", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return r, nil
}

// pruneIfNeeded removes the oldest revisions when the count exceeds the limit.
func (s *RevisionStore) pruneIfNeeded() {
	var count int
	s.db.conn.QueryRow(`SELECT COUNT(*) FROM revisions`).Scan(&count)
	if count <= s.limit {
		return
	}

	// Collect IDs to delete first, close rows before doing any writes
	rows, err := s.db.conn.Query(
		`SELECT id FROM revisions ORDER BY version ASC, created_at ASC LIMIT ?`, count-s.limit,
	)
	if err != nil {
		return
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		s.db.conn.Exec(`DELETE FROM revisions WHERE id = ?`, id)
	}
}
