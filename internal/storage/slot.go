package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelmap/internal/domain"
)

// SlotStore implements domain.DocumentSlot on the local SQLite file.
type SlotStore struct {
	db *DB
}

func NewSlotStore(db *DB) *SlotStore {
	return &SlotStore{db: db}
}

func (s *SlotStore) Read(ctx context.Context, key string) (*domain.SlotRecord, error) {
	rec := &domain.SlotRecord{}
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT key, value, version, origin, updated_at FROM slots WHERE key = ?`, key,
	).Scan(&rec.Key, &rec.Value, &rec.Version, &rec.Origin, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	return rec, nil
}

// Write replaces the slot value and bumps its version in one transaction.
func (s *SlotStore) Write(ctx context.Context, rec domain.SlotRecord) (int64, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin slot write: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM slots WHERE key = ?`, rec.Key).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read slot version: %w", err)
	}
	version++

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO slots (key, value, version, origin, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version,
		 origin = excluded.origin, updated_at = excluded.updated_at`,
		rec.Key, rec.Value, version, rec.Origin, rec.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("write slot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit slot write: %w", err)
	}
	return version, nil
}

// Close is a no-op: the DB is shared with the revision store and closed by its owner.
func (s *SlotStore) Close() error {
	return nil
}
