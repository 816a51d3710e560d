package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hotelmap/internal/domain"
)

// dialect holds the per-driver SQL for the slot table.
type dialect struct {
	driverName  string
	createTable string
	upsert      string
	lockRow     string // appended to the version read inside the write tx
	dollarArgs  bool   // $1, $2 instead of ?
}

// sqlSlot is the shared implementation for MySQL, Postgres, and SQLite.
type sqlSlot struct {
	d  dialect
	db *sql.DB
}

func newSQLSlot(d dialect, dsn string) (*sqlSlot, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driverName, err)
	}
	// Sensible pool settings for a desktop app
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	s := &sqlSlot{d: d, db: db}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create slot table: %w", err)
	}
	return s, nil
}

func (s *sqlSlot) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *sqlSlot) Read(ctx context.Context, key string) (*domain.SlotRecord, error) {
	var (
		rec     = &domain.SlotRecord{}
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT slot_key, value, version, origin, updated_at FROM hotelmap_slots WHERE slot_key = ?`), key,
	).Scan(&rec.Key, &rec.Value, &rec.Version, &rec.Origin, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s slot: %w", s.d.driverName, err)
	}
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

func (s *sqlSlot) Write(ctx context.Context, rec domain.SlotRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s slot write: %w", s.d.driverName, err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		s.bind(`SELECT version FROM hotelmap_slots WHERE slot_key = ?`+s.d.lockRow), rec.Key,
	).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read %s slot version: %w", s.d.driverName, err)
	}
	version++

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, s.bind(s.d.upsert),
		rec.Key, rec.Value, version, rec.Origin, rec.UpdatedAt.UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("write %s slot: %w", s.d.driverName, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s slot: %w", s.d.driverName, err)
	}
	return version, nil
}

func (s *sqlSlot) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders for drivers that number their arguments.
func (s *sqlSlot) bind(query string) string {
	if !s.d.dollarArgs {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
