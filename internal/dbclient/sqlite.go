package dbclient

import (
	_ "modernc.org/sqlite"
)

// sqliteDialect serves a shared SQLite file outside the data directory,
// e.g. on a network mount used by several workstations.
var sqliteDialect = dialect{
	driverName: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS hotelmap_slots (
		slot_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		origin TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	upsert: `INSERT INTO hotelmap_slots (slot_key, value, version, origin, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slot_key) DO UPDATE SET value = excluded.value, version = excluded.version,
		origin = excluded.origin, updated_at = excluded.updated_at`,
}
