package dbclient

import (
	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	driverName: "postgres",
	createTable: `CREATE TABLE IF NOT EXISTS hotelmap_slots (
		slot_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		origin TEXT NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	upsert: `INSERT INTO hotelmap_slots (slot_key, value, version, origin, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (slot_key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version,
		origin = EXCLUDED.origin, updated_at = EXCLUDED.updated_at`,
	lockRow:    " FOR UPDATE",
	dollarArgs: true,
}
