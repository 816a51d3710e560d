package dbclient

import (
	_ "github.com/go-sql-driver/mysql"
)

// LONGTEXT because floor images are stored inline as data URLs.
var mysqlDialect = dialect{
	driverName: "mysql",
	createTable: `CREATE TABLE IF NOT EXISTS hotelmap_slots (
		slot_key VARCHAR(191) PRIMARY KEY,
		value LONGTEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		origin VARCHAR(64) NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL DEFAULT 0
	) DEFAULT CHARSET=utf8mb4`,
	upsert: `INSERT INTO hotelmap_slots (slot_key, value, version, origin, updated_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), version = VALUES(version),
		origin = VALUES(origin), updated_at = VALUES(updated_at)`,
	lockRow: " FOR UPDATE",
}
