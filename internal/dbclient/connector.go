package dbclient

import (
	"context"
	"fmt"
	"log"
	"strings"

	"hotelmap/internal/domain"
)

// Supported slot drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongoDB  = "mongodb"
)

// Supported reports whether driver names an external slot driver.
func Supported(driver string) bool {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL, DriverMongoDB:
		return true
	}
	return false
}

// Slot is a DocumentSlot backed by an external database.
type Slot interface {
	domain.DocumentSlot

	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error
}

// NewSlot opens a document slot on an external database. The password,
// usually read from the keychain, replaces a <password> placeholder in dsn.
func NewSlot(driver, dsn, password string) (Slot, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s slot: dsn is required", driver)
	}
	log.Printf("[SLOT] Opening %s slot: %s", driver, dsn)
	dsn = expandPassword(dsn, password)

	switch driver {
	case DriverSQLite:
		return newSQLSlot(sqliteDialect, dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	case DriverPostgres:
		return newSQLSlot(postgresDialect, dsn)
	case DriverMySQL:
		return newSQLSlot(mysqlDialect, dsn)
	case DriverMongoDB:
		return newMongoSlot(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// expandPassword fills the placeholders commonly found in copied
// connection strings.
func expandPassword(dsn, password string) string {
	if password == "" {
		return dsn
	}
	dsn = strings.ReplaceAll(dsn, "<password>", password)
	return strings.ReplaceAll(dsn, "<db_password>", password)
}

