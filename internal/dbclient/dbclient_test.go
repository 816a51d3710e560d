package dbclient

import (
	"context"
	"path/filepath"
	"testing"

	"hotelmap/internal/domain"
)

func TestExpandPassword(t *testing.T) {
	tests := []struct {
		dsn, password, want string
	}{
		{"postgres://app:<password>@db/hotel", "s3cret", "postgres://app:s3cret@db/hotel"},
		{"mongodb+srv://app:<db_password>@cluster/x", "pw", "mongodb+srv://app:pw@cluster/x"},
		{"app:<password>@tcp(db:3306)/hotel", "", "app:<password>@tcp(db:3306)/hotel"},
	}
	for _, tt := range tests {
		if got := expandPassword(tt.dsn, tt.password); got != tt.want {
			t.Errorf("expandPassword(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		uri, want string
	}{
		{"mongodb://localhost:27017/hotels", "hotels"},
		{"mongodb+srv://u:p@cluster0.example.net/maps?retryWrites=true", "maps"},
		{"mongodb://localhost:27017", "hotelmap"},
		{"mongodb://localhost:27017/?replicaSet=rs0", "hotelmap"},
	}
	for _, tt := range tests {
		if got := databaseFromURI(tt.uri); got != tt.want {
			t.Errorf("databaseFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestBindDollarArgs(t *testing.T) {
	s := &sqlSlot{d: postgresDialect}
	got := s.bind(`SELECT version FROM hotelmap_slots WHERE slot_key = ? AND origin = ?`)
	want := `SELECT version FROM hotelmap_slots WHERE slot_key = $1 AND origin = $2`
	if got != want {
		t.Errorf("bind = %q", got)
	}
	m := &sqlSlot{d: mysqlDialect}
	if q := m.bind("a = ?"); q != "a = ?" {
		t.Errorf("mysql bind rewrote placeholders: %q", q)
	}
}

func TestNewSlot_Errors(t *testing.T) {
	if _, err := NewSlot(DriverPostgres, "  ", ""); err == nil {
		t.Error("expected error for empty dsn")
	}
	if _, err := NewSlot("oracle", "x", ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := NewSlot(DriverMongoDB, "localhost:27017", ""); err == nil {
		t.Error("expected error for non-uri mongo dsn")
	}
}

func TestSupported(t *testing.T) {
	for _, d := range []string{DriverSQLite, DriverPostgres, DriverMySQL, DriverMongoDB} {
		if !Supported(d) {
			t.Errorf("%s should be supported", d)
		}
	}
	if Supported("oracle") || Supported("") {
		t.Error("unexpected driver accepted")
	}
}

// The shared-file SQLite slot runs without external services.
func TestSQLiteSlot_Versions(t *testing.T) {
	ctx := context.Background()
	slot, err := NewSlot(DriverSQLite, filepath.Join(t.TempDir(), "shared.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	defer slot.Close()

	if err := slot.TestConnection(ctx); err != nil {
		t.Fatal(err)
	}
	if rec, err := slot.Read(ctx, "k"); err != nil || rec != nil {
		t.Fatalf("empty read = %+v, %v", rec, err)
	}
	for want := int64(1); want <= 2; want++ {
		v, err := slot.Write(ctx, domain.SlotRecord{Key: "k", Value: "{}", Origin: "o"})
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("version = %d, want %d", v, want)
		}
	}
	rec, err := slot.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 2 || rec.Origin != "o" {
		t.Errorf("unexpected record %+v", rec)
	}
}
