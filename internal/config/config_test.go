package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"HOTELMAP_DATA_DIR", "HOTELMAP_SLOT_DRIVER", "HOTELMAP_SLOT_DSN", "HOTELMAP_SLOT_KEY",
		"HOTELMAP_UPLOAD_LIMIT_MB", "HOTELMAP_IMPORT_LIMIT_MB", "HOTELMAP_POLL_SECONDS",
		"HOTELMAP_BACKUP_SCHEDULE", "HOTELMAP_BACKUP_KEEP", "HOTELMAP_REVISION_LIMIT",
		"PORT", "HOTELMAP_MCP_AUTO_APPROVE",
	} {
		t.Setenv(k, "")
	}

	c := FromEnv()
	if c.SlotDriver != "sqlite" || c.SlotKey != DefaultSlotKey || !c.UsesLocalSlot() {
		t.Errorf("unexpected slot config %+v", c)
	}
	if c.UploadLimit != 5<<20 || c.ImportLimit != 10<<20 {
		t.Errorf("limits = %d, %d", c.UploadLimit, c.ImportLimit)
	}
	if c.PollInterval != 2*time.Second || c.BackupKeep != 14 || c.RevisionLimit != 40 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.Port != "3000" || c.MCPAutoApprove || c.MCPAddr != "" {
		t.Errorf("unexpected server defaults %+v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOTELMAP_DATA_DIR", dir)
	t.Setenv("HOTELMAP_SLOT_DRIVER", "Postgres")
	t.Setenv("HOTELMAP_SLOT_DSN", "postgres://app:<password>@db/hotel")
	t.Setenv("HOTELMAP_UPLOAD_LIMIT_MB", "2")
	t.Setenv("HOTELMAP_POLL_SECONDS", "not-a-number")
	t.Setenv("HOTELMAP_MCP_AUTO_APPROVE", "true")
	t.Setenv("HOTELMAP_MCP_ADDR", "127.0.0.1:7331")

	c := FromEnv()
	if c.SlotDriver != "postgres" || c.UsesLocalSlot() {
		t.Errorf("driver = %q", c.SlotDriver)
	}
	if c.UploadLimit != 2<<20 {
		t.Errorf("upload limit = %d", c.UploadLimit)
	}
	if c.PollInterval != 2*time.Second {
		t.Errorf("invalid poll value should fall back to default, got %v", c.PollInterval)
	}
	if !c.MCPAutoApprove || c.MCPAddr != "127.0.0.1:7331" {
		t.Errorf("mcp = %v %q", c.MCPAutoApprove, c.MCPAddr)
	}
	if c.DBPath() != filepath.Join(dir, "hotelmap.db") || c.BackupDir() != filepath.Join(dir, "backups") {
		t.Errorf("paths = %s, %s", c.DBPath(), c.BackupDir())
	}
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "HOTELMAP_SLOT_KEY=fromFile\nHOTELMAP_BACKUP_KEEP=3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOTELMAP_SLOT_KEY", "fromEnv")
	t.Setenv("HOTELMAP_BACKUP_KEEP", "")
	os.Unsetenv("HOTELMAP_BACKUP_KEEP")

	LoadEnvFile(path)
	c := FromEnv()
	if c.SlotKey != "fromEnv" {
		t.Errorf("existing env was overridden: %q", c.SlotKey)
	}
	if c.BackupKeep != 3 {
		t.Errorf("BackupKeep = %d, want 3 from file", c.BackupKeep)
	}

	// Missing files are ignored.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}
