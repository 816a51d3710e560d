package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ============================================================
// Configuration
// ============================================================

const (
	DefaultSlotKey = "hotelHopperData"
	mib            = 1 << 20
)

type Config struct {
	DataDir        string
	SlotDriver     string // sqlite | postgres | mysql | mongodb
	SlotDSN        string // empty for sqlite means <DataDir>/hotelmap.db
	SlotKey        string
	UploadLimit    int64 // bytes
	ImportLimit    int64 // bytes
	PollInterval   time.Duration
	BackupSchedule string // cron expression, empty disables backups
	BackupKeep     int
	RevisionLimit  int
	Port           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	MCPAutoApprove bool
	MCPAddr        string // desktop app hosts MCP over HTTP here when set
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	LoadEnvFile(".env")
	return FromEnv()
}

// LoadEnvFile loads path into the environment without overriding
// variables that are already set. A missing file is fine.
func LoadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[CONFIG] Ignoring %s: %v", path, err)
		}
		return
	}
	log.Printf("[CONFIG] Loaded %s", path)
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		DataDir:        getEnv("HOTELMAP_DATA_DIR", defaultDataDir()),
		SlotDriver:     strings.ToLower(getEnv("HOTELMAP_SLOT_DRIVER", "sqlite")),
		SlotDSN:        getEnv("HOTELMAP_SLOT_DSN", ""),
		SlotKey:        getEnv("HOTELMAP_SLOT_KEY", DefaultSlotKey),
		UploadLimit:    int64(getEnvAsInt("HOTELMAP_UPLOAD_LIMIT_MB", 5)) * mib,
		ImportLimit:    int64(getEnvAsInt("HOTELMAP_IMPORT_LIMIT_MB", 10)) * mib,
		PollInterval:   time.Duration(getEnvAsInt("HOTELMAP_POLL_SECONDS", 2)) * time.Second,
		BackupSchedule: getEnv("HOTELMAP_BACKUP_SCHEDULE", ""),
		BackupKeep:     getEnvAsInt("HOTELMAP_BACKUP_KEEP", 14),
		RevisionLimit:  getEnvAsInt("HOTELMAP_REVISION_LIMIT", 40),
		Port:           getEnv("PORT", "3000"),
		ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 30),
		MCPAutoApprove: getEnvAsBool("HOTELMAP_MCP_AUTO_APPROVE", false),
		MCPAddr:        getEnv("HOTELMAP_MCP_ADDR", ""),
	}
}

// DBPath is the local SQLite file holding the default slot and revisions.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "hotelmap.db")
}

// BackupDir is where scheduled exports are written.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// UsesLocalSlot reports whether the document lives in the local database.
func (c *Config) UsesLocalSlot() bool {
	return c.SlotDriver == "sqlite" && c.SlotDSN == ""
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "hotelmap")
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}
