package service

import (
	"database/sql"
	"fmt"
	"strconv"

	"hotelmap/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Window Settings Persistence
// ─────────────────────────────────────────────────────────────
//
// Saves and restores the main window size and the last selected floor
// between sessions. Stored as key-value rows in app_settings.

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSettingsService persists per-machine UI settings.
type WindowSettingsService struct {
	db *storage.DB
}

// NewWindowSettingsService creates a WindowSettingsService.
func NewWindowSettingsService(db *storage.DB) *WindowSettingsService {
	return &WindowSettingsService{db: db}
}

const (
	settingWindowWidth  = "window_width"
	settingWindowHeight = "window_height"
	settingLastFloor    = "last_floor"
	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
	minWindowWidth      = 800
	minWindowHeight     = 600
)

// LoadWindowSize returns the saved window dimensions, or defaults.
func (s *WindowSettingsService) LoadWindowSize() WindowSize {
	size := WindowSize{Width: defaultWindowWidth, Height: defaultWindowHeight}
	if s.db == nil {
		return size
	}
	if w, ok := s.intSetting(settingWindowWidth); ok && w >= minWindowWidth {
		size.Width = w
	}
	if h, ok := s.intSetting(settingWindowHeight); ok && h >= minWindowHeight {
		size.Height = h
	}
	return size
}

// SaveWindowSize persists the current window dimensions.
func (s *WindowSettingsService) SaveWindowSize(width, height int) error {
	if s.db == nil {
		return fmt.Errorf("window settings: no db")
	}
	conn := s.db.Conn()
	if err := upsertSetting(conn, settingWindowWidth, strconv.Itoa(width)); err != nil {
		return err
	}
	return upsertSetting(conn, settingWindowHeight, strconv.Itoa(height))
}

// LastFloor returns the floor selected when the app was last closed.
func (s *WindowSettingsService) LastFloor() (int, bool) {
	if s.db == nil {
		return 0, false
	}
	id, ok := s.intSetting(settingLastFloor)
	return id, ok && id > 0
}

// SaveLastFloor remembers the selected floor.
func (s *WindowSettingsService) SaveLastFloor(floorID int) error {
	if s.db == nil {
		return fmt.Errorf("window settings: no db")
	}
	return upsertSetting(s.db.Conn(), settingLastFloor, strconv.Itoa(floorID))
}

func (s *WindowSettingsService) intSetting(key string) (int, bool) {
	var raw string
	if err := s.db.Conn().QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&raw); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func upsertSetting(conn *sql.DB, key, value string) error {
	_, err := conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
