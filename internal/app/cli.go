package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"hotelmap/internal/config"
	"hotelmap/internal/dbclient"
	"hotelmap/internal/etl"
	"hotelmap/internal/secret"
	"hotelmap/internal/service"
)

// ============================================================
// Command-line Transfer
// ============================================================

// ExportOptions selects where ExportCLI writes the map.
type ExportOptions struct {
	// Path is a file or directory. Empty writes to w.
	Path      string
	Clipboard bool
}

// ExportCLI writes the stored map without starting a session, so nothing
// is saved as a side effect.
func ExportCLI(cfg *config.Config, opts ExportOptions, w io.Writer) error {
	be, err := openBackend(cfg, service.NoopEmitter{})
	if err != nil {
		return err
	}
	defer be.close()

	doc, version, err := be.persist.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	name, data, err := service.NewTransferService(cfg.ImportLimit).Export(doc, time.Now())
	if err != nil {
		return err
	}

	switch {
	case opts.Clipboard:
		if err := clipboard.WriteAll(string(data)); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		log.Printf("[CLI] Copied v%d export to the clipboard (%d bytes)", version, len(data))
	case opts.Path != "":
		path := opts.Path
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, name)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		log.Printf("[CLI] Exported v%d to %s", version, path)
	default:
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}
	return nil
}

// ImportCLI replaces the stored map with the file at path, or with the
// clipboard contents when path is "-clipboard". Other running sessions
// pick the change up through the slot watcher.
func ImportCLI(cfg *config.Config, path string) (service.ImportReport, error) {
	var (
		data []byte
		err  error
	)
	if path == "-clipboard" {
		var text string
		text, err = clipboard.ReadAll()
		data = []byte(text)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return service.ImportReport{}, fmt.Errorf("read import: %w", err)
	}

	be, err := openBackend(cfg, service.NoopEmitter{})
	if err != nil {
		return service.ImportReport{}, err
	}
	defer be.close()

	ctx := context.Background()
	if err := be.maps.Start(ctx); err != nil {
		log.Printf("[CLI] Stored map unreadable, replacing it: %v", err)
	}
	return be.maps.Import(ctx, data)
}

// LoadOptions describes a room list load from the command line.
type LoadOptions struct {
	FloorID int
	Mode    string
	Mapping etl.ColumnMapping
	// Source is a file path, an http(s) URL, or "-clipboard".
	Source   string
	DataPath string
}

// LoadCLI places a room list on a floor. Files are read by extension,
// clipboard text as CSV and URLs through the http source.
func LoadCLI(cfg *config.Config, opts LoadOptions) (*etl.Result, error) {
	in := service.LoadInput{FloorID: opts.FloorID, Mode: opts.Mode, Mapping: opts.Mapping}
	src := opts.Source
	switch {
	case src == "-clipboard":
		text, err := clipboard.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read clipboard: %w", err)
		}
		in.SourceType = "csv"
		in.SourceConfig = map[string]any{"data": text}
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		in.SourceType = "http"
		in.SourceConfig = map[string]any{"url": src, "dataPath": opts.DataPath}
	default:
		in.SourceType = etl.SourceForFile(src)
		in.SourceConfig = map[string]any{"filePath": src, "dataPath": opts.DataPath}
	}

	be, err := openBackend(cfg, service.NoopEmitter{})
	if err != nil {
		return nil, err
	}
	defer be.close()

	ctx := context.Background()
	if err := be.maps.Start(ctx); err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	return be.loader.Load(ctx, in)
}

// SlotPasswordCLI stores the password used to open an external slot, or
// removes it when password is empty. The DSN refers to it with a
// <password> placeholder.
func SlotPasswordCLI(store secret.SecretStore, driver, password string) error {
	if !dbclient.Supported(driver) {
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	key := secret.SlotPasswordKey(driver)
	if password == "" {
		if err := store.Delete(key); err != nil {
			return fmt.Errorf("remove %s password: %w", driver, err)
		}
		log.Printf("[CLI] Removed the %s slot password", driver)
		return nil
	}
	if err := store.Set(key, []byte(password)); err != nil {
		return fmt.Errorf("store %s password: %w", driver, err)
	}
	log.Printf("[CLI] Stored the %s slot password", driver)
	return nil
}
