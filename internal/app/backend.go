package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"hotelmap/internal/broadcast"
	"hotelmap/internal/config"
	"hotelmap/internal/dbclient"
	"hotelmap/internal/domain"
	"hotelmap/internal/secret"
	"hotelmap/internal/service"
	"hotelmap/internal/storage"
)

const slotConnectTimeout = 10 * time.Second

// backend is everything a process needs to serve one hotel map, whether
// it is the desktop window, the MCP server or the HTTP API.
type backend struct {
	cfg     *config.Config
	db      *storage.DB
	slot    domain.DocumentSlot
	hub     *broadcast.Hub
	watcher *broadcast.Watcher
	persist *service.Persistence
	maps    *service.MapService
	backups *service.BackupService
	loader  *service.MarkerLoader
}

// openBackend opens the local database, the document slot and the map
// session. The caller must call close.
func openBackend(cfg *config.Config, emitter service.EventEmitter) (*backend, error) {
	db, err := storage.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	slot, err := openSlot(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	hub := broadcast.NewHub()
	revisions := storage.NewRevisionStore(db, cfg.RevisionLimit)
	persist := service.NewPersistence(slot, cfg.SlotKey, "", revisions, hub)
	maps := service.NewMapService(persist, service.NewTransferService(cfg.ImportLimit), emitter, cfg.UploadLimit)

	watcher := broadcast.NewWatcher(slot, cfg.SlotKey, persist.Origin(), hub, cfg.PollInterval)
	if cfg.UsesLocalSlot() {
		watcher.WatchFile(cfg.DBPath())
	}

	loader := service.NewMarkerLoader(maps, emitter)
	loader.SetHistory(storage.NewLoadLogStore(db))

	return &backend{
		cfg:     cfg,
		db:      db,
		slot:    slot,
		hub:     hub,
		watcher: watcher,
		persist: persist,
		maps:    maps,
		backups: service.NewBackupService(maps, cfg.BackupDir(), cfg.BackupKeep, emitter),
		loader:  loader,
	}, nil
}

// openSlot returns the local slot table or an external database slot.
func openSlot(cfg *config.Config, db *storage.DB) (domain.DocumentSlot, error) {
	if cfg.UsesLocalSlot() {
		return storage.NewSlotStore(db), nil
	}
	password, err := secret.SlotPassword(secret.Default(), cfg.SlotDriver)
	if err != nil {
		log.Printf("[SLOT] No stored password for %s: %v", cfg.SlotDriver, err)
	}
	slot, err := dbclient.NewSlot(cfg.SlotDriver, cfg.SlotDSN, password)
	if err != nil {
		return nil, fmt.Errorf("open %s slot: %w", cfg.SlotDriver, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), slotConnectTimeout)
	defer cancel()
	if err := slot.TestConnection(ctx); err != nil {
		slot.Close()
		return nil, fmt.Errorf("connect %s slot: %w", cfg.SlotDriver, err)
	}
	return slot, nil
}

// start loads the document, starts the remote-change watcher and, when
// withBackups is set, the backup schedule. A load failure is logged and
// the session continues detached on an empty map; the watcher reattaches
// it once a readable document lands in the slot.
func (b *backend) start(ctx context.Context, withBackups bool) {
	if err := b.maps.Start(ctx); err != nil {
		log.Printf("[APP] Stored map unreadable, edits stay in memory: %v", err)
	}
	_, version := b.maps.Document()
	b.watcher.Seen(version)
	go b.watcher.Run(ctx)

	if withBackups {
		if err := b.backups.Start(ctx, b.cfg.BackupSchedule); err != nil {
			log.Printf("[BACKUP] Schedule disabled: %v", err)
		}
	}
}

func (b *backend) close() {
	b.backups.Stop()
	b.maps.Close()
	if !b.cfg.UsesLocalSlot() {
		b.slot.Close()
	}
	b.db.Close()
}
