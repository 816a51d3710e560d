package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"hotelmap/internal/domain"
)

// Watcher polls a DocumentSlot for versions written by other processes
// (a second desktop window, the standalone MCP server, the HTTP importer)
// and publishes them on a Hub. When the slot lives in a local file,
// filesystem events trigger an immediate check between polls.
type Watcher struct {
	slot     domain.DocumentSlot
	key      string
	origin   string
	hub      *Hub
	interval time.Duration
	file     string

	seen atomic.Int64
}

func NewWatcher(slot domain.DocumentSlot, key, origin string, hub *Hub, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{slot: slot, key: key, origin: origin, hub: hub, interval: interval}
}

// WatchFile enables fsnotify wake-ups for a local database file.
func (w *Watcher) WatchFile(path string) {
	w.file = path
}

// Seen records a version this process already knows about.
func (w *Watcher) Seen(version int64) {
	for {
		cur := w.seen.Load()
		if version <= cur || w.seen.CompareAndSwap(cur, version) {
			return
		}
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	wake := make(chan struct{}, 1)
	if w.file != "" {
		fw, err := w.watchFile(wake)
		if err != nil {
			log.Printf("[WATCH] File events disabled: %v", err)
		} else {
			defer fw.Close()
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-wake:
		case <-ctx.Done():
			return
		}
		if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[WATCH] Check failed: %v", err)
		}
	}
}

// Check reads the slot once and publishes a foreign write. It reports
// whether a message was published.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	rec, err := w.slot.Read(ctx, w.key)
	if err != nil {
		return false, fmt.Errorf("read slot: %w", err)
	}
	if rec == nil || rec.Version <= w.seen.Load() {
		return false, nil
	}
	w.Seen(rec.Version)
	if rec.Origin == w.origin {
		return false, nil
	}

	var doc domain.HotelMap
	if err := json.Unmarshal([]byte(rec.Value), &doc); err != nil {
		return false, fmt.Errorf("decode v%d: %w", rec.Version, err)
	}
	log.Printf("[WATCH] Slot %s moved to v%d (origin %s)", w.key, rec.Version, rec.Origin)
	w.hub.Publish(Message{
		Type:      TypeDataUpdate,
		Data:      &doc,
		Version:   rec.Version,
		Timestamp: rec.UpdatedAt.UnixMilli(),
		Origin:    rec.Origin,
	})
	return true, nil
}

// watchFile watches the directory of the database file, since SQLite in
// WAL mode writes to sibling -wal files.
func (w *Watcher) watchFile(wake chan<- struct{}) (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(w.file)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	base := filepath.Base(abs)
	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				name := filepath.Base(event.Name)
				if name != base && name != base+"-wal" {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("[WATCH] watcher error: %v", err)
			}
		}
	}()
	return fw, nil
}
