package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ─────────────────────────────────────────────────────────────
// Backup Service — scheduled export snapshots on disk
// ─────────────────────────────────────────────────────────────

// EventBackupDone is emitted after each successful backup with the
// written BackupFile as payload.
const EventBackupDone = "backup:done"

const (
	backupJobID   = "backup"
	backupPrefix  = "hotel-hopper-backup-"
	backupStamp   = "2006-01-02T15-04-05.000"
	defaultKeep   = 10
	backupTimeout = time.Minute
)

// Exporter produces an export file. MapService implements it.
type Exporter interface {
	Export() (filename string, data []byte, err error)
}

// BackupFile describes one backup on disk.
type BackupFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// BackupService writes the export JSON into a directory on a cron
// schedule and keeps only the newest files.
type BackupService struct {
	source  Exporter
	dir     string
	keep    int
	emitter EventEmitter
	now     func() time.Time
	running jobGuard

	cronSched *cron.Cron
}

// NewBackupService creates a BackupService. keep <= 0 uses the default.
func NewBackupService(source Exporter, dir string, keep int, emitter EventEmitter) *BackupService {
	if keep <= 0 {
		keep = defaultKeep
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &BackupService{source: source, dir: dir, keep: keep, emitter: emitter, now: time.Now}
}

// SetClock overrides the timestamp source. Used by tests.
func (s *BackupService) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the backup directory.
func (s *BackupService) Dir() string { return s.dir }

// ── Schedule ───────────────────────────────────────────────

// Start schedules backups with a standard 5-field cron expression. An
// empty schedule disables scheduling.
func (s *BackupService) Start(ctx context.Context, schedule string) error {
	s.Stop()
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Printf("backup: scheduling disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunBackup(ctx); err != nil {
			log.Printf("backup cron: failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cronSched = c
	log.Printf("backup cron: scheduled %q into %s (keep %d)", schedule, s.dir, s.keep)
	return nil
}

// Stop halts the scheduler. Running backups are not interrupted.
func (s *BackupService) Stop() {
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

// WaitRunning blocks until a running backup finishes or ctx is cancelled.
func (s *BackupService) WaitRunning(ctx context.Context) {
	s.running.wait(ctx)
}

// ── Run ────────────────────────────────────────────────────

// RunBackup writes one backup now and prunes old ones.
func (s *BackupService) RunBackup(ctx context.Context) (*BackupFile, error) {
	if !s.running.begin(backupJobID) {
		return nil, fmt.Errorf("backup is already running")
	}
	defer s.running.end(backupJobID)

	ctx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	_, data, err := s.source.Export()
	if err != nil {
		return nil, fmt.Errorf("export document: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	ts := s.now()
	name := backupPrefix + ts.UTC().Format(backupStamp) + ".json"
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	file := &BackupFile{Name: name, Path: path, Size: int64(len(data)), CreatedAt: ts}
	log.Printf("backup: wrote %s (%d bytes)", name, file.Size)

	if n, err := s.prune(); err != nil {
		log.Printf("backup: prune failed: %v", err)
	} else if n > 0 {
		log.Printf("backup: pruned %d old file(s)", n)
	}

	s.emitter.Emit(ctx, EventBackupDone, file)
	return file, nil
}

// ListBackups returns the backups on disk newest first.
func (s *BackupService) ListBackups() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	out := []BackupFile{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		created, err := time.Parse(backupStamp, strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), ".json"))
		if err != nil {
			created = info.ModTime()
		}
		out = append(out, BackupFile{
			Name:      name,
			Path:      filepath.Join(s.dir, name),
			Size:      info.Size(),
			CreatedAt: created,
		})
	}
	// The timestamp format sorts lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (s *BackupService) prune() (int, error) {
	files, err := s.ListBackups()
	if err != nil || len(files) <= s.keep {
		return 0, err
	}
	removed := 0
	for _, f := range files[s.keep:] {
		if err := os.Remove(f.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
