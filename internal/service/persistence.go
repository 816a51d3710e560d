package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hotelmap/internal/broadcast"
	"hotelmap/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Persistence — whole-document load/save over a DocumentSlot
// ─────────────────────────────────────────────────────────────

// Persistence serializes the document into a single slot, keeps a
// revision per save and announces each save on the hub.
type Persistence struct {
	slot      domain.DocumentSlot
	key       string
	origin    string
	revisions domain.RevisionStore // optional
	hub       *broadcast.Hub       // optional
}

// NewPersistence creates a Persistence writing as origin. revisions and
// hub may be nil.
func NewPersistence(slot domain.DocumentSlot, key, origin string, revisions domain.RevisionStore, hub *broadcast.Hub) *Persistence {
	if origin == "" {
		origin = uuid.New().String()
	}
	return &Persistence{slot: slot, key: key, origin: origin, revisions: revisions, hub: hub}
}

// Origin identifies this writer in slot records and broadcasts.
func (p *Persistence) Origin() string { return p.origin }

// Key is the slot key the document lives under.
func (p *Persistence) Key() string { return p.key }

// Hub returns the broadcast hub, which may be nil.
func (p *Persistence) Hub() *broadcast.Hub { return p.hub }

// Load reads the document. An empty slot yields an empty document at
// version 0. Unparseable content is a StorageError.
func (p *Persistence) Load(ctx context.Context) (*domain.HotelMap, int64, error) {
	rec, err := p.slot.Read(ctx, p.key)
	if err != nil {
		return nil, 0, &domain.StorageError{Op: "load", Err: err}
	}
	if rec == nil {
		return domain.NewHotelMap(), 0, nil
	}
	var doc domain.HotelMap
	if err := json.Unmarshal([]byte(rec.Value), &doc); err != nil {
		return nil, rec.Version, &domain.StorageError{Op: "load", Err: fmt.Errorf("decode document: %w", err)}
	}
	if doc.Floors == nil {
		doc.Floors = make(map[string]*domain.Floor)
	}
	return &doc, rec.Version, nil
}

// Save writes doc, records a revision labelled with the command that
// caused it and publishes a data-update. It returns the new version.
func (p *Persistence) Save(ctx context.Context, doc *domain.HotelMap, label string) (int64, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, &domain.StorageError{Op: "save", Err: fmt.Errorf("encode document: %w", err)}
	}

	version, err := p.slot.Write(ctx, domain.SlotRecord{
		Key:       p.key,
		Value:     string(data),
		Origin:    p.origin,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return 0, &domain.StorageError{Op: "save", Err: err}
	}

	if p.revisions != nil {
		rev := &domain.Revision{
			ID:           uuid.New().String(),
			Version:      version,
			Label:        label,
			SnapshotJSON: string(data),
		}
		if err := p.revisions.PushRevision(rev); err != nil {
			// The document itself is durable; history is best effort.
			log.Printf("[SLOT] Revision for v%d not recorded: %v", version, err)
		}
	}

	if p.hub != nil {
		p.hub.Publish(broadcast.NewDataUpdate(doc.Clone(), version, p.origin))
	}
	return version, nil
}

// ListRevisions returns saved revisions newest first.
func (p *Persistence) ListRevisions() ([]domain.Revision, error) {
	if p.revisions == nil {
		return nil, nil
	}
	return p.revisions.ListRevisions()
}

// Revision loads one revision and decodes its snapshot.
func (p *Persistence) Revision(id string) (*domain.Revision, *domain.HotelMap, error) {
	if p.revisions == nil {
		return nil, nil, &domain.NotFoundError{Kind: "revision", ID: id}
	}
	rev, err := p.revisions.GetRevision(id)
	if err != nil {
		return nil, nil, err
	}
	var doc domain.HotelMap
	if err := json.Unmarshal([]byte(rev.SnapshotJSON), &doc); err != nil {
		return nil, nil, fmt.Errorf("decode revision %s: %w", id, err)
	}
	return rev, &doc, nil
}
