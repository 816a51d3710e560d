package domain

import (
	"context"
	"time"
)

// SlotRecord is one durable key-value slot holding a serialized document.
type SlotRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Version   int64     `json:"version"`
	Origin    string    `json:"origin"` // instance id of the last writer
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentSlot is the durable whole-document store supplied by the host.
// Write replaces the slot and assigns the next version.
type DocumentSlot interface {
	// Read returns the record for key, or (nil, nil) when the slot is empty.
	Read(ctx context.Context, key string) (*SlotRecord, error)
	// Write stores rec.Value under rec.Key and returns the new version.
	Write(ctx context.Context, rec SlotRecord) (int64, error)
	Close() error
}

// Revision is a stored snapshot of the document taken on save.
type Revision struct {
	ID           string    `json:"id"`
	Version      int64     `json:"version"`
	Label        string    `json:"label"`
	SnapshotJSON string    `json:"snapshotJson,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RevisionStore keeps a bounded history of saved documents.
type RevisionStore interface {
	PushRevision(r *Revision) error
	ListRevisions() ([]Revision, error)
	GetRevision(id string) (*Revision, error)
}
