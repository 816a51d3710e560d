package mcpserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hotelmap/internal/service"
	"hotelmap/internal/storage"
)

func TestApproval_Channel(t *testing.T) {
	em := &service.MockEmitter{}
	q := NewApprovalQueue(context.Background(), em)
	q.SetTimeout(time.Second)

	go func() {
		for i := 0; i < 100; i++ {
			if ev := em.Named(EventApprovalRequired); len(ev) > 0 {
				q.Approve(ev[0].Data.(PendingAction).ID)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ok, err := q.Request("delete_floor", "Delete Lobby", "")
	if err != nil || !ok {
		t.Fatalf("Request = %v, %v", ok, err)
	}
	if got := em.Named(EventApprovalRequired)[0].Data.(PendingAction).Metadata; got != "{}" {
		t.Errorf("metadata = %q", got)
	}
}

func TestApproval_ChannelTimeout(t *testing.T) {
	em := &service.MockEmitter{}
	q := NewApprovalQueue(context.Background(), em)
	q.SetTimeout(20 * time.Millisecond)

	if ok, err := q.Request("clear_floor", "Clear", ""); ok || err == nil {
		t.Fatalf("expected timeout, got %v, %v", ok, err)
	}
	if len(em.Named(EventApprovalDismissed)) != 1 {
		t.Error("expected a dismissal event")
	}
}

func TestApproval_Auto(t *testing.T) {
	q := NewApprovalQueue(context.Background(), service.NoopEmitter{})
	q.SetAutoApprove(true)
	if ok, err := q.Request("import_map", "Replace", ""); !ok || err != nil {
		t.Fatalf("auto approve = %v, %v", ok, err)
	}
}

func TestApproval_DBRoundTrip(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	q := NewApprovalQueue(context.Background(), service.NoopEmitter{})
	q.SetDB(db.Conn())
	q.SetTimeout(2 * time.Second)
	q.poll = 10 * time.Millisecond

	go func() {
		for i := 0; i < 100; i++ {
			pending, _ := ListPendingApprovals(db.Conn())
			if len(pending) > 0 {
				ResolveApproval(db.Conn(), pending[0].ID, false)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	ok, err := q.Request("delete_marker", "Delete Desk", `{"floorId":1}`)
	if ok || err == nil {
		t.Fatalf("expected rejection, got %v, %v", ok, err)
	}
	pending, _ := ListPendingApprovals(db.Conn())
	if len(pending) != 0 {
		t.Errorf("resolved request should be removed, %d left", len(pending))
	}
	if err := ResolveApproval(db.Conn(), "missing", true); err == nil {
		t.Error("expected error for unknown approval")
	}
}

func TestApproval_PendingAndResolve(t *testing.T) {
	em := &service.MockEmitter{}
	q := NewApprovalQueue(context.Background(), em)
	q.SetTimeout(2 * time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := q.Request("clear_floor", "Clear Lobby", `{"floorId":1}`)
		done <- err
	}()

	var pending []PendingAction
	for i := 0; i < 100 && len(pending) == 0; i++ {
		time.Sleep(5 * time.Millisecond)
		pending = q.Pending()
	}
	if len(pending) != 1 || pending[0].Tool != "clear_floor" || pending[0].Metadata != `{"floorId":1}` {
		t.Fatalf("pending = %+v", pending)
	}
	if q.Resolve("someone-else", true) {
		t.Error("unknown id should not resolve")
	}
	if !q.Resolve(pending[0].ID, false) {
		t.Fatal("pending id should resolve")
	}
	if err := <-done; err == nil || err.Error() != "action rejected by user: clear_floor" {
		t.Errorf("err = %v", err)
	}
	if len(q.Pending()) != 0 {
		t.Error("answered request should leave the queue")
	}
}
