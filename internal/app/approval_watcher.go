package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	mcpserver "hotelmap/internal/mcp"
)

// approvalWatcher polls the mcp_approvals table written by a standalone
// MCP process and raises each pending request in the frontend once.
// Requests that disappear (answered, timed out) are dismissed.
type approvalWatcher struct {
	ctx      context.Context
	db       *sql.DB
	interval time.Duration
	emit     func(event string, data any)

	mu     sync.Mutex
	shown  map[string]bool
	stopCh chan struct{}
}

func newApprovalWatcher(ctx context.Context, db *sql.DB, interval time.Duration) *approvalWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &approvalWatcher{
		ctx:      ctx,
		db:       db,
		interval: interval,
		emit: func(event string, data any) {
			wailsRuntime.EventsEmit(ctx, event, data)
		},
		shown: map[string]bool{},
	}
}

// Start begins the polling loop. Should be called once on app startup.
func (w *approvalWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop()
}

// Stop terminates the polling loop.
func (w *approvalWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

// Forget drops an approval the user just answered so it is not dismissed
// a second time.
func (w *approvalWatcher) Forget(id string) {
	w.mu.Lock()
	delete(w.shown, id)
	w.mu.Unlock()
}

func (w *approvalWatcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	stop := w.stopCh
	for {
		select {
		case <-ticker.C:
			w.check()
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *approvalWatcher) check() {
	pending, err := mcpserver.ListPendingApprovals(w.db)
	if err != nil {
		return
	}

	live := make(map[string]bool, len(pending))
	var fresh []mcpserver.PendingAction
	w.mu.Lock()
	for _, p := range pending {
		live[p.ID] = true
		if !w.shown[p.ID] {
			w.shown[p.ID] = true
			fresh = append(fresh, p)
		}
	}
	var gone []string
	for id := range w.shown {
		if !live[id] {
			delete(w.shown, id)
			gone = append(gone, id)
		}
	}
	w.mu.Unlock()

	for _, p := range fresh {
		w.emit(mcpserver.EventApprovalRequired, p)
	}
	for _, id := range gone {
		w.emit(mcpserver.EventApprovalDismissed, map[string]string{"id": id})
	}
}
