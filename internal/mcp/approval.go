package mcpserver

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Approval events emitted to the frontend.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// EventEmitter allows the approval queue to notify the frontend.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction is a destructive map change awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"` // JSON, e.g. {"floorId":2}
}

// ApprovalQueue gates destructive MCP tools behind a human decision.
// Three modes:
//   - auto: everything is approved (headless servers configured to trust the agent)
//   - channel: hosted by the desktop app, the window answers via Resolve
//   - DB: standalone process, the desktop app answers through mcp_approvals
type ApprovalQueue struct {
	mu          sync.Mutex
	pending     map[string]*pendingRequest
	ctx         context.Context
	emitter     EventEmitter
	timeout     time.Duration
	poll        time.Duration
	autoApprove bool
	db          *sql.DB
}

type pendingRequest struct {
	action  PendingAction
	created time.Time
	answer  chan bool
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]*pendingRequest),
		ctx:     ctx,
		emitter: emitter,
		timeout: 120 * time.Second,
		poll:    500 * time.Millisecond,
	}
}

// SetDB switches to DB mode for a standalone MCP process.
func (q *ApprovalQueue) SetDB(db *sql.DB) {
	q.db = db
}

// SetAutoApprove approves every request without asking.
func (q *ApprovalQueue) SetAutoApprove(v bool) {
	q.autoApprove = v
}

// SetTimeout overrides how long a request waits for an answer.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	if d > 0 {
		q.timeout = d
	}
}

// Request asks for approval and blocks until answered. A rejection or
// timeout is reported as an error.
func (q *ApprovalQueue) Request(tool, description, metadata string) (bool, error) {
	if q.autoApprove {
		log.Printf("[MCP] Auto-approved %s: %s", tool, description)
		return true, nil
	}
	id := uuid.New().String()
	if metadata == "" {
		metadata = "{}"
	}
	if q.db != nil {
		return q.requestViaDB(id, tool, description, metadata)
	}
	return q.requestViaChannel(id, tool, description, metadata)
}

func (q *ApprovalQueue) requestViaDB(id, tool, description, metadata string) (bool, error) {
	_, err := q.db.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, 'pending', ?)`,
		id, tool, description, metadata,
	)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	defer q.db.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var status string
			if err := q.db.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status); err != nil {
				continue
			}
			switch status {
			case "approved":
				return true, nil
			case "rejected":
				return false, fmt.Errorf("action rejected by user: %s", tool)
			}
		case <-deadline.C:
			return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
		case <-q.ctx.Done():
			return false, fmt.Errorf("context cancelled")
		}
	}
}

func (q *ApprovalQueue) requestViaChannel(id, tool, description, metadata string) (bool, error) {
	now := time.Now().UTC()
	req := &pendingRequest{
		action: PendingAction{
			ID:          id,
			Tool:        tool,
			Description: description,
			CreatedAt:   now.Format(time.RFC3339),
			Metadata:    metadata,
		},
		created: now,
		answer:  make(chan bool, 1),
	}
	q.mu.Lock()
	q.pending[id] = req
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(q.ctx, EventApprovalRequired, req.action)

	select {
	case approved := <-req.answer:
		if !approved {
			return false, fmt.Errorf("action rejected by user: %s", tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	case <-q.ctx.Done():
		return false, fmt.Errorf("context cancelled")
	}
}

// Approve answers an in-process request.
func (q *ApprovalQueue) Approve(actionID string) { q.Resolve(actionID, true) }

// Reject answers an in-process request.
func (q *ApprovalQueue) Reject(actionID string) { q.Resolve(actionID, false) }

// Resolve answers an in-process request. It reports false when no such
// request is waiting, for example because it came from another process.
func (q *ApprovalQueue) Resolve(actionID string, approved bool) bool {
	q.mu.Lock()
	req, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case req.answer <- approved:
	default:
	}
	return true
}

// Pending lists in-process requests still waiting, oldest first.
func (q *ApprovalQueue) Pending() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	reqs := make([]*pendingRequest, 0, len(q.pending))
	for _, req := range q.pending {
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].created.Before(reqs[j].created) })
	out := make([]PendingAction, len(reqs))
	for i, req := range reqs {
		out[i] = req.action
	}
	return out
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// ── DB-mode helpers for the desktop side ──────────────────

// ListPendingApprovals returns requests written by a standalone MCP process.
func ListPendingApprovals(db *sql.DB) ([]PendingAction, error) {
	rows, err := db.Query(`SELECT id, tool, description, created_at, metadata FROM mcp_approvals WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	out := []PendingAction{}
	for rows.Next() {
		var a PendingAction
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.CreatedAt, &a.Metadata); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveApproval records the user's answer for a standalone request.
func ResolveApproval(db *sql.DB, id string, approved bool) error {
	status := "rejected"
	if approved {
		status = "approved"
	}
	res, err := db.Exec(`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = 'pending'`, status, id)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("approval %s is no longer pending", id)
	}
	return nil
}
