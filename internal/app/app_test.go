package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotelmap/internal/config"
	"hotelmap/internal/domain"
	"hotelmap/internal/etl"
	mcpserver "hotelmap/internal/mcp"
	"hotelmap/internal/secret"
	"hotelmap/internal/service"
	"hotelmap/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:       t.TempDir(),
		SlotDriver:    "sqlite",
		SlotKey:       config.DefaultSlotKey,
		PollInterval:  50 * time.Millisecond,
		BackupKeep:    3,
		RevisionLimit: 5,
	}
}

// seed stores a map with one extra floor through a regular session.
func seed(t *testing.T, cfg *config.Config) {
	t.Helper()
	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	ctx := context.Background()
	if err := be.maps.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := be.maps.AddFloor(ctx, "Rooftop"); err != nil {
		t.Fatal(err)
	}
}

// ─────────────────────────────────────────────────────────────
// CLI transfer
// ─────────────────────────────────────────────────────────────

func TestExportCLI_Stdout(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)

	var buf bytes.Buffer
	if err := ExportCLI(cfg, ExportOptions{}, &buf); err != nil {
		t.Fatal(err)
	}
	var doc domain.HotelMap
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(doc.Floors) != 2 || doc.Floors["2"].Name != "Rooftop" {
		t.Errorf("floors = %v", doc.Floors)
	}
}

func TestExportCLI_Directory(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	dir := t.TempDir()

	if err := ExportCLI(cfg, ExportOptions{Path: dir}, nil); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "hotel-hopper-data-") {
		t.Errorf("entries = %v", entries)
	}
}

func TestExportCLI_EmptyStorageSavesNothing(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	if err := ExportCLI(cfg, ExportOptions{}, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"floors": {}`) {
		t.Errorf("export = %s", buf.String())
	}

	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	if revs, _ := be.persist.ListRevisions(); len(revs) != 0 {
		t.Errorf("export wrote %d revision(s)", len(revs))
	}
}

func TestImportCLI(t *testing.T) {
	src := testConfig(t)
	seed(t, src)
	file := filepath.Join(t.TempDir(), "map.json")
	var buf bytes.Buffer
	if err := ExportCLI(src, ExportOptions{}, &buf); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(file, buf.Bytes(), 0o644)

	dst := testConfig(t)
	report, err := ImportCLI(dst, file)
	if err != nil {
		t.Fatal(err)
	}
	if report.Floors != 2 {
		t.Errorf("report = %+v", report)
	}

	if _, err := ImportCLI(dst, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}

// ─────────────────────────────────────────────────────────────
// Cross-process sessions
// ─────────────────────────────────────────────────────────────

func TestBackend_SeesOtherProcessWrites(t *testing.T) {
	cfg := testConfig(t)
	em := &service.MockEmitter{}
	be, err := openBackend(cfg, em)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	be.start(ctx, false)

	// A second backend on the same files stands in for the MCP process.
	other, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer other.close()
	if err := other.maps.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := other.maps.AddFloor(ctx, "Garage"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(be.maps.Floors()) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if n := len(be.maps.Floors()); n != 2 {
		t.Fatalf("floors = %d, want 2", n)
	}
	found := false
	for _, e := range em.Named(service.EventMapNotice) {
		if n, ok := e.Data.(domain.Notice); ok && n.Message == "Data updated from another window" {
			found = true
		}
	}
	if !found {
		t.Error("expected a remote update notice")
	}
}

// ─────────────────────────────────────────────────────────────
// Approval watcher
// ─────────────────────────────────────────────────────────────

func TestApprovalWatcher_EmitsOnceAndDismisses(t *testing.T) {
	cfg := testConfig(t)
	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	db := be.db.Conn()

	var events []string
	w := newApprovalWatcher(context.Background(), db, time.Second)
	w.emit = func(event string, data any) { events = append(events, event) }

	db.Exec(`INSERT INTO mcp_approvals (id, tool, description) VALUES ('a1', 'clear_floor', 'Clear floor 1')`)
	w.check()
	w.check()
	if len(events) != 1 || events[0] != mcpserver.EventApprovalRequired {
		t.Fatalf("events = %v", events)
	}

	db.Exec(`DELETE FROM mcp_approvals WHERE id = 'a1'`)
	w.check()
	if len(events) != 2 || events[1] != mcpserver.EventApprovalDismissed {
		t.Errorf("events = %v", events)
	}
}

func TestApprovalWatcher_ForgetSkipsDismissal(t *testing.T) {
	cfg := testConfig(t)
	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	db := be.db.Conn()

	var events []string
	w := newApprovalWatcher(context.Background(), db, time.Second)
	w.emit = func(event string, data any) { events = append(events, event) }

	db.Exec(`INSERT INTO mcp_approvals (id, tool, description) VALUES ('a2', 'import_map', 'Replace')`)
	w.check()
	if err := mcpserver.ResolveApproval(db, "a2", true); err != nil {
		t.Fatal(err)
	}
	w.Forget("a2")
	w.check()
	if len(events) != 1 {
		t.Errorf("events = %v", events)
	}
}

// postMCP sends one JSON-RPC message to a hosted MCP handler.
func postMCP(t *testing.T, url, session, body string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if session != "" {
		req.Header.Set("Mcp-Session-Id", session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Error(err)
		return nil, ""
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestApp_HostedMCPApprovals(t *testing.T) {
	cfg := testConfig(t)
	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	ctx := context.Background()
	if err := be.maps.Start(ctx); err != nil {
		t.Fatal(err)
	}
	be.maps.AddFloor(ctx, "Annex")

	a := &App{ctx: ctx, cfg: cfg, be: be, maps: be.maps, backups: be.backups, loader: be.loader}
	em := &service.MockEmitter{}
	a.hostMCP(ctx, em)
	defer a.stopMCP()
	ts := httptest.NewServer(a.mcp.Handler())
	defer ts.Close()
	url := ts.URL + "/mcp"

	resp, _ := postMCP(t, url, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"agent","version":"0"}}}`)
	if resp == nil || resp.Header.Get("Mcp-Session-Id") == "" {
		t.Fatal("initialize failed")
	}
	session := resp.Header.Get("Mcp-Session-Id")

	done := make(chan string, 1)
	go func() {
		_, body := postMCP(t, url, session, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"delete_floor","arguments":{"floorId":2}}}`)
		done <- body
	}()

	// A standalone process is waiting too.
	be.db.Conn().Exec(`INSERT INTO mcp_approvals (id, tool, description) VALUES ('cli-1', 'import_map', 'Replace')`)

	var pending []mcpserver.PendingAction
	for i := 0; i < 200; i++ {
		pending, _ = a.ListMCPApprovals()
		if len(pending) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(pending) != 2 || pending[0].Tool != "delete_floor" || pending[1].ID != "cli-1" {
		t.Fatalf("pending = %+v", pending)
	}
	if len(em.Named(mcpserver.EventApprovalRequired)) != 1 {
		t.Error("hosted request should be raised in the window")
	}

	if err := a.ApproveMCPAction(pending[0].ID); err != nil {
		t.Fatal(err)
	}
	select {
	case body := <-done:
		if !strings.Contains(body, "deleted") {
			t.Errorf("tool result = %s", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("approved tool never returned")
	}
	if n := len(be.maps.Floors()); n != 1 {
		t.Errorf("floors = %d", n)
	}

	if err := a.RejectMCPAction("cli-1"); err != nil {
		t.Fatal(err)
	}
	var status string
	be.db.Conn().QueryRow(`SELECT status FROM mcp_approvals WHERE id = 'cli-1'`).Scan(&status)
	if status != "rejected" {
		t.Errorf("standalone status = %q", status)
	}
	if err := a.ApproveMCPAction("gone"); err == nil {
		t.Error("expected an error for an unknown approval")
	}
	if left, _ := a.ListMCPApprovals(); len(left) != 0 {
		t.Errorf("left = %+v", left)
	}
}

func TestLoadCLI(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)

	path := filepath.Join(t.TempDir(), "rooftop.csv")
	os.WriteFile(path, []byte("room,kind\nBar,dining\nPool,pool\nHelipad,helicopter\n"), 0o644)

	res, err := LoadCLI(cfg, LoadOptions{
		FloorID: 2,
		Source:  path,
		Mapping: etl.ColumnMapping{Name: "room", Icon: "kind"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Placed) != 2 || len(res.Skipped) != 1 {
		t.Errorf("result = %+v", res)
	}

	be, err := openBackend(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.close()
	if err := be.maps.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st, _ := be.maps.Stats(2); st.Markers != 2 {
		t.Errorf("stored markers = %d", st.Markers)
	}

	if _, err := LoadCLI(cfg, LoadOptions{FloorID: 9, Source: path}); err == nil {
		t.Error("expected unknown floor error")
	}
}

func TestOpenSlot_SharedFile(t *testing.T) {
	cfg := testConfig(t)
	db, err := storage.New(cfg.DBPath())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg.SlotDSN = filepath.Join(t.TempDir(), "shared.db")
	slot, err := openSlot(cfg, db)
	if err != nil {
		t.Fatal(err)
	}
	slot.Close()

	cfg.SlotDSN = filepath.Join(t.TempDir(), "missing", "dir", "shared.db")
	if _, err := openSlot(cfg, db); err == nil {
		t.Error("expected an unreachable slot to fail at open")
	}
}

func TestSlotPasswordCLI(t *testing.T) {
	store := secret.NewEnvStore()
	if err := SlotPasswordCLI(store, "postgres", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if got, _ := secret.SlotPassword(store, "postgres"); got != "s3cret" {
		t.Errorf("stored password = %q", got)
	}
	if err := SlotPasswordCLI(store, "postgres", ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := secret.SlotPassword(store, "postgres"); got != "" {
		t.Errorf("password after delete = %q", got)
	}
	if err := SlotPasswordCLI(store, "oracle", "x"); err == nil {
		t.Error("expected unsupported driver error")
	}
}
